package steward

import (
	"context"
	"net/http"
)

// Receipt is the server's answer to an accepted intervention.
type Receipt struct {
	Success bool   `json:"success"`
	Details string `json:"details"`
}

// Actor submits interventions with the admin key.
type Actor struct {
	client
}

func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{newClient(baseURL, adminKey)}
}

// Act posts iv to the intervention endpoint. A rejected intervention
// (bad city, unknown good, wrong key) is an error.
func (a *Actor) Act(ctx context.Context, iv *Intervention) (*Receipt, error) {
	var rc Receipt
	if err := a.call(ctx, http.MethodPost, "/api/v1/intervention", iv, &rc); err != nil {
		return nil, err
	}
	return &rc, nil
}
