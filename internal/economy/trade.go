package economy

import "math"

// Reason is a machine-usable explanation attached to an Outcome.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonInvalidQuantity      Reason = "invalid_quantity"
	ReasonUnknownCity          Reason = "unknown_city"
	ReasonUnknownGood          Reason = "unknown_good"
	ReasonUnknownShip          Reason = "unknown_ship"
	ReasonUnknownShipType      Reason = "unknown_ship_type"
	ReasonUnknownBuilding      Reason = "unknown_building"
	ReasonInsufficientFunds    Reason = "insufficient_funds"
	ReasonInsufficientStock    Reason = "insufficient_stock"
	ReasonInsufficientCapacity Reason = "insufficient_capacity"
	ReasonInsufficientCargo    Reason = "insufficient_cargo"
	ReasonNotDocked            Reason = "not_docked"
	ReasonAlreadySailing       Reason = "already_sailing"
	ReasonAlreadyThere         Reason = "already_there"
	ReasonNoPath               Reason = "no_path"
	ReasonNotShipyard          Reason = "not_shipyard"
	ReasonLastShip             Reason = "last_ship"
	ReasonCargoAboard          Reason = "cargo_aboard"
)

// Outcome reports the result of a mutating operation. A partial fill has
// OK set, Executed < Requested, and Reason naming the binding limit.
type Outcome struct {
	OK        bool    `json:"ok"`
	Reason    Reason  `json:"reason,omitempty"`
	Good      string  `json:"good,omitempty"`
	Requested int     `json:"requested"`
	Executed  int     `json:"executed"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
}

// Partial reports whether fewer units than requested were traded.
func (o Outcome) Partial() bool {
	return o.OK && o.Executed < o.Requested
}

// Fail returns a failed outcome with the given reason.
func Fail(reason Reason) Outcome {
	return Outcome{Reason: reason}
}

// Hold is cargo space that goods can be loaded into and taken out of.
type Hold interface {
	Held(good string) int
	FreeCapacity() int
	Load(good string, n int)
	Unload(good string, n int) int
}

// Buy moves up to qty units of good from the market into hold, paying from
// gold. The executed amount is the minimum of the request, what gold can
// afford, whole units in stock, and free capacity. Price does not move.
func (m *Market) Buy(good string, qty int, gold *float64, hold Hold) Outcome {
	out := Outcome{Good: good, Requested: qty}
	if qty <= 0 {
		out.Reason = ReasonInvalidQuantity
		return out
	}
	e := m.Entry(good)
	if e == nil {
		out.Reason = ReasonUnknownGood
		return out
	}
	out.UnitPrice = e.Price

	// Compare in float so huge gold or stock cannot overflow int.
	n := qty
	if afford := math.Floor(*gold / e.Price); afford < float64(n) {
		n, out.Reason = int(afford), ReasonInsufficientFunds
	}
	if stock := math.Floor(e.Stock); stock < float64(n) {
		n, out.Reason = int(stock), ReasonInsufficientStock
	}
	if free := hold.FreeCapacity(); free < n {
		n, out.Reason = free, ReasonInsufficientCapacity
	}
	if n <= 0 {
		return out
	}

	total := float64(n) * e.Price
	*gold = floorZero(*gold - total)
	e.Stock = floorZero(e.Stock - float64(n))
	hold.Load(good, n)

	out.OK = true
	out.Executed = n
	out.Total = total
	return out
}

// Sell moves up to qty units of good from hold into the market, crediting
// gold at the current price. Price does not move.
func (m *Market) Sell(good string, qty int, gold *float64, hold Hold) Outcome {
	out := Outcome{Good: good, Requested: qty}
	if qty <= 0 {
		out.Reason = ReasonInvalidQuantity
		return out
	}
	e := m.Entry(good)
	if e == nil {
		out.Reason = ReasonUnknownGood
		return out
	}
	out.UnitPrice = e.Price

	n := qty
	if held := hold.Held(good); held < n {
		n, out.Reason = held, ReasonInsufficientCargo
	}
	if n <= 0 {
		return out
	}

	n = hold.Unload(good, n)
	total := float64(n) * e.Price
	*gold = floorZero(*gold + total)
	e.Stock += float64(n)

	out.OK = n > 0
	out.Executed = n
	out.Total = total
	return out
}

func floorZero(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
