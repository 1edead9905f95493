package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the simulation's prometheus instruments. A nil *Metrics
// records nothing.
type Metrics struct {
	days       prometheus.Counter
	trades     *prometheus.CounterVec
	arrivals   *prometheus.CounterVec
	decisions  *prometheus.CounterVec
	playerGold prometheus.Gauge
	prices     *prometheus.GaugeVec
	population *prometheus.GaugeVec
}

// NewMetrics registers the simulation instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		days: f.NewCounter(prometheus.CounterOpts{
			Namespace: "portsim", Name: "days_total",
			Help: "Simulated days advanced.",
		}),
		trades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portsim", Name: "player_trades_total",
			Help: "Player trades by side and result.",
		}, []string{"side", "result"}),
		arrivals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portsim", Name: "ship_arrivals_total",
			Help: "Ships docking at the end of a voyage, by owner kind.",
		}, []string{"owner"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portsim", Name: "agent_decisions_total",
			Help: "Trader decisions by kind.",
		}, []string{"kind"}),
		playerGold: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "portsim", Name: "player_gold",
			Help: "Gold held by the player.",
		}),
		prices: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "portsim", Name: "market_price",
			Help: "Current price per city and good.",
		}, []string{"city", "good"}),
		population: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "portsim", Name: "city_population",
			Help: "City population.",
		}, []string{"city"}),
	}
}

func (m *Metrics) day() {
	if m != nil {
		m.days.Inc()
	}
}

func (m *Metrics) trade(side string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "rejected"
	}
	m.trades.WithLabelValues(side, result).Inc()
}

func (m *Metrics) arrival(owner string) {
	if m != nil {
		m.arrivals.WithLabelValues(owner).Inc()
	}
}

func (m *Metrics) decision(kind string) {
	if m != nil {
		m.decisions.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) gold(v float64) {
	if m != nil {
		m.playerGold.Set(v)
	}
}

// observeState refreshes the gauges from st.
func (m *Metrics) observeState(st *State) {
	if m == nil {
		return
	}
	m.playerGold.Set(st.Player.Gold)
	for _, id := range st.CityOrder {
		cs := st.Cities[id]
		if cs == nil {
			continue
		}
		m.population.WithLabelValues(id).Set(float64(cs.Population))
		if cs.Market == nil {
			continue
		}
		for _, g := range cs.Market.Goods {
			if e := cs.Market.Entry(g); e != nil {
				m.prices.WithLabelValues(id, g).Set(e.Price)
			}
		}
	}
}
