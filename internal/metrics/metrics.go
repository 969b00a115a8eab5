package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tournament_bot"

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	registrations    prometheus.Counter
	receiptsRelayed  *prometheus.CounterVec
	lobbyMessages    *prometheus.CounterVec
	bridgeCalls      *prometheus.CounterVec
	tournamentsEnded *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		registrations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registrants appended to the store.",
		}),
		receiptsRelayed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipts_relayed_total",
			Help:      "Payment receipts forwarded to the admin.",
		}, []string{"result"}),
		lobbyMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lobby_messages_total",
			Help:      "Lobby credentials sent to players.",
		}, []string{"result"}),
		bridgeCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_calls_total",
			Help:      "HTTP operations executed on the bot loop.",
		}, []string{"route", "result"}),
		tournamentsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tournaments_ended_total",
			Help:      "Tournament end events.",
		}, []string{"trigger"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registration() {
	if m != nil {
		m.registrations.Inc()
	}
}

func (m *Metrics) ReceiptRelayed(ok bool) {
	if m != nil {
		m.receiptsRelayed.WithLabelValues(result(ok)).Inc()
	}
}

func (m *Metrics) LobbyMessage(ok bool) {
	if m != nil {
		m.lobbyMessages.WithLabelValues(result(ok)).Inc()
	}
}

func (m *Metrics) BridgeCall(route string, ok bool) {
	if m != nil {
		m.bridgeCalls.WithLabelValues(route, result(ok)).Inc()
	}
}

func (m *Metrics) TournamentEnded(auto bool) {
	if m == nil {
		return
	}
	trigger := "manual"
	if auto {
		trigger = "auto"
	}
	m.tournamentsEnded.WithLabelValues(trigger).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
