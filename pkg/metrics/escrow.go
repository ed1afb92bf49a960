package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// EscrowMetrics counts money movements, webhook outcomes and invariant
// breaches. All methods are safe on a nil receiver.
type EscrowMetrics struct {
	movements  *prometheus.CounterVec
	amounts    *prometheus.CounterVec
	webhooks   *prometheus.CounterVec
	invariants *prometheus.CounterVec
	sideEffect *prometheus.CounterVec
}

// NewEscrowMetrics registers the escrow metrics on the provided registerer.
func NewEscrowMetrics(reg prometheus.Registerer) *EscrowMetrics {
	if reg == nil {
		return &EscrowMetrics{}
	}
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vendorhub_wallet_movements_total",
		Help: "Wallet ledger rows written, by type and balance column.",
	}, []string{"type", "column"})
	amounts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vendorhub_wallet_movement_amount_total",
		Help: "Absolute amount moved through wallet ledger rows.",
	}, []string{"type"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vendorhub_webhook_outcomes_total",
		Help: "Inbound webhook processing outcomes.",
	}, []string{"source", "outcome"})
	invariants := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vendorhub_invariant_violations_total",
		Help: "Aborted operations caused by ledger or state invariant breaches.",
	}, []string{"kind"})
	sideEffect := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vendorhub_side_effect_failures_total",
		Help: "Best-effort side effects that failed after commit.",
	}, []string{"effect"})
	reg.MustRegister(movements, amounts, webhooks, invariants, sideEffect)
	return &EscrowMetrics{
		movements:  movements,
		amounts:    amounts,
		webhooks:   webhooks,
		invariants: invariants,
		sideEffect: sideEffect,
	}
}

func (m *EscrowMetrics) ObserveMovement(txType, column string, amount decimal.Decimal) {
	if m == nil || m.movements == nil {
		return
	}
	m.movements.WithLabelValues(normalizeLabel(txType), normalizeLabel(column)).Inc()
	m.amounts.WithLabelValues(normalizeLabel(txType)).Add(amount.Abs().InexactFloat64())
}

func (m *EscrowMetrics) IncWebhookOutcome(source, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}

func (m *EscrowMetrics) IncInvariantViolation(kind string) {
	if m == nil || m.invariants == nil {
		return
	}
	m.invariants.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *EscrowMetrics) IncSideEffectFailure(effect string) {
	if m == nil || m.sideEffect == nil {
		return
	}
	m.sideEffect.WithLabelValues(normalizeLabel(effect)).Inc()
}
