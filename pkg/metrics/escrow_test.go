package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func TestEscrowMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEscrowMetrics(reg)

	m.ObserveMovement("COMMISSION_DEDUCTION", "pending", decimal.NewFromInt(-100))
	m.IncWebhookOutcome("payment", "duplicate")
	m.IncWebhookOutcome("payment", "duplicate")
	m.IncInvariantViolation("negative_balance")
	m.IncSideEffectFailure("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "vendorhub_webhook_outcomes_total", "outcome", "duplicate"); err != nil || got != 2 {
		t.Fatalf("expected 2 duplicate outcomes, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "vendorhub_wallet_movement_amount_total", "type", "COMMISSION_DEDUCTION"); err != nil || got != 100 {
		t.Fatalf("expected absolute amount 100, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "vendorhub_invariant_violations_total", "kind", "negative_balance"); err != nil || got != 1 {
		t.Fatalf("expected one invariant violation, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "vendorhub_side_effect_failures_total", "effect", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unknown effect label, got %f err=%v", got, err)
	}
}

func TestEscrowMetricsNilSafe(t *testing.T) {
	var m *EscrowMetrics
	m.ObserveMovement("x", "y", decimal.NewFromInt(1))
	m.IncWebhookOutcome("a", "b")
	m.IncInvariantViolation("c")
	m.IncSideEffectFailure("d")

	empty := NewEscrowMetrics(nil)
	empty.IncInvariantViolation("c")
}
