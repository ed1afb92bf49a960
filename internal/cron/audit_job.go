package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/vendorhub/marketplace-backend/internal/ledger"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
	"github.com/vendorhub/marketplace-backend/pkg/metrics"
)

type ledgerReplayer interface {
	WalletIDs(ctx context.Context) ([]uuid.UUID, error)
	Replay(ctx context.Context, walletID uuid.UUID) (*ledger.ReplayReport, error)
}

// LedgerAuditJobParams configure the wallet replay audit.
type LedgerAuditJobParams struct {
	Logger   *logger.Logger
	Ledger   ledgerReplayer
	Metrics  *metrics.EscrowMetrics
	Interval time.Duration
}

type ledgerAuditJob struct {
	logg     *logger.Logger
	ledger   ledgerReplayer
	metrics  *metrics.EscrowMetrics
	interval time.Duration
	lastRun  time.Time
	now      func() time.Time
}

// NewLedgerAuditJob builds the job that replays every wallet's ledger and
// reports drift between stored and replayed balances. Interval throttles the
// audit below the cron cadence; zero audits on every cycle.
func NewLedgerAuditJob(params LedgerAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &ledgerAuditJob{
		logg:     params.Logger,
		ledger:   params.Ledger,
		metrics:  params.Metrics,
		interval: params.Interval,
		now:      time.Now,
	}, nil
}

func (j *ledgerAuditJob) Name() string { return "ledger-audit" }

func (j *ledgerAuditJob) Run(ctx context.Context) error {
	now := j.now()
	if j.interval > 0 && !j.lastRun.IsZero() && now.Sub(j.lastRun) < j.interval {
		return nil
	}
	j.lastRun = now

	ids, err := j.ledger.WalletIDs(ctx)
	if err != nil {
		return fmt.Errorf("list wallets: %w", err)
	}
	var errs error
	drifted := 0
	for _, id := range ids {
		report, err := j.ledger.Replay(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("replay wallet %s: %w", id, err))
			continue
		}
		if report.Consistent() {
			continue
		}
		drifted++
		j.metrics.IncInvariantViolation("ledger_drift")
		j.logg.Error(j.logg.WithFields(ctx, map[string]any{
			"wallet_id":          report.WalletID.String(),
			"vendor_id":          report.VendorID.String(),
			"pending_stored":     report.PendingStored.String(),
			"pending_replayed":   report.PendingReplayed.String(),
			"available_stored":   report.AvailableStored.String(),
			"available_replayed": report.AvailableReplayed.String(),
			"broken_entries":     len(report.BrokenEntries),
		}), "wallet ledger drift detected", fmt.Errorf("wallet %s is inconsistent", report.WalletID))
	}
	if drifted > 0 {
		errs = multierr.Append(errs, fmt.Errorf("%d of %d wallets drifted", drifted, len(ids)))
	}
	return errs
}
