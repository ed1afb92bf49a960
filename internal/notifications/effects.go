package notifications

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/vendorhub/marketplace-backend/pkg/logger"
	"github.com/vendorhub/marketplace-backend/pkg/metrics"
)

const maxConcurrentEffects = 4

// Effect is one post-commit side effect.
type Effect struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner executes post-commit side effects. Failures are logged and counted
// but never returned as a failure of the operation that scheduled them.
type Runner struct {
	logg    *logger.Logger
	metrics *metrics.EscrowMetrics
}

func NewRunner(logg *logger.Logger, escrowMetrics *metrics.EscrowMetrics) *Runner {
	return &Runner{logg: logg, metrics: escrowMetrics}
}

// Run executes every effect concurrently and returns the combined error for
// callers that want to inspect it. The parent context's cancellation is
// ignored so a finished HTTP request does not abort its side effects.
func (r *Runner) Run(ctx context.Context, effects ...Effect) error {
	if r == nil || len(effects) == 0 {
		return nil
	}
	runCtx := context.WithoutCancel(ctx)

	var (
		mu       sync.Mutex
		combined error
	)
	var g errgroup.Group
	g.SetLimit(maxConcurrentEffects)
	for _, effect := range effects {
		effect := effect
		g.Go(func() error {
			if err := effect.Run(runCtx); err != nil {
				r.metrics.IncSideEffectFailure(effect.Name)
				if r.logg != nil {
					r.logg.Error(r.logg.WithField(runCtx, "effect", effect.Name), "side effect failed", err)
				}
				mu.Lock()
				combined = multierr.Append(combined, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return combined
}
