package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/vendorhub/marketplace-backend/pkg/logger"
)

const defaultExpiryBatch = 200

type unpaidOrderExpirer interface {
	UnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	ExpireUnpaid(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// UnpaidExpiryJobParams configure the unpaid order sweeper.
type UnpaidExpiryJobParams struct {
	Logger *logger.Logger
	Orders unpaidOrderExpirer
	TTL    time.Duration
	Batch  int
}

type unpaidExpiryJob struct {
	logg   *logger.Logger
	orders unpaidOrderExpirer
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

// NewUnpaidExpiryJob builds the job that cancels orders whose payment
// window lapsed.
func NewUnpaidExpiryJob(params UnpaidExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("payment ttl must be positive")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &unpaidExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    params.TTL,
		batch:  batch,
		now:    time.Now,
	}, nil
}

func (j *unpaidExpiryJob) Name() string { return "unpaid-order-expiry" }

func (j *unpaidExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	ids, err := j.orders.UnpaidBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query unpaid orders: %w", err)
	}

	var errs error
	expired := 0
	for _, id := range ids {
		ok, err := j.orders.ExpireUnpaid(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", id, err))
			continue
		}
		if ok {
			expired++
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(ids),
		"expired":    expired,
	}), "unpaid orders swept")
	return errs
}
