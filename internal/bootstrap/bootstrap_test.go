package bootstrap

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendorhub/marketplace-backend/internal/testdb"
	"github.com/vendorhub/marketplace-backend/pkg/config"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
)

func TestBuildWiresEveryService(t *testing.T) {
	cfg := &config.Config{
		Escrow: config.EscrowConfig{
			CancellationWindow: 24 * time.Hour,
			ReturnWindow:       24 * time.Hour,
			MinimumPayoutRaw:   "50000",
		},
		Webhook: config.WebhookConfig{PaymentServerKey: "server-key", TrackingSecret: "tracking"},
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	svc, err := Build(context.Background(), cfg, logg, testdb.Client(t), prometheus.NewRegistry())
	require.NoError(t, err)

	assert.NotNil(t, svc.Ledger)
	assert.NotNil(t, svc.Escrow)
	assert.NotNil(t, svc.Orders)
	assert.NotNil(t, svc.Disputes)
	assert.NotNil(t, svc.Delivery)
	assert.NotNil(t, svc.Payments)
	assert.NotNil(t, svc.Payouts)
	assert.NotNil(t, svc.Vendors)
	assert.NoError(t, svc.Close())
}
