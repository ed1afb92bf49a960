package webhooks

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/vendorhub/marketplace-backend/api/responses"
	"github.com/vendorhub/marketplace-backend/internal/delivery"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
)

const trackingSignatureHeader = "X-Tracking-Signature"

// TrackingHandler applies a carrier status callback.
type TrackingHandler interface {
	HandleTracking(ctx context.Context, payload []byte, signature string) delivery.TrackingOutcome
}

// TrackingWebhook accepts the carrier's JSON tracking update.
func TrackingWebhook(handler TrackingHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if handler == nil {
			responses.WriteReceived(w)
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
		if err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "tracking webhook body unreadable")
			}
			responses.WriteReceived(w)
			return
		}

		outcome := handler.HandleTracking(ctx, payload, strings.TrimSpace(r.Header.Get(trackingSignatureHeader)))
		if logg != nil {
			logg.Info(logg.WithField(ctx, "outcome", string(outcome)), "tracking webhook handled")
		}
		responses.WriteReceived(w)
	}
}
