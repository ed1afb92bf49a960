// Package webhooks receives gateway and carrier callbacks. Every callback is
// acknowledged with 200 so the sender never retries on business outcomes.
package webhooks

import (
	"context"
	"net/http"

	"github.com/vendorhub/marketplace-backend/api/responses"
	"github.com/vendorhub/marketplace-backend/internal/payments"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
)

const maxWebhookBytes = 64 << 10

// PaymentProcessor applies a verified payment callback.
type PaymentProcessor interface {
	Process(ctx context.Context, n payments.Notification) payments.Result
}

// PaymentWebhook accepts the gateway's form-encoded payment notification.
func PaymentWebhook(processor PaymentProcessor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if processor == nil {
			if logg != nil {
				logg.Warn(ctx, "payment webhook received without a processor")
			}
			responses.WriteReceived(w)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBytes)
		if err := r.ParseForm(); err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "payment webhook form unreadable")
			}
			responses.WriteReceived(w)
			return
		}

		result := processor.Process(ctx, payments.NotificationFromForm(r.PostForm))
		if logg != nil {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"outcome":        string(result.Outcome),
				"payment_status": string(result.Status),
			}), "payment webhook handled")
		}
		responses.WriteReceived(w)
	}
}
