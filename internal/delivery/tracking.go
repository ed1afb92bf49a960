package delivery

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stdErrors "errors"
	"strings"

	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/internal/orders"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
)

// TrackingOutcome is how a carrier callback was handled. Every outcome is
// acknowledged to the carrier.
type TrackingOutcome string

const (
	TrackingProcessed        TrackingOutcome = "processed"
	TrackingInvalidSignature TrackingOutcome = "invalid_signature"
	TrackingInvalidPayload   TrackingOutcome = "invalid_payload"
	TrackingIgnoredStatus    TrackingOutcome = "ignored_status"
	TrackingUnknownShipment  TrackingOutcome = "unknown_shipment"
	TrackingAlreadyDelivered TrackingOutcome = "already_delivered"
	TrackingRejected         TrackingOutcome = "rejected"
	TrackingFailed           TrackingOutcome = "failed"
)

// TrackingEvent is the carrier callback body.
type TrackingEvent struct {
	TrackingNumber string `json:"tracking_number"`
	Status         string `json:"status"`
	Carrier        string `json:"carrier"`
}

const trackingStatusDelivered = "delivered"

// HandleTracking verifies the callback and marks the shipment's order
// delivered when the carrier reports delivery.
func (s *service) HandleTracking(ctx context.Context, payload []byte, signature string) TrackingOutcome {
	outcome := s.handleTracking(ctx, payload, signature)
	s.metrics.IncWebhookOutcome("tracking", string(outcome))
	return outcome
}

func (s *service) handleTracking(ctx context.Context, payload []byte, signature string) TrackingOutcome {
	if !ValidTrackingSignature(payload, s.trackingSecret, signature) {
		s.logg.Warn(ctx, "tracking webhook signature mismatch")
		return TrackingInvalidSignature
	}
	var event TrackingEvent
	if err := json.Unmarshal(payload, &event); err != nil || strings.TrimSpace(event.TrackingNumber) == "" {
		s.logg.Warn(ctx, "tracking webhook payload unreadable")
		return TrackingInvalidPayload
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"tracking_number": event.TrackingNumber,
		"carrier":         event.Carrier,
		"carrier_status":  event.Status,
	})
	if !strings.EqualFold(strings.TrimSpace(event.Status), trackingStatusDelivered) {
		return TrackingIgnoredStatus
	}

	orderID, err := s.orders.FindOrderIDByTracking(ctx, strings.TrimSpace(event.TrackingNumber))
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(ctx, "tracking webhook for unknown shipment")
			return TrackingUnknownShipment
		}
		s.logg.Error(ctx, "tracking webhook lookup failed", err)
		return TrackingFailed
	}

	result, err := s.MarkDelivered(ctx, orderID, orders.SystemTrigger(orders.TriggerCarrierTracking))
	switch {
	case err == nil && result.AlreadyDelivered:
		return TrackingAlreadyDelivered
	case err == nil:
		return TrackingProcessed
	case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
		s.logg.Warn(s.logg.WithField(ctx, "order_id", orderID.String()), "carrier delivery rejected: "+err.Error())
		return TrackingRejected
	default:
		s.logg.Error(s.logg.WithField(ctx, "order_id", orderID.String()), "carrier delivery failed", err)
		return TrackingFailed
	}
}

// ValidTrackingSignature checks the hex HMAC-SHA256 of the raw body.
func ValidTrackingSignature(payload []byte, secret, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

