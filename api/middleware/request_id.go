package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/vendorhub/marketplace-backend/api/responses"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
)

// Inbound ids are echoed into logs and bodies, so only short opaque tokens are trusted.
var inboundRequestID = regexp.MustCompile(`^[A-Za-z0-9._:-]{8,64}$`)

// RequestID tags every request with a correlation id. A well formed id sent by
// the caller or an upstream proxy is kept; anything else is replaced.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(responses.RequestIDHeader)
			if !inboundRequestID.MatchString(id) {
				id = uuid.NewString()
				r.Header.Set(responses.RequestIDHeader, id)
			}
			w.Header().Set(responses.RequestIDHeader, id)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
