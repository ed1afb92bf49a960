package middleware

import (
	"net/http"
	"net/url"
	"slices"

	"github.com/go-chi/cors"

	"github.com/vendorhub/marketplace-backend/pkg/config"
)

// CORS applies the browser origin policy. Outside dev only the configured
// origins pass; in dev any localhost port is accepted as well.
func CORS(app config.AppConfig) func(http.Handler) http.Handler {
	origins := app.CORSOrigins
	dev := app.IsDev()
	return cors.New(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			if slices.Contains(origins, origin) {
				return true
			}
			if !dev {
				return false
			}
			u, err := url.Parse(origin)
			return err == nil && (u.Hostname() == "localhost" || u.Hostname() == "127.0.0.1")
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           600,
	}).Handler
}
