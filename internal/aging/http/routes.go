// Package aginghttp exposes aging report generation over HTTP.
package aginghttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// RateLimit bounds report generation requests per client.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// MountRoutes registers aging endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router, limit RateLimit) {
	if h == nil {
		return
	}
	if limit.Requests <= 0 {
		limit.Requests = 10
	}
	if limit.Window <= 0 {
		limit.Window = time.Minute
	}
	limiter := httprate.Limit(limit.Requests, limit.Window,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Route("/aging", func(ar chi.Router) {
		ar.Get("/buckets", h.handleBuckets)
		ar.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Post("/reports", h.handleReport)
			gr.Post("/accounts", h.handleAccounts)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
