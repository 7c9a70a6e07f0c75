package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/voidnote/voidnote/internal/logging"
	sc "github.com/voidnote/voidnote/internal/server/config"
	"github.com/voidnote/voidnote/internal/server/services"
)

// NewRouter wires the API routes. Paths addressing a secret by its
// public short id are the anonymous viewer surface; paths addressing it
// by internal id require the owner token header.
func NewRouter(svc *services.SecretService, cfg *sc.Config, logger logging.Logger) *chi.Mux {
	h := NewHandler(svc, cfg, logger)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/uploads", h.PresignUpload)

		r.Route("/secrets", func(r chi.Router) {
			r.Post("/", h.CreateSecret)

			// {id} is the public short id on the viewer routes and the
			// internal record id on the owner routes.
			r.Get("/{id}/status", h.GetStatus)
			r.Post("/{id}/reveal", h.RevealSecret)
			r.Post("/{id}/burn", h.BurnSecret)
			r.Post("/{id}/expiry", h.ExtendExpiry)
			r.Get("/{id}/log", h.GetAccessLog)
		})
	})

	return r
}

func requestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	log := logger.With("module", "httpapi")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
			)
		})
	}
}
