// Package server exposes the manifest service over HTTP. Clients and
// operators authenticate with separate bearer tokens.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fleet-manifests/internal/app"
	"fleet-manifests/internal/ports"
	"fleet-manifests/internal/types"
)

const (
	maxBodyBytes    = 4 << 20
	shutdownTimeout = 10 * time.Second
)

type Options struct {
	// Activity bounds the clients visited by the cron drift sweep.
	Activity types.ActivityPolicy
	Logger   zerolog.Logger
}

type Server struct {
	svc      app.Service
	auth     ports.AuthPort
	activity types.ActivityPolicy
	logger   zerolog.Logger
}

func New(svc app.Service, auth ports.AuthPort, opts Options) *Server {
	return &Server{svc: svc, auth: auth, activity: opts.Activity, logger: opts.Logger}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireClient)
		r.Post("/manifests", s.handleCheckin)
		r.Get("/catalogs/{name}", s.handleGetCatalog)
		r.Post("/reports", s.handleReport)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Put("/catalogs/{name}", s.handlePublishCatalog)
		r.Get("/catalogs/{name}", s.handleGetCatalog)
		r.Put("/manifests/{name}", s.handleUpsertManifest)
		r.Get("/manifests/{name}", s.handleGetManifest)
		r.Put("/aliases", s.handleSetAliases)
		r.Put("/modifications", s.handleSetModifications)
		r.Get("/clients", s.handleClients)
		r.Get("/drift/{client}", s.handleDrift)
	})

	r.Route("/cron", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Post("/drift", s.handleDriftSweep)
	})
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return s.logger.WithContext(context.Background()) },
	}
	errCh := make(chan error, 1)
	go func() {
		log.Ctx(ctx).Info().Str("listen", addr).Msg("server started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("server failed on " + addr).
			WithCause(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("server shutdown failed").
			WithCause(err)
	}
	log.Ctx(ctx).Info().Msg("server stopped")
	return nil
}
