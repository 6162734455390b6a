package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"threatscope/internal/app"
	httpadapter "threatscope/internal/adapters/http"
	"threatscope/internal/config"
	"threatscope/internal/logging"
	"threatscope/internal/ports"
)

func main() {
	cfg, err := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	switch {
	case errors.Is(err, config.ErrNoDatabase):
		log.Warn("DATABASE_URL not set; results will not be stored and history routes are disabled")
	case err != nil:
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg, log, app.Options{})
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	defer a.Close()

	var hist ports.History
	if a.History != nil {
		hist = a.History
	}
	srv := httpadapter.New(a.Analyzer, hist, a.Metrics.Handler(), log)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	log.WithField("addr", cfg.ListenAddr).Info("listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.FetchTimeout+5*time.Second)
		defer done()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("graceful shutdown incomplete")
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}
}
