package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"call-audit-go/internal/api"
	"call-audit-go/internal/app"
	"call-audit-go/internal/config"
	"call-audit-go/internal/logger"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "call-audit-go").Info("starting service")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize application")
	}
	defer a.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      api.NewServer(a.Processor, a.Models, a.Store, cfg.Server.MaxFileSize, log).Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: writeTimeout(cfg.Pipeline.StageTimeout),
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server terminated")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// writeTimeout covers both pipeline stages plus slack. With no stage deadline
// the response write is unbounded too.
func writeTimeout(stage time.Duration) time.Duration {
	if stage <= 0 {
		return 0
	}
	return 2*stage + 30*time.Second
}
