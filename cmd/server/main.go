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

	"storefront/internal/bootstrap"
	"storefront/internal/config"
	"storefront/internal/infra"
	"storefront/internal/middleware"
	"storefront/internal/router"
	"storefront/internal/worker"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	infra.SetupLogger(cfg.Env, cfg.LogLevel)

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Migration jobs enqueued with `migrate enqueue` run inside the server's
	// worker pool.
	mig, err := bootstrap.NewMigration(cfg, db, rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build migration runner")
	}
	pool := worker.NewPool(rdb, mig.Runner, mig.DeadLetters, cfg.WorkerPoolSize)
	pool.Start(ctx)

	limiter := middleware.NewIPRateLimiter(1000, 100)
	limiter.StartPurger(5*time.Minute, ctx.Done())

	r := router.New(cfg, router.Deps{DB: db, Redis: rdb, Limiter: limiter})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Int("port", cfg.Port).Msg("storefront listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	// A running migration sees the cancel and reports its remaining products
	// as canceled; rerunning the pass picks them up.
	cancel()
	pool.Wait()
	log.Info().Msg("server exited")
}
