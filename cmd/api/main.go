package main

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"garnizon.org/internal/auth"
	"garnizon.org/internal/config"
	"garnizon.org/internal/httpapi"
	"garnizon.org/internal/obs"
	"garnizon.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	cfg := config.MustLoad()

	obs.InitLogger(obs.LogOptions{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	obs.Init()
	log := obs.Logger()

	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	store, err := pg.New(db)
	if err != nil {
		log.WithError(err).Fatal("init store")
	}

	hasher, err := auth.NewPasswordHasher(cfg.Auth.Pepper)
	if err != nil {
		log.WithError(err).Fatal("init password hasher")
	}
	tokens, err := auth.NewTokenIssuer(cfg.Auth.Secret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	if err != nil {
		log.WithError(err).Fatal("init token issuer")
	}
	svc, err := auth.NewService(store, store, auth.NewScopeResolver(store), hasher, tokens)
	if err != nil {
		log.WithError(err).Fatal("init auth service")
	}

	api := httpapi.New(
		svc,
		httpapi.ReadyProbe{DB: db},
		version,
		httpapi.DefaultPermissionTable(),
		httpapi.RateLimitConfig{Burst: cfg.RateLimit.Burst, PerSecond: cfg.RateLimit.PerSecond},
	)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Address, cfg.Server.Port),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.WithField("addr", srv.Addr).Infof("starting garnizon-api %s", version)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Info("stopped")
}
