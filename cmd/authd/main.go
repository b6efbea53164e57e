// Command authd runs the authentication and session lifecycle service: the
// OTP login/registration flows, the dual-tier auth state store, the session
// watchdog, and the route guard, behind an HTTP surface consumed by the
// health-tracking SPA.
//
// With IDENTITY_BASE_URL set it fronts the remote identity service; without
// it, an in-process stub identity service is used (development mode) and
// issued codes are echoed back in debug_otp.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	gomongo "go.mongodb.org/mongo-driver/mongo"

	"github.com/vitatrack/auth-lifecycle/internal/api"
	"github.com/vitatrack/auth-lifecycle/internal/api/handler"
	"github.com/vitatrack/auth-lifecycle/internal/core/ports"
	"github.com/vitatrack/auth-lifecycle/internal/core/service"
	"github.com/vitatrack/auth-lifecycle/internal/infrastructure/config"
	"github.com/vitatrack/auth-lifecycle/internal/infrastructure/gateway"
	"github.com/vitatrack/auth-lifecycle/internal/infrastructure/gateway/stub"
	"github.com/vitatrack/auth-lifecycle/internal/infrastructure/storage/memory"
	"github.com/vitatrack/auth-lifecycle/internal/infrastructure/storage/mongo"
	"github.com/vitatrack/auth-lifecycle/internal/infrastructure/storage/redis"
	"github.com/vitatrack/auth-lifecycle/pkg/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	// --- Persistence tiers ---
	var (
		primary, secondary ports.StateTier
		rdb                *goredis.Client
		mdb                *gomongo.Database
	)
	if cfg.Env == "development" {
		// In-memory tiers: nothing external to run, nothing survives a
		// restart.
		primary, secondary = memory.NewTier(), memory.NewTier()
		log.Info().Msg("using in-memory persistence tiers")
	} else {
		rdb, err = redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		defer rdb.Close()

		var mongoClient *gomongo.Client
		mongoClient, mdb, err = mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			log.Fatal().Err(err).Msg("mongo connection failed")
		}
		defer func() { _ = mongoClient.Disconnect(context.Background()) }()

		primary = redis.NewTier(rdb, cfg.Session.TTL)
		secondary = mongo.NewTier(mdb)
	}

	// --- Identity gateway ---
	var idGateway ports.IdentityGateway
	if cfg.Gateway.BaseURL != "" {
		idGateway = gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout, log)
	} else {
		log.Warn().Msg("no IDENTITY_BASE_URL configured, using in-process identity stub")
		idGateway = stub.New("dev-secret", log)
	}

	// --- Lifecycle registry ---
	sessions := service.NewSessions(idGateway, primary, secondary, service.WatchdogConfig{
		RevalidateInterval: cfg.Session.RevalidateInterval,
		InactivityTimeout:  cfg.Session.InactivityTimeout,
		WarningWindow:      cfg.Session.WarningWindow,
	}, log)
	defer sessions.Close()

	e := api.NewRouter(api.Dependencies{
		Sessions: sessions,
		Gateway:  idGateway,
		Cookies:  handler.CookieConfig{Domain: cfg.Session.CookieDomain, Secure: cfg.Session.CookieSecure},
		Mongo:    mdb,
		Redis:    rdb,
		Log:      log,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()
	log.Info().Str("port", cfg.Port).Msg("authd listening")

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
