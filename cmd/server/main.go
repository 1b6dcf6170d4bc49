package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/iliyamo/promptvault/internal/config"
	"github.com/iliyamo/promptvault/internal/database"
	"github.com/iliyamo/promptvault/internal/handler"
	"github.com/iliyamo/promptvault/internal/logger"
	"github.com/iliyamo/promptvault/internal/middleware"
	"github.com/iliyamo/promptvault/internal/queue"
	"github.com/iliyamo/promptvault/internal/ratelimit"
	"github.com/iliyamo/promptvault/internal/repository"
	"github.com/iliyamo/promptvault/internal/router"
	"github.com/iliyamo/promptvault/internal/service"
	"github.com/iliyamo/promptvault/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.Env)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, sessions, closeStore, err := openStores(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	codec, err := utils.NewTokenCodec(cfg.JWTSecret, cfg.AccessTTL())
	if err != nil {
		return err
	}

	var events service.EventPublisher = service.NopPublisher{}
	evCfg := config.LoadEventsConfig()
	if evCfg.Enabled {
		events = service.NewAMQPPublisher(evCfg.URL)
		if evCfg.ConsumerEnabled {
			go func() {
				err := queue.StartAuditConsumer(ctx, evCfg.URL, evCfg.AuditLogDir, logger.WithComponent(log, "audit"))
				if err != nil && !errors.Is(err, context.Canceled) {
					log.Error("audit consumer stopped", zap.Error(err))
				}
			}()
		}
	}

	mgr, err := service.NewSessionManager(users, sessions, codec, service.ManagerConfig{
		RefreshTTL:       cfg.RefreshTTL(),
		BcryptCost:       cfg.BcryptCost,
		StoreTimeout:     cfg.StoreTimeout,
		RevokeAllOnReuse: cfg.RevokeAllOnReuse,
	}, events, logger.WithComponent(log, "sessions"))
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(reg)

	rlCfg := config.LoadRateLimitConfig()
	var limiter *ratelimit.Limiter
	if rlCfg.Enabled {
		rdb := config.NewRedisClient()
		if rdb == nil {
			log.Warn("redis unreachable at startup; rate limiting fails open")
		} else {
			defer func() { _ = rdb.Close() }()
		}
		limiter = ratelimit.NewLimiter(rdb, rlCfg.Timeout, logger.WithComponent(log, "ratelimit"))
	}

	e := router.New(router.Options{
		Auth:  handler.NewAuthHandler(mgr, handler.CookieConfig{Secure: cfg.CookieSecure}, log, metrics),
		Codec: codec,
		Policies: ratelimit.NewDefaultPolicyTable(ratelimit.Limits{
			Auth: rlCfg.AuthLimit, AI: rlCfg.AILimit, Default: rlCfg.DefaultLimit, Window: rlCfg.Window,
		}),
		Limiter:    limiter,
		Metrics:    metrics,
		Gatherer:   reg,
		Log:        logger.WithComponent(log, "http"),
		TrustProxy: cfg.TrustProxy,
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return e.Shutdown(shutdownCtx)
}

func openStores(cfg config.Config, log *zap.Logger) (service.CredentialStore, service.SessionStore, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn("using in-memory store; data is lost on restart")
		m := repository.NewMemoryStore()
		return m, m, func() {}, nil
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, nil, nil, err
	}
	return repository.NewUserRepo(db), repository.NewSessionRepo(db), closer(db, log), nil
}

func closer(db *sql.DB, log *zap.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Warn("close database", zap.Error(err))
		}
	}
}
