package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tierhub-io/tierhub/internal/billing"
	"github.com/tierhub-io/tierhub/internal/config"
	"github.com/tierhub-io/tierhub/internal/db"
	"github.com/tierhub-io/tierhub/internal/http/api/admin"
	"github.com/tierhub-io/tierhub/internal/http/api/front"
	"github.com/tierhub-io/tierhub/internal/http/api/webhook"
	"github.com/tierhub-io/tierhub/internal/payment"
	"github.com/tierhub-io/tierhub/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the billing API server with database-backed components.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	jwtConfig, err := config.LoadJWTConfig(configPath)
	if err != nil {
		return err
	}
	paymentConfig, err := config.LoadPaymentConfig(configPath)
	if err != nil {
		return err
	}

	processor := payment.NewClient(paymentConfig.BaseURL, paymentConfig.APIKey)
	reconciler := billing.NewReconciler(conn)
	gateway := billing.NewSessionGateway(conn, processor)
	limiter := buildLimiter(configPath)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	webhook.RegisterRoutes(engine, reconciler, paymentConfig.WebhookSecret)
	front.RegisterFrontRoutes(engine, conn, jwtConfig, gateway, limiter)
	admin.RegisterAdminRoutes(engine, conn, jwtConfig)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	log.Infof("listening on %s with config=%s", server.Addr, cfg.ConfigPath)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		errServe := <-errCh
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// buildLimiter selects the rate limiter backend. Redis keeps counts shared
// across replicas; without a configured address counts stay in process.
func buildLimiter(configPath string) ratelimit.Limiter {
	addr := config.LoadRedisAddr(configPath)
	if addr == "" {
		return ratelimit.NewMemoryLimiter()
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	log.Infof("rate limiting backed by redis at %s", addr)
	return ratelimit.NewRedisLimiter(client, "tierhub")
}
