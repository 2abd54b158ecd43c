package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/token-tracker/tokentracker/internal/config"
	"github.com/token-tracker/tokentracker/internal/db"
	relayhttp "github.com/token-tracker/tokentracker/internal/http"
	"github.com/token-tracker/tokentracker/internal/http/api/front"
	"github.com/token-tracker/tokentracker/internal/providers"
	"github.com/token-tracker/tokentracker/internal/ratelimit"
	"github.com/token-tracker/tokentracker/internal/security"

	log "github.com/sirupsen/logrus"
)

// shutdownTimeout bounds graceful server shutdown.
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

// RunServer boots the dashboard API server: database, credential codec,
// rate limiter, provider registry, and the gin router.
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

	jwtCfg, errJWT := config.LoadJWTConfig(configPath)
	if errJWT != nil {
		return errJWT
	}

	// A missing or malformed key is fatal at startup. Booting without it
	// would strand every stored credential behind failed decrypts.
	encryptionKey, errKey := config.LoadEncryptionKey()
	if errKey != nil {
		return errKey
	}
	codec, errCodec := security.NewCodec(encryptionKey)
	if errCodec != nil {
		return errCodec
	}

	limiter := ratelimit.NewManager(config.LoadRateLimitConfig(configPath), nil, nil)
	upstreamCfg := config.LoadUpstreamConfig(configPath)
	registry := providers.NewRegistry(&http.Client{Timeout: upstreamCfg.Timeout})

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(relayhttp.RateLimitMiddleware(limiter))
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	front.RegisterFrontRoutes(engine, conn, jwtCfg, codec, registry)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}
