package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aiforge/aiforge/internal/config"
	"github.com/aiforge/aiforge/internal/credentials"
	"github.com/aiforge/aiforge/internal/db"
	"github.com/aiforge/aiforge/internal/gateway"
	apphttp "github.com/aiforge/aiforge/internal/http"
	"github.com/aiforge/aiforge/internal/logging"
	"github.com/aiforge/aiforge/internal/ratelimit"
	"github.com/aiforge/aiforge/internal/registry"
	"github.com/aiforge/aiforge/internal/security"
	"github.com/aiforge/aiforge/internal/usage"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, errLoad := config.Load(*configPath)
	if errLoad != nil {
		log.Fatalf("load config: %v", errLoad)
	}

	logging.Setup(cfg.Log)
	gin.SetMode(cfg.Server.Mode)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		log.Fatalf("open database: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		log.Fatalf("migrate database: %v", errMigrate)
	}

	cipher, errCipher := security.NewCipher(cfg.Encryption.Passphrase)
	if errCipher != nil {
		log.Fatalf("init credential cipher: %v", errCipher)
	}

	reg := registry.New(registry.Options{
		OpenRouterReferer: cfg.Providers.OpenRouterReferer,
		OpenRouterTitle:   cfg.Providers.OpenRouterTitle,
		CustomBaseURL:     cfg.Providers.CustomBaseURL,
		CustomModel:       cfg.Providers.CustomModel,
	})

	store := credentials.NewStore(conn, cipher)
	resolver := credentials.NewResolver(store, reg)
	recorder := usage.NewRecorder(conn, store, cfg.Usage.CostPer1KTokens)
	gw := gateway.New(reg, resolver, recorder)

	limiter, errLimiter := ratelimit.New(context.Background(), cfg.Redis.URL, cfg.Redis.RateLimitPerMinute)
	if errLimiter != nil {
		log.WithError(errLimiter).Warn("redis unavailable, rate limiting disabled")
		limiter = nil
	}

	engine := apphttp.NewRouter(apphttp.Deps{
		DB:        conn,
		Registry:  reg,
		Store:     store,
		Gateway:   gw,
		Limiter:   limiter,
		JWTSecret: cfg.JWT.Secret,
		JWTExpiry: cfg.JWTExpiry(),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("server listening")
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			log.Fatalf("serve: %v", errServe)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		log.WithError(errShutdown).Error("graceful shutdown failed")
	}
}
