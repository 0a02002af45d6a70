package main // Entry point package

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/rdt-project/auth-service/internal/config"
	"github.com/rdt-project/auth-service/internal/database"
	"github.com/rdt-project/auth-service/internal/handler"
	"github.com/rdt-project/auth-service/internal/middleware"
	"github.com/rdt-project/auth-service/internal/queue"
	"github.com/rdt-project/auth-service/internal/repository"
	"github.com/rdt-project/auth-service/internal/router"
	"github.com/rdt-project/auth-service/internal/service"
	"github.com/rdt-project/auth-service/internal/token"
)

func main() {
	cfg := config.Load() // load environment config (.env supported in dev)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	tokens := token.New(cfg.JWTSecret, cfg.TokenTTL)

	// Lock transitions are published to the security queue best effort; the
	// login outcome never depends on the broker.
	auth := service.NewAuthService(users, tokens, cfg.MaxAttempts, cfg.LockDuration).
		WithLockHook(func(ctx context.Context, ev queue.AccountLockedEvent) {
			_ = queue.PublishAccountLocked(ctx, ev)
		})

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; login rate limiting disabled")
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	// Background consumer turning lock events into audit log lines.
	go func() {
		if err := queue.StartSecurityConsumer(); err != nil {
			log.Printf("security consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, auth), tokens, limiter)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
