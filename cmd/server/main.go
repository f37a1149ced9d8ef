package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // .env loader for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/work-item-tracker/internal/config"     // Internal config loader
	"github.com/iliyamo/work-item-tracker/internal/database"   // MySQL pool
	"github.com/iliyamo/work-item-tracker/internal/handler"    // HTTP handlers
	"github.com/iliyamo/work-item-tracker/internal/queue"      // Mail consumer
	"github.com/iliyamo/work-item-tracker/internal/repository" // Data access layer
	"github.com/iliyamo/work-item-tracker/internal/router"     // Internal router setup
	"github.com/iliyamo/work-item-tracker/internal/service"    // Stateful core services
)

func main() {
	// Load .env when present; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	policy := config.LoadChallengeConfig()
	rlCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	// Redis is optional: with no client the resend rate limiter is a no-op.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, resend rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	challenges := repository.NewChallengeRepo(db)
	sessions := repository.NewSessionRepo(db)
	items := repository.NewWorkItemRepo(db)

	auth := service.NewAuthService(users, challenges, sessions, service.AMQPNotifier{}, cfg, policy)
	workItems := service.NewWorkItemService(items, users)

	// Drain challenge events into the mail log in the background; the
	// consumer reconnects on its own if the broker goes away.
	go func() {
		if err := queue.StartChallengeConsumer(); err != nil {
			log.Printf("challenge consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(auth), cfg.JWTSecret, rlCfg, rdb)
	router.RegisterWorkItems(e, handler.NewWorkItemHandler(workItems), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
