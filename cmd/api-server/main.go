package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/vetdesk/vetbook/internal/api"
	"github.com/vetdesk/vetbook/internal/appointment"
	"github.com/vetdesk/vetbook/internal/availability"
	"github.com/vetdesk/vetbook/internal/config"
	"github.com/vetdesk/vetbook/internal/db"
	"github.com/vetdesk/vetbook/internal/directory"
	redisclient "github.com/vetdesk/vetbook/internal/redis"
	"github.com/vetdesk/vetbook/internal/schedule"
	"github.com/vetdesk/vetbook/internal/workflow"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s slot_horizon_days=%d", cfg.Env, cfg.HTTPPort, cfg.SlotHorizonDays)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	scheduleRepo := schedule.NewPgRepository(pgPool)
	apptRepo := appointment.NewPgRepository(pgPool)
	dirRepo := directory.NewPgRepository(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)

	schedules := schedule.NewService(scheduleRepo, schedule.NewValidator(), cfg)
	avail := availability.NewService(scheduleRepo, apptRepo)
	engine := appointment.NewService(apptRepo, scheduleRepo, dirRepo, locker)
	wizard := workflow.NewService(workflow.NewRedisStore(rdb, cfg.SessionTTL), avail, engine, dirRepo)

	router := api.NewRouter(api.RouterConfig{
		Schedules:    schedules,
		Availability: avail,
		Engine:       engine,
		Wizard:       wizard,
		Directory:    dirRepo,
		PgPool:       pgPool,
		Redis:        rdb,
		Env:          cfg.Env,
		Version:      version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
