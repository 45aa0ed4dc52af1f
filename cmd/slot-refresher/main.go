package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/vetdesk/vetbook/internal/config"
	"github.com/vetdesk/vetbook/internal/db"
	"github.com/vetdesk/vetbook/internal/schedule"
)

// slot-refresher keeps the rolling booking horizon materialized: every
// RefreshInterval it regenerates each provider's slots for today
// through today+SlotHorizonDays, one date per transaction, so the last
// day of the window always exists by the time it becomes bookable.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("slot-refresher starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running slot refresher in env=%s interval=%s horizon=%dd", cfg.Env, cfg.RefreshInterval, cfg.SlotHorizonDays)

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

	repo := schedule.NewPgRepository(pgPool)
	svc := schedule.NewService(repo, schedule.NewValidator(), cfg)

	// Run once at startup
	runOnce(rootCtx, svc)

	ticker := time.NewTicker(cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping slot refresher")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc)
		}
	}
}

func runOnce(ctx context.Context, svc *schedule.Service) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()

	providers, err := svc.Providers(runCtx)
	if err != nil {
		log.Printf("list providers error: %v", err)
		return
	}

	var failed int
	for _, providerID := range providers {
		if err := svc.RegenerateHorizon(runCtx, providerID); err != nil {
			// Per-date regeneration means this provider is safe to retry
			// on the next tick.
			log.Printf("regenerate horizon for provider %s: %v", providerID, err)
			failed++
		}
	}

	log.Printf("refresh run complete providers=%d failed=%d in %s", len(providers), failed, time.Since(start))
}
