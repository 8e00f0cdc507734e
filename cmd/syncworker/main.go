package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"attendsync/internal/config"
	"attendsync/internal/engine"
	"attendsync/internal/metrics"
	"attendsync/internal/remote"
	"attendsync/internal/store"
	"attendsync/internal/syncqueue"
)

// The sync worker is the host-environment side of the offline story: it
// watches connectivity to the attendance service and pushes the signal into
// the engine, whose offline to online edge drains the queue.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	var queueStore syncqueue.Store
	if cfg.QueueBackend == "memory" {
		queueStore = syncqueue.NewMemoryStore()
	} else {
		redisClient := store.NewRedis(cfg.RedisAddr)
		queueStore = syncqueue.NewRedisStore(redisClient.Client, "attendsync:offline")
	}
	offlineQueue := syncqueue.New(queueStore, cfg.QueueMax)

	collector := metrics.NewCollector(prometheus.NewRegistry())
	client := remote.New(cfg.RemoteBaseURL)
	eng := engine.New(client, offlineQueue, collector)

	deviceID := os.Getenv("DEVICE_ID")
	if deviceID == "" {
		deviceID = uuid.NewString()
		log.Printf("DEVICE_ID not set, using %s", deviceID)
	}
	registered := false

	if !cfg.AutoSync {
		log.Println("auto-sync disabled, worker will only watch connectivity")
	}

	ticker := time.NewTicker(cfg.SyncCheckInterval)
	defer ticker.Stop()

	log.Printf("sync worker started, checking %s every %s", cfg.RemoteBaseURL, cfg.SyncCheckInterval)
	for {
		reachable := client.Health(ctx) == nil
		if reachable && !registered {
			if err := client.RegisterDevice(ctx, deviceID); err != nil {
				log.Printf("device registration failed: %v", err)
				reachable = false
			} else {
				registered = true
			}
		}

		wasOnline := eng.Online()
		eng.SetOnline(ctx, reachable)
		if reachable && !wasOnline {
			log.Println("connectivity restored, queue drained")
		}

		// Periodic reconciliation beyond the edge trigger.
		if reachable && wasOnline && cfg.AutoSync {
			if status, err := eng.Status(ctx); err == nil && status.PendingCount > 0 {
				if err := eng.Drain(ctx); err != nil {
					log.Printf("periodic drain failed: %v", err)
				}
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			log.Println("sync worker stopped")
			return
		}
	}
}
