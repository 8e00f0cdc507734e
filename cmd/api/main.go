package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendsync/internal/activity"
	"attendsync/internal/attendance"
	"attendsync/internal/auth"
	"attendsync/internal/config"
	"attendsync/internal/httpmiddleware"
	"attendsync/internal/metrics"
	"attendsync/internal/store"
	"attendsync/internal/syncqueue"
	"attendsync/internal/token"
	"attendsync/internal/verify"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func run(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var queueStore syncqueue.Store
	if cfg.QueueBackend == "memory" {
		queueStore = syncqueue.NewMemoryStore()
	} else {
		queueStore = syncqueue.NewRedisStore(redisClient.Client, "attendsync:offline")
	}
	offlineQueue := syncqueue.New(queueStore, cfg.QueueMax)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewCollector(reg)

	tokens := token.NewService(token.NewPGRepository(db.Client), cfg.TokenValidDays)
	activities := activity.NewPGStore(db.Client)
	records := attendance.NewPGRepository(db.Client)
	recorder := attendance.NewRecorder(tokens, activities, records, cfg.MinNotesLen)
	workflow := verify.NewWorkflow(records, verify.NewPGEventRepository(db.Client), cfg.MinNotesLen)
	devices := auth.NewDeviceRepository(db.Client)

	s := &server{
		cfg:       cfg,
		tokens:    tokens,
		recorder:  recorder,
		workflow:  workflow,
		records:   records,
		devices:   devices,
		queue:     offlineQueue,
		collector: collector,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewIPRateLimiter(cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/devices/register", s.registerDevice)

	v1 := r.Group("/v1", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer))
	v1.POST("/tokens", s.generateToken)
	v1.POST("/tokens/batch", s.generateTokenBatch)
	v1.POST("/tokens/validate", s.validateToken)
	v1.DELETE("/tokens/:token", s.invalidateToken)
	v1.GET("/tokens/active", s.activeToken)

	v1.POST("/attendance", s.submitAttendance)
	v1.GET("/attendance", s.listAttendance)
	v1.GET("/attendance/:id", s.getAttendance)
	v1.GET("/attendance/:id/history", s.attendanceHistory)
	v1.POST("/attendance/:id/verify", s.verifyAttendance)
	v1.POST("/attendance/:id/reject", s.rejectAttendance)

	v1.GET("/sync/status", s.syncStatus)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced shutdown: %v", err)
	}
	log.Println("server exited")
	return nil
}
