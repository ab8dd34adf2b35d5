package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"classroom/internal/account"
	"classroom/internal/activity"
	"classroom/internal/analytics"
	"classroom/internal/attendance"
	"classroom/internal/auth"
	"classroom/internal/cloudinary"
	"classroom/internal/config"
	"classroom/internal/exams"
	"classroom/internal/handler"
	"classroom/internal/httpmiddleware"
	"classroom/internal/logging"
	"classroom/internal/queue"
	"classroom/internal/roster"
	"classroom/internal/store"
	"classroom/internal/store/memory"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Production())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

// records groups the persistence backends of every domain.
type records struct {
	accounts   account.Store
	students   roster.Store
	attendance attendance.Store
	exams      exams.Store
	activity   activity.Store
}

func openRecords(ctx context.Context, cfg config.App, log *zap.Logger) (records, *store.DB, error) {
	if cfg.StoreBackend == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		mem := memory.New()
		return records{accounts: mem, students: mem, attendance: mem, exams: mem, activity: mem}, nil, nil
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return records{}, nil, err
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return records{}, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema migrated")
	}
	return records{
		accounts:   account.NewRepository(db.Client),
		students:   roster.NewRepository(db.Client),
		attendance: attendance.NewRepository(db.Client),
		exams:      exams.NewRepository(db.Client),
		activity:   activity.NewRepository(db.Client),
	}, db, nil
}

func runHTTP(cfg config.App, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recs, db, err := openRecords(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	checks := map[string]handler.HealthCheck{}
	if db != nil {
		checks["db"] = db.Healthy
	}

	var (
		q        queue.Queue
		denylist auth.Denylist
	)
	if cfg.QueueBackend == "memory" {
		mq := queue.NewInMemory(256)
		q = mq
		denylist = auth.NewMemoryDenylist()
		// no separate worker can see an in-process queue
		go func() {
			if err := activity.NewRecorder(recs.activity, log.Named("activity")).Run(ctx, mq); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("activity recorder stopped", zap.Error(err))
			}
		}()
	} else {
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer func() { _ = redisClient.Close() }()
		if !redisClient.Healthy(ctx) {
			log.Warn("redis not reachable", zap.String("addr", cfg.RedisAddr))
		}
		if cfg.StoreBackend == "memory" {
			log.Warn("activity worker cannot reach the in-memory store; feed entries will not be recorded")
		}
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
		denylist = auth.NewRedisDenylist(redisClient.Client, "")
		checks["redis"] = redisClient.Healthy
	}

	// Cloudinary client (nil when not configured)
	var cdnClient *cloudinary.Client
	if cfg.CloudinaryEnabled() {
		cdnClient = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Info("cloudinary configured", zap.String("cloud", cfg.CloudinaryCloudName))
	} else {
		log.Warn("cloudinary not configured, photo uploads disabled")
	}

	students := roster.NewService(recs.students)
	h := handler.New(handler.Deps{
		Log:        log,
		Accounts:   account.NewService(recs.accounts, cfg.BcryptCost),
		Tokens:     auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL),
		Denylist:   denylist,
		Roster:     students,
		Attendance: attendance.NewReconciler(recs.attendance),
		Exams:      exams.NewService(recs.exams),
		Analytics:  analytics.NewService(recs.students, recs.attendance, recs.exams),
		Activity:   recs.activity,
		Queue:      q,
		Cloud:      cdnClient,
		Checks:     checks,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLog(log, "/healthz", "/metrics"))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin, httpmiddleware.ClientIP).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Mount(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreBackend), zap.String("queue", cfg.QueueBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       24 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
