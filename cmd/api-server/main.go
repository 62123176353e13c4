package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/citymed/scheduling-core/internal/api"
	"github.com/citymed/scheduling-core/internal/config"
	"github.com/citymed/scheduling-core/internal/db"
	"github.com/citymed/scheduling-core/internal/query"
	redisclient "github.com/citymed/scheduling-core/internal/redis"
	"github.com/citymed/scheduling-core/internal/scheduling"
)

const version = "0.3.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s hours=%s-%s granularity=%s quota=%d emergency_override=%t",
		cfg.Env, cfg.HTTPPort, cfg.OpeningTime, cfg.ClosingTime, cfg.SlotGranularity, cfg.DailyQuota, cfg.EmergencyOverride)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres is optional: without a DSN the service runs on the in-memory
	// repository with fixture resources.
	var (
		pgPool *pgxpool.Pool
		repo   scheduling.Repository
	)
	if cfg.PostgresDSN != "" {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			log.Fatalf("postgres connection error: %v", err)
		}
		defer pgPool.Close()
		log.Println("connected to Postgres")
		repo = scheduling.NewPgRepository(pgPool)
	} else {
		log.Println("POSTGRES_DSN not set, running with in-memory repository")
		mem := scheduling.NewMemoryRepository()
		seedFixtureResources(mem)
		repo = mem
	}

	// Redis is optional: without it the per-calendar mutex alone guards
	// reservations, which is correct for a single instance.
	var (
		rdb    *redis.Client
		locker redisclient.Locker
	)
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("redis connection error: %v", err)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Printf("error closing redis: %v", err)
			}
		}()
		log.Println("connected to Redis")
		locker = redisclient.NewRedisBookingLocker(rdb, cfg.LockTTL)
	}

	svc, err := scheduling.NewService(repo, locker, cfg)
	if err != nil {
		log.Fatalf("service init error: %v", err)
	}

	hydrateCtx, cancelHydrate := context.WithTimeout(rootCtx, 30*time.Second)
	err = svc.LoadCalendars(hydrateCtx)
	cancelHydrate()
	if err != nil {
		log.Fatalf("calendar hydration error: %v", err)
	}

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		Query:   query.NewService(repo, svc),
		Repo:    repo,
		Metrics: api.NewMetrics(nil),
		PgPool:  pgPool,
		Redis:   rdb,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()

	log.Println("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
