package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"example.com/workout/internal/api"
	"example.com/workout/internal/auth"
	"example.com/workout/internal/billing"
	"example.com/workout/internal/config"
	"example.com/workout/internal/domain"
	"example.com/workout/internal/leaderboard"
	"example.com/workout/internal/outbox"
	"example.com/workout/internal/persistence/localstore"
	persistence "example.com/workout/internal/persistence/postgres"
	httptransport "example.com/workout/internal/transport/http"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		handler        *api.Handler
		authMiddleware func(http.Handler) http.Handler
		dispatcher     *outbox.Dispatcher
	)

	switch cfg.StorageMode {
	case config.StorageModeLocal:
		store, err := localstore.Open(cfg.LocalStorePath)
		if err != nil {
			log.Fatalf("failed to open device store: %v", err)
		}

		handler = api.NewHandler(domain.NewService(store))
		authMiddleware = auth.GuestMiddleware(store)
		log.Printf("running in device mode (store=%s)", cfg.LocalStorePath)

	case config.StorageModePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pool.Close()

		repo := persistence.NewRepository(pool)
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
		go dispatcher.Start(ctx)

		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()

		handler = api.NewHandler(domain.NewService(repo),
			api.WithFeatureBoard(domain.NewFeatureService(repo)),
			api.WithLeaderboard(leaderboard.NewRanker(redisClient)),
			api.WithBilling(billing.NewCheckout(cfg.StripeSecretKey, cfg.StripePriceID, cfg.AppBaseURL)),
		)
		jwt := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
		authMiddleware = jwt.Wrap

	default:
		log.Fatalf("unknown storage mode %q", cfg.StorageMode)
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Simple CORS middleware for local dev
	cors := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "http://localhost:5173")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	server := httptransport.NewServer(
		httptransport.Defaults(cfg.HTTPAddress),
		authMiddleware(logger(cors(mux))),
	)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("workout-service listening on %s (mode=%s)", cfg.HTTPAddress, cfg.StorageMode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}
