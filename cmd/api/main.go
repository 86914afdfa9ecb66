package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	mongoadapter "github.com/robertarktes/event-ticketing-payments/internal/adapters/mongo"
	"github.com/robertarktes/event-ticketing-payments/internal/adapters/postgres"
	"github.com/robertarktes/event-ticketing-payments/internal/adapters/razorpay"
	redisadapter "github.com/robertarktes/event-ticketing-payments/internal/adapters/redis"
	"github.com/robertarktes/event-ticketing-payments/internal/auth"
	"github.com/robertarktes/event-ticketing-payments/internal/config"
	httphandler "github.com/robertarktes/event-ticketing-payments/internal/http"
	"github.com/robertarktes/event-ticketing-payments/internal/idempotency"
	"github.com/robertarktes/event-ticketing-payments/internal/observability"
	"github.com/robertarktes/event-ticketing-payments/internal/payments"
	"github.com/robertarktes/event-ticketing-payments/internal/rateLimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("refusing to start: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()
	observability.InitMetrics()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := postgres.NewRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	var (
		audit   payments.AuditLog
		catalog httphandler.EventCatalog
	)
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		db := mongoClient.Database(cfg.MongoDB)
		audit = mongoadapter.NewAuditLogger(db, logger)
		catalog = mongoadapter.NewCatalogRepository(db, logger)
	} else {
		logger.Warn("MONGO_URI not set, audit log and event catalog disabled")
	}

	svc := payments.NewService(cfg, repo, razorpay.NewClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret), audit, logger)

	var (
		idemp *idempotency.Idempotency
		rl    *rateLimit.RateLimiter
	)
	if redisClient := redisadapter.Connect(ctx, cfg.RedisAddr); redisClient != nil {
		defer redisClient.Close()
		cache := redisadapter.NewCache(redisClient)
		idemp = idempotency.NewIdempotency(redisadapter.NewReplayStore(redisClient, "create-order"), time.Hour)
		rl = rateLimit.NewRateLimiter(cache, logger)
		svc.WithSeatHolds(cache)
	} else {
		logger.Warn("redis unavailable, running without idempotency, rate limiting and seat holds")
	}

	var verifier *auth.Verifier
	if cfg.SupabaseJWTSecret != "" {
		verifier = auth.NewVerifier(cfg.SupabaseJWTSecret)
	}

	handlers := httphandler.NewHandlers(svc, catalog, idemp, repo, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httphandler.SetupRouter(cfg, handlers, logger, rl, verifier),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("port", cfg.Port).Info("backend server running")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown Server ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server stopped")
	}
	logger.Info("Server exiting")
}
