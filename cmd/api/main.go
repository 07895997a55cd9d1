package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/yard-sale-vendors/internal/adapters/memory"
	mongoadapter "github.com/robertarktes/yard-sale-vendors/internal/adapters/mongo"
	"github.com/robertarktes/yard-sale-vendors/internal/adapters/postgres"
	"github.com/robertarktes/yard-sale-vendors/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/yard-sale-vendors/internal/adapters/redis"
	"github.com/robertarktes/yard-sale-vendors/internal/admin"
	"github.com/robertarktes/yard-sale-vendors/internal/config"
	httphandler "github.com/robertarktes/yard-sale-vendors/internal/http"
	"github.com/robertarktes/yard-sale-vendors/internal/idempotency"
	"github.com/robertarktes/yard-sale-vendors/internal/intake"
	"github.com/robertarktes/yard-sale-vendors/internal/notify"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
	"github.com/robertarktes/yard-sale-vendors/internal/payment"
	"github.com/robertarktes/yard-sale-vendors/internal/rateLimit"
	"github.com/robertarktes/yard-sale-vendors/internal/workflow"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// kvStore backs sessions, locks and rate limiting.
type kvStore interface {
	workflow.KV
	rateLimit.Counter
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Require(
		config.KeyDatabaseDSN,
		config.KeyStripeSecretKey,
		config.KeyStripePublishableKey,
		config.KeyIntakeURL,
		config.KeyAdminJWTSecret,
		config.KeyResendAPIKey,
	); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	shutdown, err := observability.SetupOTel(ctx, cfg, "vendors-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger(cfg.LogLevel)
	observability.InitMetrics()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := postgres.Migrate(pool); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	repo := postgres.NewRepository(pool)

	checks := map[string]httphandler.Check{"postgres": pool.Ping}

	var (
		kv         kvStore
		idempStore idempotency.Store
	)
	if cfg.RedisAddr != "" {
		redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		cache := redisadapter.NewCache(redisClient)
		kv = cache
		idempStore = redisadapter.NewIdempotency(redisClient)
		checks["redis"] = cache.Ping
	} else {
		logger.Warn("REDIS_ADDR not set, sessions are kept in process")
		cache := memory.NewCache(time.Minute)
		kv = cache
		idempStore = memory.NewIdempotency(cache)
	}

	email := notify.NewEmailSender(notify.EmailOptions{
		BaseURL:   cfg.ResendBaseURL,
		APIKey:    cfg.ResendAPIKey,
		From:      cfg.EmailFrom,
		EventName: cfg.EventName,
	})

	var notifier notify.Notifier = email
	if cfg.RabbitURL != "" {
		rabbitConn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer rabbitConn.Close()
		rabbitPub, err := rabbit.NewPublisher(rabbitConn)
		if err != nil {
			log.Fatalf("failed to create publisher: %v", err)
		}
		defer rabbitPub.Close()
		notifier = notify.NewQueueNotifier(rabbitPub)
	} else {
		logger.Warn("RABBIT_URL not set, confirmations are sent inline")
	}

	var (
		auditor     admin.Auditor        = admin.NewLogAuditor(logger)
		escalations workflow.Escalations = workflow.NewLogEscalations(logger)
	)
	if cfg.MongoURI != "" {
		mongoClient, err := mongoadapter.Connect(ctx, cfg.MongoURI)
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		db := mongoClient.Database(mongoadapter.Database)
		escRepo := mongoadapter.NewEscalationRepository(db, logger)
		if err := escRepo.EnsureIndexes(ctx); err != nil {
			log.Fatalf("failed to create mongo indexes: %v", err)
		}
		auditor = mongoadapter.NewAuditLogger(db, logger)
		escalations = escRepo
		checks["mongo"] = func(ctx context.Context) error { return mongoClient.Ping(ctx, readpref.Primary()) }
	} else {
		logger.Warn("MONGO_URI not set, audit and escalations go to the log")
	}

	stripeSvc := payment.NewStripeService(cfg.StripeSecretKey, payment.Options{
		Currency:  cfg.Currency,
		EventName: cfg.EventName,
		APIURL:    cfg.StripeAPIURL,
	})

	wf := workflow.New(workflow.Options{
		Sessions: workflow.NewSessions(kv, cfg.SessionTTL, workflow.WithPaymentTTL(cfg.PaymentSessionTTL)),
		Intake:   intake.NewClient(cfg.IntakeURL, nil),
		Intents:  stripeSvc,
		Elements: func(intentID string, outcome payment.Outcome) payment.Element {
			return payment.NewVerifiedElement(stripeSvc, intentID, outcome)
		},
		Store:             repo,
		Notifier:          notifier,
		Escalations:       escalations,
		Logger:            logger,
		StatusClearAfter:  cfg.StatusClearAfter,
		SuccessClearAfter: cfg.SuccessClearAfter,
	})

	handlers := httphandler.NewHandlers(cfg, wf, admin.NewService(repo, auditor, logger), stripeSvc, email, checks, logger)
	idemp := idempotency.NewIdempotency(idempStore, cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(kv, logger)

	r := httphandler.SetupRouter(handlers, logger, rl, idemp)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
