package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/xavierca1/dj-funnel/internal/config"
	"github.com/xavierca1/dj-funnel/internal/infra/analytics"
	"github.com/xavierca1/dj-funnel/internal/infra/database"
	"github.com/xavierca1/dj-funnel/internal/infra/http/handlers"
	"github.com/xavierca1/dj-funnel/internal/infra/http/middleware"
	"github.com/xavierca1/dj-funnel/internal/infra/integration/manychat"
	"github.com/xavierca1/dj-funnel/internal/infra/integration/payments"
	"github.com/xavierca1/dj-funnel/internal/infra/lock"
	"github.com/xavierca1/dj-funnel/internal/infra/mail"
	"github.com/xavierca1/dj-funnel/internal/infra/queue"
	"github.com/xavierca1/dj-funnel/internal/infra/worker"
	"github.com/xavierca1/dj-funnel/internal/usecase"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDBConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ database: %v", err)
	}
	defer db.Close()

	rabbitMQ, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("❌ rabbitmq: %v", err)
	}
	defer rabbitMQ.Close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("❌ redis url: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	// 1. Repositories
	leadRepo := database.NewLeadRepository(db)
	emailQueue := database.NewEmailQueueRepository(db)

	// 2. Integrations
	producer := queue.NewProducer(rabbitMQ.Ch)
	paymentsClient := payments.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	manychatClient := manychat.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	mailSender := mail.NewEmailSender(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPassword, cfg.MailFrom)

	// 3. Use cases
	createLeadUC := usecase.NewCreateLeadUseCase(leadRepo, producer)
	confirmer := usecase.NewPaymentConfirmer(paymentsClient, producer, cfg.ConfirmationTTL)
	sweeper := usecase.NewSweepAbandonedCartsUseCase(leadRepo, emailQueue, producer, cfg.CheckoutURL)

	// 4. Workers
	if cfg.EnableLeadSyncWorker {
		consumeCh, err := rabbitMQ.Conn.Channel()
		if err != nil {
			log.Fatalf("❌ rabbitmq consumer channel: %v", err)
		}
		syncWorker := queue.NewWorker(consumeCh, manychatClient)
		syncWorker.OnFailure = func(string, error) { middleware.RecordLeadSyncFailure() }
		go func() {
			if err := syncWorker.Start(ctx, queue.QueueName); err != nil {
				log.Printf("❌ lead sync worker: %v", err)
			}
		}()
	}

	if cfg.EnableSweeper {
		var sweepLock lock.Locker = lock.NoopLock{}
		if redisClient != nil {
			sweepLock = lock.NewRedisLock(redisClient, "abandoned_cart_sweep", 10*time.Minute)
		} else {
			log.Println("⚠️ REDIS_URL not set, sweeper runs without a cross-instance lock")
		}
		go worker.NewAbandonedCartWorker(sweeper, sweepLock, cfg.SweepInterval).Start(ctx)
	}

	if cfg.EnableEmailDispatch && cfg.MailHost != "" {
		go worker.NewEmailDispatchWorker(emailQueue, mailSender).Start(ctx)
	}

	// 5. Handlers
	limiter := handlers.NewRateLimiter(cfg.LeadRateLimit, time.Minute)
	go limiter.StartCleanup(ctx)

	leadHandler := handlers.NewLeadHandler(createLeadUC, limiter)
	confirmationHandler := handlers.NewConfirmationHandler(confirmer)
	previewHandler := handlers.NewPreviewHandler(analytics.NewRecorder(analytics.OriginBeacon))

	var redisPing handlers.RedisPinger
	if redisClient != nil {
		redisPing = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	healthHandler := handlers.NewHealthHandler(db, rabbitMQ.Conn, redisPing)

	// 6. Router
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Post("/leads", leadHandler.CaptureLead)
	r.Get("/checkout/confirm", confirmationHandler.Handle)
	r.Post("/preview/limit", previewHandler.LimitReached)
	r.Get("/health", healthHandler.Handle)
	r.Handle("/metrics", middleware.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("🔥 DJ funnel API listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("❌ server: %v", err)
	}
	log.Println("👋 server stopped")
}
