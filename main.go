package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"ms-raffles/internal/auth"
	"ms-raffles/internal/cache"
	"ms-raffles/internal/config"
	"ms-raffles/internal/database"
	"ms-raffles/internal/kafka"
	"ms-raffles/internal/ledger"
	"ms-raffles/internal/logger"
	"ms-raffles/internal/models"
	"ms-raffles/internal/raffle"
	raffledb "ms-raffles/internal/raffle/db"
	"ms-raffles/internal/raffle/qr"
	"ms-raffles/internal/raffle/raffle_api"
	"ms-raffles/internal/raffle/service"
	"ms-raffles/internal/runtime"
	"ms-raffles/internal/sse"
	"ms-raffles/internal/system"
)

func openLedger(ctx context.Context, cfg *config.Config, bunDB *bun.DB, logger *logger.Logger) ledger.Store {
	switch cfg.Ledger.Backend {
	case "memory":
		logger.Warn("LEDGER", "Using the in-memory ledger, state is lost on restart")
		return ledger.NewMemoryStore()
	case "sql":
		store := ledger.NewDB(bunDB)
		if err := store.Init(ctx); err != nil {
			logger.Fatal("LEDGER", fmt.Sprintf("Failed to initialize ledger: %v", err))
		}
		return store
	default:
		logger.Fatal("CONFIG", fmt.Sprintf("Unknown LEDGER_BACKEND %q", cfg.Ledger.Backend))
		return nil
	}
}

// connectCache returns nil when Redis is disabled or unreachable; reads then
// go straight to the ledger.
func connectCache(cfg *config.Config, logger *logger.Logger) (service.TicketCache, func()) {
	if !cfg.Redis.Enabled {
		logger.Info("REDIS", "Ticket cache disabled")
		return nil, func() {}
	}
	client, err := cache.Connect(cfg.Redis.Addr, logger)
	if err != nil {
		logger.Warn("REDIS", fmt.Sprintf("Ticket cache unavailable, continuing without it: %v", err))
		return nil, func() {}
	}
	return cache.NewTicketCache(client, cfg.Redis.CacheTTL, logger), func() { client.Close() }
}

// wireEvents connects the dispatcher to its sinks. With Kafka enabled, SSE
// and the projections are fed from the topics so every node sees every event.
func wireEvents(ctx context.Context, cfg *config.Config, dispatcher *service.Dispatcher, emitter *sse.RaffleEventEmitter, projection *service.Projection, logger *logger.Logger) func() {
	if !cfg.Kafka.Enabled {
		dispatcher.Sinks = append(dispatcher.Sinks, emitter, projection)
		logger.Info("KAFKA", "Kafka disabled, events are delivered in-process")
		return func() {}
	}

	brokers := cfg.Kafka.Brokers
	if err := kafka.EnsureTopicsExist(brokers, cfg.Kafka.Topics.All(), logger); err != nil {
		logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		logger.Info("KAFKA", "Required topics ensured successfully")
	}

	producer := kafka.NewProducer(brokers, kafka.TopicRoutes(cfg.Kafka.Topics), logger)
	dispatcher.Sinks = append(dispatcher.Sinks, producer)
	logger.Info("KAFKA", "Kafka producer initialized successfully")

	consumer := kafka.NewConsumer(brokers, cfg.Kafka.Topics.All(), cfg.Kafka.GroupID, logger)
	go consumer.Start(ctx, func(ev models.RaffleEvent) {
		emitter.Emit(ev)
		if err := projection.Publish(ctx, &ev); err != nil {
			logger.Error("EVENTS", fmt.Sprintf("Failed to project %s for raffle %s: %v", ev.Name, ev.Raffle, err))
		}
	})

	return func() {
		if err := consumer.Close(); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Consumer close: %v", err))
		}
		if err := producer.Close(); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Producer close: %v", err))
		}
	}
}

func main() {
	logger := logger.NewLogger("raffle-node")
	defer logger.Close()

	logger.Info("APP", "Starting Raffle Node initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	programID, err := solana.PublicKeyFromBase58(cfg.Ledger.ProgramID)
	if err != nil {
		logger.Fatal("CONFIG", fmt.Sprintf("Invalid RAFFLE_PROGRAM_ID %q: %v", cfg.Ledger.ProgramID, err))
	}

	bunDB, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()
	if err := database.Prepare(ctx, bunDB, cfg.Database, logger); err != nil {
		logger.Fatal("MIGRATE", fmt.Sprintf("Failed to prepare schema: %v", err))
	}

	store := openLedger(ctx, cfg, bunDB, logger)
	clock := runtime.SystemClock{}
	rt := runtime.New(store, clock, logger,
		system.NewProgram(),
		raffle.NewProgram(programID, logger),
	)
	logger.Info("LEDGER", fmt.Sprintf("Raffle program %s registered on %s ledger", programID, cfg.Ledger.Backend))

	ticketCache, closeCache := connectCache(cfg, logger)
	defer closeCache()

	emitter := sse.NewRaffleEventEmitter()
	dispatcher := service.NewDispatcher(logger)
	raffleService := service.NewRaffleService(store, &raffledb.DB{Bun: bunDB}, ticketCache, dispatcher, clock, programID, logger)
	closeEvents := wireEvents(ctx, cfg, dispatcher, emitter, &service.Projection{Service: raffleService}, logger)
	defer closeEvents()

	verifier, err := auth.NewVerifier(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatal("AUTH", fmt.Sprintf("Failed to set up token verification: %v", err))
	}
	if verifier == nil {
		logger.Warn("AUTH", "No ADMIN_JWT_SECRET or OIDC_ISSUER set, admin routes are disabled")
	}

	handler := &raffle_api.Handler{
		Node:          rt,
		RaffleService: raffleService,
		Events:        dispatcher,
		Emitter:       emitter,
		QRGenerator:   qr.NewQRGenerator(cfg.QR.SecretKey),
		Verifier:      verifier,
		MaxAirdrop:    cfg.Ledger.MaxAirdrop,
		Logger:        logger,
	}

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(raffle_api.RequestLogger(logger))
	handler.RegisterRoutes(r)
	logger.Info("ROUTER", "Raffle routes registered under /api")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Raffle Node running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Raffle Node shutdown complete")
	}
}
