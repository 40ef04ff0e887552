package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pesio-ai/be-purchase-requests/internal/client"
	"github.com/pesio-ai/be-purchase-requests/internal/config"
	"github.com/pesio-ai/be-purchase-requests/internal/database"
	"github.com/pesio-ai/be-purchase-requests/internal/handler"
	"github.com/pesio-ai/be-purchase-requests/internal/logger"
	"github.com/pesio-ai/be-purchase-requests/internal/middleware"
	"github.com/pesio-ai/be-purchase-requests/internal/notify"
	"github.com/pesio-ai/be-purchase-requests/internal/repository"
	"github.com/pesio-ai/be-purchase-requests/internal/repository/memory"
	"github.com/pesio-ai/be-purchase-requests/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Str("store", cfg.Store.Backend).
		Msg("Starting Purchase Requests Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize store
	var store repository.Store
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		mem := memory.New()
		for _, entry := range cfg.Store.SeedUsers {
			id, role, ok := strings.Cut(entry, ":")
			if !ok {
				log.Warn().Str("entry", entry).Msg("Ignoring malformed seed user; expected id:role")
				continue
			}
			mem.AddUser(repository.User{ID: id, Name: id, Role: role, IsActive: true})
		}
		store = mem
		log.Info().Int("seed_users", len(cfg.Store.SeedUsers)).Msg("Using in-memory store")

	default:
		db, err := database.New(ctx, database.Config{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			Database:    cfg.Database.Database,
			SSLMode:     cfg.Database.SSLMode,
			MaxConns:    cfg.Database.MaxConns,
			MinConns:    cfg.Database.MinConns,
			MaxConnTime: cfg.Database.MaxConnTime,
			MaxIdleTime: cfg.Database.MaxIdleTime,
			HealthCheck: cfg.Database.HealthCheck,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()
		store = repository.NewPostgresStore(db)
		log.Info().Msg("Database connection established")
	}

	// Notification sinks
	sinks := []notify.Sink{notify.NewStoreSink(store.Notifications())}
	if cfg.NATS.Enabled {
		nc, err := client.Connect(cfg.NATS.URL, cfg.Service.Name, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Drain()
		sinks = append(sinks, client.NewNotificationPublisher(nc, cfg.NATS.SubjectPrefix, log.Logger))
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS notification publisher enabled")
	}

	dispatcher := notify.NewDispatcher(notify.Config{
		QueueSize:       cfg.Notifications.QueueSize,
		DeliveryTimeout: cfg.Notifications.DeliveryTimeout,
	}, log, sinks...)

	// Initialize services
	engine := service.NewApprovalEngine(log)
	requestService := service.NewPurchaseRequestService(store, engine, dispatcher, log)
	ruleService := service.NewRuleService(store, log)
	notificationService := service.NewNotificationService(store)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(requestService, ruleService, notificationService, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	httpHandler.Register(mux)

	// Apply middleware
	var h http.Handler = mux
	h = middleware.Metrics(h)
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS(cfg.Server.CORSOrigins)(h)
	h = middleware.Timeout(cfg.Server.RequestTimeout)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Start gRPC server
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		handler.UnaryRequestID(),
		handler.UnaryLogger(log.Logger),
	))
	handler.RegisterPurchaseRequestServiceServer(grpcServer, handler.NewGRPCHandler(requestService, log.Logger))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(handler.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer) // Enable reflection for debugging

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gRPC listener")
	}

	go func() {
		log.Info().Int("port", cfg.Server.GRPCPort).Msg("Starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Error().Err(err).Msg("gRPC server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Stop gRPC server gracefully
	grpcServer.GracefulStop()

	// Deliver what is still queued before the store closes.
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Notification queue not fully drained")
	}

	log.Info().Msg("Server stopped")
}
