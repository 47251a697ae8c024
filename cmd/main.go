package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"orderflow/internal/adapter/artifact"
	"orderflow/internal/adapter/logger"
	"orderflow/internal/adapter/postgres"
	"orderflow/internal/adapter/rabbitmq"
	"orderflow/internal/app/analytics"
	"orderflow/internal/app/delivery"
	"orderflow/internal/app/kitchen"
	"orderflow/internal/app/orders"
	"orderflow/internal/config"
	"orderflow/internal/interfaces"

	amqpAdapter "orderflow/internal/adapter/amqp"
	httpAdapter "orderflow/internal/adapter/http"
)

func main() {
	mode := flag.String("mode", "", "Service mode: orders-service, kitchen-service, delivery-service, analytics-service")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	prefetch := flag.Int("prefetch", 1, "RabbitMQ prefetch count")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	if *mode == "" {
		log.Fatal("--mode flag is required")
	}

	// Local development convenience; absent .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port == 0 {
		*port = cfg.HTTP.Port
	}

	ctx := context.Background()
	lgr := logger.New(*mode)

	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	lgr.Info("db_connected", "Connected to PostgreSQL database", "startup", map[string]interface{}{
		"host": cfg.Database.Host,
		"db":   cfg.Database.Database,
	})

	mqConn, err := rabbitmq.Connect(cfg.RabbitMQ)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer mqConn.Close()

	lgr.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", map[string]interface{}{
		"host": cfg.RabbitMQ.Host,
	})

	switch *mode {
	case "orders-service":
		runOrdersService(ctx, db, mqConn, lgr, *port, *prefetch)
	case "kitchen-service":
		runKitchenService(ctx, db, mqConn, lgr, *port, *prefetch)
	case "delivery-service":
		runDeliveryService(ctx, db, mqConn, lgr, *port, *prefetch)
	case "analytics-service":
		runAnalyticsService(ctx, db, mqConn, lgr, *port, *prefetch)
	default:
		log.Fatalf("Invalid mode: %s", *mode)
	}
}

func runOrdersService(ctx context.Context, db postgres.DB, mqConn rabbitmq.Connection, lgr logger.Logger, port, prefetch int) {
	orderRepo := postgres.NewOrderRepository(db)
	deliveryRepo := postgres.NewDeliveryRepository(db)
	publisher := rabbitmq.NewPublisher(mqConn)
	consumer := rabbitmq.NewConsumer(mqConn, lgr, prefetch)

	service := orders.NewService(orderRepo, deliveryRepo, publisher, lgr)
	handler := httpAdapter.NewOrderHandler(service, lgr)
	syncHandler := amqpAdapter.NewOrdersHandler(service, lgr)

	mux := http.NewServeMux()
	mux.HandleFunc("/orders", handler.HandleOrders)
	mux.HandleFunc("/orders/", handler.HandleOrder)

	startConsumer(ctx, consumer, syncHandler.Queue(), syncHandler.Bindings(), syncHandler.Handle, lgr)
	serve(mux, lgr, "Orders Service", port)
}

func runKitchenService(ctx context.Context, db postgres.DB, mqConn rabbitmq.Connection, lgr logger.Logger, port, prefetch int) {
	ticketRepo := postgres.NewTicketRepository(db)
	orderRepo := postgres.NewOrderRepository(db)
	publisher := rabbitmq.NewPublisher(mqConn)
	consumer := rabbitmq.NewConsumer(mqConn, lgr, prefetch)
	artifacts := artifact.NewStore("kitchen-receipts", lgr)

	service := kitchen.NewService(ticketRepo, orderRepo, publisher, artifacts, lgr)
	handler := httpAdapter.NewKitchenHandler(service, lgr)
	syncHandler := amqpAdapter.NewKitchenHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/kitchen/orders", handler.HandleQueue)
	mux.HandleFunc("/kitchen/orders/", handler.HandleTicket)
	mux.HandleFunc("/kitchen/metrics/sync", handler.HandleSync)

	startConsumer(ctx, consumer, syncHandler.Queue(), syncHandler.Bindings(), syncHandler.Handle, lgr)
	serve(mux, lgr, "Kitchen Service", port)
}

func runDeliveryService(ctx context.Context, db postgres.DB, mqConn rabbitmq.Connection, lgr logger.Logger, port, prefetch int) {
	deliveryRepo := postgres.NewDeliveryRepository(db)
	staffRepo := postgres.NewStaffRepository(db)
	orderRepo := postgres.NewOrderRepository(db)
	publisher := rabbitmq.NewPublisher(mqConn)
	consumer := rabbitmq.NewConsumer(mqConn, lgr, prefetch)
	artifacts := artifact.NewStore("delivery-proofs", lgr)

	service := delivery.NewService(deliveryRepo, staffRepo, orderRepo, publisher, artifacts, lgr)
	handler := httpAdapter.NewDeliveryHandler(service, lgr)
	syncHandler := amqpAdapter.NewDeliveryHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/deliveries", handler.HandleDeliveries)
	mux.HandleFunc("/deliveries/", handler.HandleDelivery)
	mux.HandleFunc("/deliveries/orders/", handler.HandleLocation)
	mux.HandleFunc("/deliveries/metrics/sync", handler.HandleSync)

	startConsumer(ctx, consumer, syncHandler.Queue(), syncHandler.Bindings(), syncHandler.Handle, lgr)
	serve(mux, lgr, "Delivery Service", port)
}

func runAnalyticsService(ctx context.Context, db postgres.DB, mqConn rabbitmq.Connection, lgr logger.Logger, port, prefetch int) {
	metricRepo := postgres.NewMetricRepository(db)
	orderRepo := postgres.NewOrderRepository(db)
	ticketRepo := postgres.NewTicketRepository(db)
	deliveryRepo := postgres.NewDeliveryRepository(db)
	consumer := rabbitmq.NewConsumer(mqConn, lgr, prefetch)

	service := analytics.NewService(metricRepo, orderRepo, ticketRepo, deliveryRepo, lgr)
	handler := httpAdapter.NewAnalyticsHandler(service, lgr)
	syncHandler := amqpAdapter.NewAnalyticsHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/analytics/kpis", handler.HandleKPIs)
	mux.HandleFunc("/analytics/dashboard", handler.HandleDashboard)

	startConsumer(ctx, consumer, syncHandler.Queue(), syncHandler.Bindings(), syncHandler.Handle, lgr)
	serve(mux, lgr, "Analytics Service", port)
}

func startConsumer(ctx context.Context, consumer interfaces.EventConsumer, queue string, bindings []string, handler interfaces.EventHandler, lgr logger.Logger) {
	go func() {
		if err := consumer.Consume(ctx, queue, bindings, handler); err != nil {
			lgr.Error("consumer_error", "Event consumer stopped", "runtime", map[string]interface{}{
				"queue": queue,
			}, err)
		}
	}()
}

func serve(mux *http.ServeMux, lgr logger.Logger, name string, port int) {
	handler := httpAdapter.LoggingMiddleware(lgr)(mux)
	handler = httpAdapter.RecoveryMiddleware(lgr)(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lgr.Info("service_started", fmt.Sprintf("%s started on port %d", name, port), "startup", map[string]interface{}{
		"port": port,
	})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		lgr.Info("shutdown_initiated", "Shutting down "+name, "shutdown", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			lgr.Error("shutdown_error", "Error during shutdown", "shutdown", nil, err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		lgr.Error("server_error", "Server error", "runtime", nil, err)
	}
}
