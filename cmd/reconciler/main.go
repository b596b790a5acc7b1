package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/freshmart/internal/config"
	"github.com/example/freshmart/internal/events"
	"github.com/example/freshmart/internal/reconcile"
	"github.com/example/freshmart/internal/storage"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Reconciler] Configuration error: %v", err)
	}

	consumerGroup := "order-reconciler"

	log.Println("[Reconciler] ========================================")
	log.Println("[Reconciler] FreshMart - Order Reconciliation Service")
	log.Println("[Reconciler] ========================================")
	log.Printf("[Reconciler] Kafka: %v", cfg.Kafka.Brokers)
	log.Printf("[Reconciler] Topic: %s", cfg.Kafka.Topic)
	log.Printf("[Reconciler] Group: %s", consumerGroup)

	db, err := storage.ConnectPostgres(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		log.Fatalf("[Reconciler] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("[Reconciler] Connected to PostgreSQL")

	orderStore := storage.NewPostgresOrderStore(db)
	handler := reconcile.NewHandler(orderStore)

	consumer := events.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, consumerGroup)
	defer consumer.Close()

	go func() {
		log.Println("[Reconciler] Starting event consumer...")
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil {
			if ctx.Err() == nil {
				log.Printf("[Reconciler] Consumer error: %v", err)
			}
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Reconciler] Shutting down...")
	cancel()
}
