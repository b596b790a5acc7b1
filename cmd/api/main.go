package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/freshmart/internal/api"
	"github.com/example/freshmart/internal/catalog"
	"github.com/example/freshmart/internal/config"
	"github.com/example/freshmart/internal/email"
	"github.com/example/freshmart/internal/events"
	"github.com/example/freshmart/internal/identity"
	"github.com/example/freshmart/internal/orders"
	"github.com/example/freshmart/internal/storage"
)

const sessionTTL = 30 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[API] Configuration error: %v", err)
	}

	log.Println("[API] ========================================")
	log.Println("[API] FreshMart Storefront")
	log.Println("[API] ========================================")
	log.Printf("[API] Kafka: %v", cfg.Kafka.Brokers)
	log.Printf("[API] Topic: %s", cfg.Kafka.Topic)

	// Kafka producer for order events
	producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer producer.Close()

	// PostgreSQL connection
	db, err := storage.ConnectPostgres(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("[API] Connected to PostgreSQL")

	// Repositories
	productStore := storage.NewPostgresProductStore(db)
	cartStore := storage.NewPostgresCartStore(db)
	addressStore := storage.NewPostgresAddressStore(db)
	orderStore := storage.NewPostgresOrderStore(db)
	userStore := storage.NewPostgresUserStore(db)

	// Services
	mailer := email.NewService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From)
	jwtService := identity.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry, cfg.Auth.RefreshTokenExpiry)
	identitySvc := identity.NewService(userStore, mailer, cfg.Auth.ResetTokenExpiry, cfg.SMTP.BaseURL)
	catalogSvc := catalog.NewService(productStore)
	history := orders.NewHistory(orderStore)

	// Per-browser sessions own the identity provider and the cart store
	sessions := api.NewSessionManager(cartStore, sessionTTL)
	defer sessions.Close()

	handlers := api.NewHandlers(catalogSvc, history, sessions, userStore, addressStore, orderStore, producer, mailer, cfg.Server.CheckoutTimeout)
	authHandlers := api.NewAuthHandlers(identitySvc, jwtService, userStore, sessions)
	router := api.NewRouter(handlers, authHandlers, jwtService, os.Getenv("WEB_DIR"))

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Println("[API] ========================================")
		log.Printf("[API] Server started on %s", cfg.Server.Addr)
		log.Println("[API] ========================================")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
}
