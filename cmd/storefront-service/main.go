package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexustechhub/storefront-service-go/internal/cart"
	"github.com/nexustechhub/storefront-service-go/internal/catalog"
	"github.com/nexustechhub/storefront-service-go/internal/checkout"
	"github.com/nexustechhub/storefront-service-go/internal/config"
	"github.com/nexustechhub/storefront-service-go/internal/db"
	"github.com/nexustechhub/storefront-service-go/internal/events"
	"github.com/nexustechhub/storefront-service-go/internal/httpapi"
	"github.com/nexustechhub/storefront-service-go/internal/order"
	"github.com/nexustechhub/storefront-service-go/internal/payment"
)

func main() {
	logger := log.New(os.Stdout, "[storefront-service] ", log.LstdFlags|log.Lshortfile)

	cfg := config.Load()

	if err := db.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Fatalf("migrations: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	cartRepo := cart.NewPostgresRepository(pool)
	catalogRepo := catalog.NewPostgresRepository(pool)
	orderRepo := order.NewPostgresRepository(pool)

	processor := payment.NewClient(cfg.PaymentAPIURL, cfg.PaymentAPIKey, cfg.RequestTimeout)
	checkoutSvc := checkout.NewService(cartRepo, processor, checkout.Config{
		Currency:   cfg.Currency,
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
	})

	rabbitConn := events.MustDialRabbit(cfg.RabbitURL)
	defer rabbitConn.Close()

	publisher, err := events.NewPublisher(rabbitConn)
	if err != nil {
		logger.Fatalf("create publisher: %v", err)
	}
	defer publisher.Close()

	router := httpapi.NewRouter(httpapi.Deps{
		Carts:            cartRepo,
		Products:         catalogRepo,
		Orders:           orderRepo,
		Checkout:         checkoutSvc,
		Publisher:        publisher,
		JWTSecret:        cfg.JWTSecret,
		WebhookSecret:    cfg.PaymentWebhookSecret,
		WebhookTolerance: cfg.WebhookTolerance,
		Logger:           logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.RequestTimeout,
	}

	go func() {
		logger.Printf("storefront-service listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
