package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CaoNguyen-1883/HTTM-sub001/internal/cache"
	"github.com/CaoNguyen-1883/HTTM-sub001/internal/cart"
	"github.com/CaoNguyen-1883/HTTM-sub001/internal/catalog"
	"github.com/CaoNguyen-1883/HTTM-sub001/internal/db"
	"github.com/CaoNguyen-1883/HTTM-sub001/internal/events"
	httpapi "github.com/CaoNguyen-1883/HTTM-sub001/internal/http"
	"github.com/CaoNguyen-1883/HTTM-sub001/internal/inventory"
	"github.com/CaoNguyen-1883/HTTM-sub001/internal/order"
	"github.com/CaoNguyen-1883/HTTM-sub001/internal/sequence"
)

func main() {
	port := getEnv("PORT", "8080")

	logger := log.New(os.Stdout, "[storefront] ", log.LstdFlags|log.Lshortfile)

	dsn := os.Getenv("STOREFRONT_DB_DSN")
	if dsn == "" {
		logger.Fatal("STOREFRONT_DB_DSN not set")
	}
	if err := db.RunMigrations(dsn, logger); err != nil {
		logger.Fatalf("run migrations: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := db.MustOpen(ctx)
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: getEnv("REDIS_ADDR", "localhost:6379")})
	defer rdb.Close()

	rabbitConn := events.MustDialRabbit()
	defer rabbitConn.Close()

	sequences := sequence.NewRepository(pool)
	publisher, err := events.NewPublisher(rabbitConn, sequences)
	if err != nil {
		logger.Fatalf("create publisher: %v", err)
	}

	catalogRepo := catalog.NewPostgresRepository(pool)
	ledger := inventory.NewLedger(pool)
	cartRepo := cart.NewPostgresRepository(pool)
	viewCache := cache.NewRedisViewCache(rdb)
	tracker := events.NewViewTracker(publisher, logger)

	cartSvc := cart.NewService(cartRepo, catalogRepo, ledger, viewCache, tracker, logger)
	orderSvc := order.NewService(pool, order.NewPostgresRepository(pool), cartRepo, catalogRepo,
		ledger, order.NewNumberGenerator(sequences), cartSvc, publisher, nil, logger)

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:  logger,
		Cart:    cartSvc,
		Orders:  orderSvc,
		Catalog: catalogRepo,
		Stock:   ledger,
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("storefront listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errCh:
		logger.Fatalf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown error: %v", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Printf("publisher close error: %v", err)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
