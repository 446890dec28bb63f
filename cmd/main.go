/**
 * @description
 * This is the main entry point for the wallet-service. It is responsible for
 * initializing all components of the service, including configuration, database connection,
 * external API clients, message brokers, repositories, the core application service,
 * and the HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Redis client for distributed rate limiting.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/payoutclient, pkg/couponclient, pkg/rabbitmq: Clients for external collaborators.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/vendora/wallet-service/internal/api"
	"github.com/vendora/wallet-service/internal/app"
	"github.com/vendora/wallet-service/internal/config"
	"github.com/vendora/wallet-service/internal/store"
	"github.com/vendora/wallet-service/pkg/couponclient"
	"github.com/vendora/wallet-service/pkg/payoutclient"
	rmrabbit "github.com/vendora/wallet-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting wallet-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// The ledger relies on short row-lock transactions; keep connections
	// plentiful so concurrent wallets never queue behind pool exhaustion.
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish wallet events.
	var producer rmrabbit.Publisher
	eventProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rmrabbit.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the client for the external settlement provider.
	payoutClient := payoutclient.NewClient(cfg.PayoutAPIBaseURL, cfg.PayoutAPIKey)

	// Initialize the read-only coupon catalog client. A missing catalog config
	// degrades balance display, never the ledger.
	var couponSource app.CouponSource
	if strings.TrimSpace(cfg.CouponServiceURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"coupon service not configured; balance responses will omit coupons\" env=COUPON_SERVICE_URL")
	} else {
		couponSource = couponclient.NewClient(cfg.CouponServiceURL, cfg.CouponServiceAPIKey)
	}

	// Redis backs the withdrawal-creation rate limiter.
	var limiter app.RateLimiter
	if cfg.WithdrawalsPerHourLimit > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; withdrawal rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; withdrawal rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient := redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; withdrawal rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
				} else {
					defer redisClient.Close()
					limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	walletService := app.NewService(repository, app.ServiceOptions{
		Events:                  producer,
		Coupons:                 couponSource,
		Limiter:                 limiter,
		EventExchange:           cfg.WalletEventExchange,
		WithdrawalsPerHourLimit: cfg.WithdrawalsPerHourLimit,
	})

	// Initialize the API handlers and router.
	walletHandlers := api.NewWalletHandlers(walletService)
	router := api.WalletRoutes(walletHandlers, api.AuthOptions{
		JWKSURL:  cfg.AuthJWKSURL,
		Audience: cfg.AuthAudience,
		Issuer:   cfg.AuthIssuer,
	})

	// Wire up the payout dispatcher and result consumer on the broker.
	dispatcher := app.NewPayoutDispatcher(repository, payoutClient, producer, cfg.WalletEventExchange)
	resultConsumer := app.NewPayoutResultConsumer(repository)

	rabbitConsumer, err := rmrabbit.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq consumer unavailable; payout dispatch disabled\" err=%v", err)
	} else {
		defer rabbitConsumer.Close()
		payoutBindings := map[string]func([]byte) bool{
			app.RoutingKeyPayoutRequested: dispatcher.HandlePayoutRequested,
			app.RoutingKeyPayoutResult:    resultConsumer.HandleMessage,
		}
		if err := rabbitConsumer.ConsumeWithBindings(cfg.WalletEventExchange, cfg.PayoutQueue, payoutBindings); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"payout consumer start failed\" err=%v", err)
		}
	}

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
