package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rifadigital/raffle-gateway/internal/config"
	"github.com/rifadigital/raffle-gateway/internal/handlers"
	"github.com/rifadigital/raffle-gateway/internal/payments"
	"github.com/rifadigital/raffle-gateway/internal/queue"
	"github.com/rifadigital/raffle-gateway/internal/repository"
	"github.com/rifadigital/raffle-gateway/internal/services"
	"github.com/rifadigital/raffle-gateway/internal/webhook"
	xhttp "github.com/rifadigital/raffle-gateway/pkg/http"
	"github.com/rifadigital/raffle-gateway/pkg/logger"
	"github.com/rifadigital/raffle-gateway/pkg/pg"
	"github.com/rifadigital/raffle-gateway/pkg/prom"
	"github.com/rifadigital/raffle-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 30))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	if config.Get().AppDebugMetricsAddr != "" {
		go prom.ListenAndServer(config.Get().AppDebugMetricsAddr, config.Get().AppDebugMetricsURI)
	}

	confirmations, err := queue.New(redisAdap, queue.Config{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating confirmation queue", "error", err)
		return
	}

	paymentClient, err := payments.NewClient(payments.Config{
		BaseURL:      config.Get().PaymentAPIBaseURL,
		AccessToken:  config.Get().PaymentAccessToken,
		FetchRetries: config.Get().PaymentFetchRetries,
		FetchBackoff: config.Get().PaymentFetchBackoff,
	})
	if err != nil {
		logger.Error("failed creating payment client", "error", err)
		return
	}

	ticketRepo := repository.NewTicketRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)

	// services
	reservationService := services.NewReservationService(ticketRepo,
		config.Get().RaffleMinNumber, config.Get().RaffleMaxNumber)
	checkoutService := services.NewCheckoutService(reservationService, paymentClient, services.CheckoutConfig{
		RaffleID:   config.Get().RaffleID,
		RaffleName: config.Get().RaffleName,
		UnitPrice:  config.Get().RaffleUnitPrice,
		PublicURL:  config.Get().AppBaseURL,
	})
	statsService := services.NewStatsService(ticketRepo, transactionRepo,
		config.Get().RaffleID, config.Get().RaffleMaxNumber-config.Get().RaffleMinNumber+1)
	healthService := services.NewHealthService(db, redisAdap)

	guard := webhook.NewGuard(redisAdap, webhook.DefaultGuardConfig())
	pipeline := webhook.NewPipeline(paymentClient, ticketRepo, transactionRepo, guard, confirmations, webhook.PipelineConfig{
		WebhookSecret: config.Get().PaymentWebhookSecret,
		RaffleID:      config.Get().RaffleID,
	})

	// v1 handlers
	ticketHandler := handlers.NewTicketHandler(reservationService, checkoutService, config.Get().RaffleID)
	statsHandler := handlers.NewStatsHandler(statsService)
	healthHandler := handlers.NewHealthHandler(healthService)
	webhookHandler := handlers.NewWebhookHandler(pipeline)

	g := s.Router.Group("/api/v1")
	handlers.RegisterTicketRoutes(g, ticketHandler)
	handlers.RegisterStatsRoutes(g, statsHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)
	handlers.RegisterWebhookRoutes(g, webhookHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HTTPListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
