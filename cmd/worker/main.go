package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/restockwatch/worker/internal/application/dispatcher"
	"github.com/restockwatch/worker/internal/application/poller"
	"github.com/restockwatch/worker/internal/config"
	"github.com/restockwatch/worker/internal/infrastructure/dynamo"
	"github.com/restockwatch/worker/internal/infrastructure/push"
	s3infra "github.com/restockwatch/worker/internal/infrastructure/s3"
	snsinfra "github.com/restockwatch/worker/internal/infrastructure/sns"
	sqsinfra "github.com/restockwatch/worker/internal/infrastructure/sqs"
	"github.com/restockwatch/worker/internal/provider"
	transporthttp "github.com/restockwatch/worker/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checkTimeout := time.Duration(cfg.CheckTimeoutSeconds) * time.Second
	sendTimeout := time.Duration(cfg.SendTimeoutSeconds) * time.Second

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)
	productRepo := dynamo.NewProductRepo(dynamoClient, cfg.DynamoTables.Products)
	historyRepo := dynamo.NewHistoryRepo(dynamoClient, cfg.DynamoTables.History)
	prefsRepo := dynamo.NewPreferencesRepo(dynamoClient, cfg.DynamoTables.Preferences)

	// SNS: change-event topic + SMS channel.
	snsClient := snsinfra.NewClient(cfg)
	publisher := snsinfra.NewPublisher(snsClient, cfg.EventTopicARN)
	smsSender := snsinfra.NewSMSSender(snsClient, cfg.SMSSenderID)
	if !smsSender.Configured() {
		log.Println("WARN: SMS sender not configured (missing SMS_SENDER_ID); sms channel will fail fast")
	}

	// SQS: notification queue + dead-letter queue.
	sqsClient := sqsinfra.NewClient(cfg)
	queueURL, err := sqsinfra.EnsureQueues(ctx, sqsClient,
		cfg.QueueName, cfg.DeadLetterQueueName, cfg.MaxDeliveryCount, cfg.VisibilitySeconds)
	if err != nil {
		log.Fatalf("queue bootstrap: %v", err)
	}
	queue := sqsinfra.NewQueue(sqsClient, sqsinfra.Options{
		QueueURL:    queueURL,
		Concurrency: cfg.DispatchConcurrency,
	})

	// Retailer adapters: only retailers with credentials are registered;
	// products of other retailers are skipped per tick, not fatal.
	providers := map[string]provider.Provider{}
	if cfg.BestBuyAPIKey != "" {
		providers[provider.RetailerBestBuy] = provider.NewBestBuy(provider.BestBuyOptions{
			APIKey:     cfg.BestBuyAPIKey,
			RPS:        cfg.BestBuyRPS,
			DailyLimit: cfg.BestBuyDailyLimit,
			Timeout:    checkTimeout,
		})
	}
	if cfg.WalmartAPIKey != "" {
		providers[provider.RetailerWalmart] = provider.NewWalmart(provider.WalmartOptions{
			APIKey:  cfg.WalmartAPIKey,
			RPS:     cfg.WalmartRPS,
			Timeout: checkTimeout,
		})
	}
	registry := provider.NewRegistry(providers)
	log.Printf("registered retailers: %v", registry.Retailers())

	pollerDeps := poller.ServiceDeps{
		Products:     productRepo,
		History:      historyRepo,
		Publisher:    publisher,
		Queue:        queue,
		Providers:    registry,
		Concurrency:  cfg.PollConcurrency,
		CheckTimeout: checkTimeout,
		HistoryTTL:   time.Duration(cfg.HistoryTTLDays) * 24 * time.Hour,
		MaxAttempts:  cfg.MaxDeliveryCount,
		Source:       "restockwatch-worker",
	}
	if cfg.EventArchiveBucket != "" {
		pollerDeps.Archive = s3infra.NewArchive(s3infra.NewClient(cfg), cfg.EventArchiveBucket)
	}
	pollSvc := poller.NewService(pollerDeps)

	sched, err := poller.NewScheduler(pollSvc,
		time.Duration(cfg.DefaultPollIntervalSeconds)*time.Second,
		time.Duration(cfg.HighPriorityPollIntervalSeconds)*time.Second,
	)
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}

	dispatchSvc := dispatcher.NewService(dispatcher.ServiceDeps{
		Preferences: prefsRepo,
		SMS:         smsSender,
		Push:        push.NewSender(sendTimeout),
		SendTimeout: sendTimeout,
	})

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		queue.Consume(ctx, func(ctx context.Context, m sqsinfra.Message) error {
			return dispatchSvc.Handle(ctx, m.Request, m.DeliveryCount)
		})
	}()

	sched.Start(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.OpsPort),
		Handler:      transporthttp.NewRouter(&transporthttp.Deps{Scheduler: sched}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Printf("ops server starting on :%s (env=%s)", cfg.OpsPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ops server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("Shutting down worker...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sched.Stop(shutdownCtx)
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		log.Println("WARN: consumer did not drain in time")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Worker stopped")
}
