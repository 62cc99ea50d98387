package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"payflow/internal/amqp"
	"payflow/internal/audit"
	"payflow/internal/cli"
	"payflow/internal/core"
	apphttp "payflow/internal/http"
	"payflow/internal/ratelimit"
	"payflow/internal/services"
	"payflow/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting payflow")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitLedgerStore(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	limiter := ratelimit.NewLimiter(rdb)

	// The event publisher is optional: without AMQP, transfers still
	// complete and only expense enrichment is skipped.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, transfer events disabled", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
		}
	}

	svc := services.NewTransferService(repo, limiter, audit.NewRecorder(repo), publisher, services.Config{
		Validation: core.ValidationConfig{
			MaxAmountCents:    cfg.MaxAmountCents,
			MaxDescriptionLen: cfg.MaxDescriptionLen,
		},
		RetryBound:   cfg.RetryBound,
		StoreTimeout: cfg.StoreTimeout,
	})

	if os.Getenv("SEED_DEMO_ACCOUNTS") == "1" {
		seedDemoAccounts(context.Background(), repo, cfg.DefaultDailyLimitCents, logger)
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, limiter)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		// Let in-flight audit writes and event publishes land.
		svc.Drain()
		cancel()
	}()

	logger.Info("Starting payflow server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

// seedDemoAccounts provisions two demo accounts for local development.
func seedDemoAccounts(ctx context.Context, repo *storage.SQLiteRepository, dailyLimitCents int64, logger *slog.Logger) {
	demo := []struct {
		handle  string
		name    string
		balance int64
	}{
		{"alice@bank", "Alice", 1_000_00},
		{"bob@bank", "Bob", 1_000_00},
	}

	for _, d := range demo {
		if _, err := repo.GetAccountByHandle(ctx, d.handle); err == nil {
			continue
		} else if !errors.Is(err, core.ErrAccountNotFound) {
			logger.Warn("Demo account lookup failed", "error", err, "handle", d.handle)
			continue
		}

		account := core.Account{
			ID:          uuid.NewString(),
			Handle:      d.handle,
			DisplayName: d.name,
			Balance:     core.Money{Cents: d.balance},
			DailyLimit:  core.Money{Cents: dailyLimitCents},
			SpentOn:     core.Day(time.Now()),
		}
		if err := repo.CreateAccount(ctx, account); err != nil {
			logger.Warn("Demo account creation failed", "error", err, "handle", d.handle)
			continue
		}
		logger.Info("Demo account created", "handle", d.handle, "id", account.ID)
	}
}
