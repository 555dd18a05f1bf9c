package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/mkasongo/kembo-wallet/internal/api"
	"github.com/mkasongo/kembo-wallet/internal/config"
	"github.com/mkasongo/kembo-wallet/internal/fx"
	"github.com/mkasongo/kembo-wallet/internal/infrastructure/kafka"
	redisinfra "github.com/mkasongo/kembo-wallet/internal/infrastructure/redis"
	"github.com/mkasongo/kembo-wallet/internal/observability"
	"github.com/mkasongo/kembo-wallet/internal/repository/postgres"
	"github.com/mkasongo/kembo-wallet/internal/services"
)

const (
	settlementsTopic = "withdrawal-settlements"
	settlementsGroup = "wallet-settlements"
)

func main() {
	shutdownTracing := observability.Setup("wallet-service")
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	redisClient, err := redisinfra.NewClient(cfg.RedisAddr)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	accounts := postgres.NewAccountRepository(db)
	ledger := postgres.NewLedgerRepository(db)
	goals := postgres.NewGoalRepository(db)
	users := postgres.NewUserRepository(db)
	referralRepo := postgres.NewReferralRepository(db)

	notifier := services.NewKafkaNotifier(producer)
	resolver := services.NewRecipientResolver(users)
	rates := fx.NewClient(cfg.RateAPIURL, cfg.CanonicalCurrency, redisClient)
	converter := fx.NewConverter(rates)

	wallet := services.NewWalletService(
		users, accounts, ledger, resolver, converter,
		redisClient, notifier, cfg.JWTSecret, cfg.DefaultCurrency,
	)
	savings := services.NewSavingsService(accounts, ledger, goals, redisClient, notifier)
	referrals := services.NewReferralService(
		users, accounts, ledger, referralRepo, notifier,
		cfg.ReferralBonus, cfg.DefaultCurrency,
	)
	reconciler := services.NewReconciler(accounts, ledger, notifier, cfg.PendingBound)

	scheduler, err := services.NewScheduler(cfg.SavingsSchedule, cfg.ReconcileSchedule, savings, reconciler)
	if err != nil {
		slog.Error("failed to build scheduler", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, settlementsTopic, settlementsGroup, wallet)
	go consumer.Consume(consumerCtx)
	defer consumer.Close()

	router := api.SetupRouter(wallet, savings, referrals, redisClient, cfg.JWTSecret)
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("tracing shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}
