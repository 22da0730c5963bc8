// Cascade Runner — выполняет flows по входящим событиям.
//
// Runner:
//   - Потребляет события магазина из events.inbound
//   - Загружает снапшот flow и обходит граф движком
//   - Выполняет actions (HTTP, лог, задержка)
//   - Публикует уведомления о завершении в executions.finished
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/korzhev/Cascade/internal/actions"
	"github.com/korzhev/Cascade/internal/engine"
	"github.com/korzhev/Cascade/internal/mq"
	"github.com/korzhev/Cascade/internal/repo"
	"github.com/korzhev/Cascade/internal/runner"
	"github.com/korzhev/Cascade/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting cascade-runner")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Репозитории и стор движка
	flowRepo := repo.NewFlowRepo(pool)
	executionRepo := repo.NewExecutionRepo(pool)
	logRepo := repo.NewLogRepo(pool)
	store := repo.NewEngineStore(executionRepo, logRepo)

	// RabbitMQ
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}
	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	publisher := mq.NewPublisher(mqConn, logger)

	// Движок: реестр actions + диспетчер с метриками
	dispatcher := runner.NewMeteredDispatcher(actions.NewDispatcher(actions.DefaultRegistry()))

	var engineOpts []engine.Option
	if v := os.Getenv("MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			engineOpts = append(engineOpts, engine.WithMaxDepth(n))
		}
	}
	eng := engine.New(store, dispatcher, logger, engineOpts...)

	prefetch := 8
	if v := os.Getenv("RUNNER_PREFETCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			prefetch = n
		}
	}

	r := runner.New(eng, flowRepo, publisher, mqConn, logger, runner.Config{
		Prefetch: prefetch,
	})

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", telemetry.MetricsHandler())

	addr := ":8081"
	if v := os.Getenv("RUNNER_PORT"); v != "" {
		addr = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Start блокирует до отмены контекста
	if err := r.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Error("runner error", "error", err)
		os.Exit(1)
	}

	r.Stop()
	logger.Info("cascade-runner stopped")
}
