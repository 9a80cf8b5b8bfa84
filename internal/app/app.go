// Package app собирает зависимости сервиса и управляет его жизненным циклом.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/config"
	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/gateway/toss"
	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/service/cart"
	"github.com/vladislavdragonenkov/shop/internal/service/checkout"
	"github.com/vladislavdragonenkov/shop/internal/service/claim"
	"github.com/vladislavdragonenkov/shop/internal/service/outbox"
	"github.com/vladislavdragonenkov/shop/internal/service/payment"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
	"github.com/vladislavdragonenkov/shop/internal/storage/postgres"
	httpapi "github.com/vladislavdragonenkov/shop/internal/transport/http"
	"github.com/vladislavdragonenkov/shop/internal/version"
)

const shutdownTimeout = 5 * time.Second

// storage объединяет unit of work с outbox-handle и health-примитивами.
type storage interface {
	domain.UnitOfWork
	Outbox() domain.OutboxRepository
}

// Run поднимает хранилище, сервисы, HTTP API, метрики и outbox worker,
// затем блокируется до отмены ctx.
func Run(ctx context.Context, cfg config.Config) error {
	logger := log.WithField("component", "app")

	store, healthHandler, closeStore, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	gateway := initGateway(cfg, logger)

	checkoutSvc := checkout.NewService(store, cart.NewMockService(), nil)
	paymentSvc := payment.NewService(store, gateway, nil)
	claimSvc := claim.NewService(store, nil)

	// Kafka опционален: без брокеров события копятся в outbox.
	producer, worker := initKafka(cfg, store, logger)
	if producer != nil {
		defer func() {
			if err := producer.Close(); err != nil {
				logger.WithError(err).Warn("failed to close kafka producer")
			}
		}()
	}
	if worker != nil {
		go worker.Run(ctx)
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	apiSrv := httpapi.NewServer(checkoutSvc, paymentSvc, claimSvc, nil)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.Start(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := apiSrv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("api shutdown with error")
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// initStorage открывает postgres по DATABASE_URL или падает обратно на
// in-memory хранилище для локальных запусков.
func initStorage(ctx context.Context, cfg config.Config, logger *log.Entry) (storage, *healthcheck.Handler, func(), error) {
	healthHandler := healthcheck.NewHandler(version.GetVersion())

	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL is not set, using in-memory storage")
		return memory.NewStore(), healthHandler, func() {}, nil
	}

	store, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}
	logger.Info("connected to postgres")

	healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return store.Ping(pingCtx)
	}))

	closeStore := func() {
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("failed to close postgres store")
		}
	}
	return store, healthHandler, closeStore, nil
}

// initGateway собирает клиент платёжного шлюза; без секретного ключа
// используется mock (локальная разработка и тесты).
func initGateway(cfg config.Config, logger *log.Entry) domain.PaymentGateway {
	if cfg.Toss.SecretKey == "" {
		logger.Warn("TOSS_SECRET_KEY is not set, using mock payment gateway")
		return payment.NewMockGateway()
	}
	return toss.NewClient(cfg.Toss.BaseURL, cfg.Toss.SecretKey)
}

func initKafka(cfg config.Config, store storage, logger *log.Entry) (*kafka.Producer, *outbox.Worker) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("KAFKA_BROKERS is not set, outbox worker is disabled")
		return nil, nil
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, nil
	}
	logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")

	worker := outbox.NewWorker(
		store.Outbox(),
		kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents),
		outbox.WithDLQPublisher(kafka.NewDLQPublisher(producer)),
		outbox.WithPollInterval(time.Duration(cfg.Outbox.PollIntervalMs)*time.Millisecond),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithMaxAttempts(cfg.Outbox.MaxAttempts),
	)
	return producer, worker
}

// startMetricsServer запускает /metrics и health-эндпоинты на отдельном порту.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
