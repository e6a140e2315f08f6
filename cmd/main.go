package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinwatch/internal/handler"
	"coinwatch/internal/repo"
	"coinwatch/internal/service"
	"coinwatch/pkg/database"
	"coinwatch/pkg/integrations/memcache"
	"coinwatch/pkg/integrations/providers"
	"coinwatch/pkg/integrations/pubsub"
	"coinwatch/pkg/integrations/redissink"
	"coinwatch/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	utils.LoadEnv()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPath := utils.GetEnv("DB_PATH", "./data/coinwatch.db")
	db, err := database.New(database.WithPath(dbPath))
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	repository, err := repo.New(db.Get())
	if err != nil {
		log.Fatal("Failed to create repository:", err)
	}

	if err := repository.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	provider := providers.NewService()

	priceCh := make(chan []byte, 10)
	priceSSECh := make(chan []byte, 10)
	pricePublisher := pubsub.New(
		pubsub.WithChannel(priceCh),
		pubsub.WithContext(ctx),
		pubsub.WithTopic("prices"),
		pubsub.WithLogger(logger),
		pubsub.WithHandler(func(data []byte) error {
			select {
			case priceSSECh <- data:
			default:
				logger.Warn("price stream channel full, dropping message")
			}
			return nil
		}),
	)
	if err := pricePublisher.Subscribe(); err != nil {
		log.Fatal("Failed to start price subscriber:", err)
	}

	alertCh := make(chan []byte, 10)
	alertSSECh := make(chan []byte, 10)
	alertPublisher := pubsub.New(
		pubsub.WithChannel(alertCh),
		pubsub.WithContext(ctx),
		pubsub.WithTopic("alerts"),
		pubsub.WithLogger(logger),
		pubsub.WithHandler(func(data []byte) error {
			select {
			case alertSSECh <- data:
			default:
				logger.Warn("alert stream channel full, dropping message")
			}
			return nil
		}),
	)
	if err := alertPublisher.Subscribe(); err != nil {
		log.Fatal("Failed to start alert subscriber:", err)
	}

	pollerOpts := []service.PollerOption{
		service.WithPollerContext(ctx),
		service.WithPollerLogger(logger),
		service.WithPollerProvider(provider),
		service.WithPollerCache(memcache.New[string, service.Entry]()),
		service.WithPollerPublisher(pricePublisher),
		service.WithPollerRepo(repository),
		service.WithPollerHistory(repository),
		service.WithPollerInterval(utils.GetEnvDuration("POLL_INTERVAL", 30*time.Second)),
		service.WithPollerBackoffBase(utils.GetEnvDuration("BACKOFF_BASE", 5*time.Second)),
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       utils.GetEnvInt("REDIS_DB", 0),
		})
		snapshots, err := redissink.New(
			redissink.WithClient(client),
			redissink.WithLogger(logger),
		)
		if err != nil {
			log.Fatal("Failed to create redis sink:", err)
		}
		if err := snapshots.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, snapshots disabled", "addr", addr, "error", err)
		} else {
			pollerOpts = append(pollerOpts, service.WithPollerSnapshotSink(snapshots))
		}
	}

	poller, err := service.NewMarketPoller(pollerOpts...)
	if err != nil {
		log.Fatal("Failed to create market poller:", err)
	}

	historySvc, err := service.NewHistoryService(
		service.WithHistoryContext(ctx),
		service.WithHistoryLogger(logger),
		service.WithHistoryStore(repository),
		service.WithHistoryProvider(provider),
		service.WithHistoryRetention(time.Duration(utils.GetEnvInt("RETENTION_DAYS", 90))*24*time.Hour),
	)
	if err != nil {
		log.Fatal("Failed to create history service:", err)
	}

	alertSvc, err := service.NewAlertService(
		service.WithAlertContext(ctx),
		service.WithAlertLogger(logger),
		service.WithAlertStore(repository),
		service.WithAlertPoller(poller),
		service.WithAlertPublisher(alertPublisher),
	)
	if err != nil {
		log.Fatal("Failed to create alert service:", err)
	}

	if err := poller.Start(); err != nil {
		log.Fatal("Failed to start market poller:", err)
	}
	if err := historySvc.Start(); err != nil {
		log.Fatal("Failed to start history service:", err)
	}
	if err := alertSvc.Start(); err != nil {
		log.Fatal("Failed to start alert service:", err)
	}

	r := gin.Default()

	h, err := handler.New(
		handler.WithEngine(r),
		handler.WithRepository(repository),
		handler.WithPoller(poller),
		handler.WithHistoryService(historySvc),
		handler.WithAlertService(alertSvc),
		handler.WithPriceChannel(priceSSECh),
		handler.WithAlertChannel(alertSSECh),
		handler.WithMaxStaleness(utils.GetEnvDuration("MAX_STALENESS", 30*time.Second)),
	)
	if err != nil {
		log.Fatal("Failed to create handler:", err)
	}
	if err := h.Setup(); err != nil {
		log.Fatal("Failed to setup routes:", err)
	}

	port := utils.GetEnv("APP_PORT", "8080")
	srv := &http.Server{Addr: ":" + port, Handler: r}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("starting coinwatch", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-sigCh
	logger.Info("shutting down...")
	cancel()
	poller.Stop()
	historySvc.Stop()
	alertSvc.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
}
