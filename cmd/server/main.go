package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vortexchat/backend/internal/ai"
	"github.com/vortexchat/backend/internal/chat"
	"github.com/vortexchat/backend/internal/config"
	"github.com/vortexchat/backend/internal/db"
	"github.com/vortexchat/backend/internal/gateway"
	"github.com/vortexchat/backend/internal/httpapi"
	"github.com/vortexchat/backend/internal/httpapi/handlers"
	"github.com/vortexchat/backend/internal/relay"
	"github.com/vortexchat/backend/internal/store/rabbitmq"
	"github.com/vortexchat/backend/internal/subscription"
	"github.com/vortexchat/backend/internal/usage"
)

func main() {
	cfg := config.Load()

	var log *zap.Logger
	var err error
	if cfg.AppEnv == "production" {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	gormDB := db.Connect(cfg.DBDSN)
	if err := gormDB.AutoMigrate(
		&chat.Conversation{},
		&chat.Message{},
		&usage.UsageRecord{},
		&subscription.Subscription{},
	); err != nil {
		log.Fatal("auto migrate failed", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warn("redis unavailable, tier cache disabled", zap.Error(err))
		rdb = nil
	}

	var pub usage.EventPublisher
	if rmq, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue); err != nil {
		log.Warn("rabbitmq unavailable, usage events disabled", zap.Error(err))
	} else {
		defer rmq.Close()
		pub = rmq
	}

	registry := ai.NewRegistry()
	registry.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, model), nil
	})
	registry.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})

	subs := subscription.NewService(gormDB, rdb, subscription.LimitConfig{
		FreeMessagesPerDay:       cfg.FreeMessagesPerDay,
		RegisteredMessagesPerDay: cfg.RegisteredMessagesPerDay,
		PremiumMessagesPerDay:    cfg.PremiumMessagesPerDay,
	}, log)
	ledger := usage.NewLedger(gormDB, subs, pub, log)
	chatSvc := chat.NewService(chat.NewRepo(gormDB), cfg.ChatContextWindowSize)

	source := relay.SourceFunc(func(ctx context.Context, messages []ai.Message, model string) (<-chan string, <-chan error) {
		provider, err := registry.Get(ctx, ai.ProviderNameForModel(model), model)
		if err != nil {
			return failedStream(err)
		}
		sp, ok := provider.(ai.StreamProvider)
		if !ok {
			return failedStream(fmt.Errorf("provider for model %q does not stream", model))
		}
		return sp.StreamChat(ctx, messages)
	})

	rooms := relay.NewRooms()
	rl := relay.NewRelay(rooms, ledger, chatSvc, source, relay.Config{
		DefaultModel:  cfg.DefaultModel,
		HistoryWindow: cfg.ChatContextWindowSize,
		FlushInterval: cfg.FlushInterval,
		FlushMaxChars: cfg.FlushMaxChars,
	}, log)

	ws := gateway.NewHandler(rl, rooms, chatSvc, cfg.JWTSecret, cfg.WSReadBufferSize, cfg.WSWriteBufferSize, log)
	h := handlers.NewHandler(chatSvc, ledger, subs, log)
	router := httpapi.NewRouter(cfg, h, ws, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go cleanupLoop(ctx, ledger, log)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	go func() {
		log.Info("server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}

// cleanupLoop prunes usage records past the retention window once a day.
func cleanupLoop(ctx context.Context, ledger *usage.Ledger, log *zap.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := ledger.CleanupOldRecords(ctx)
			if err != nil {
				log.Error("usage cleanup failed", zap.Error(err))
				continue
			}
			log.Info("usage cleanup done", zap.Int64("deleted", n))
		}
	}
}

func failedStream(err error) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)
	close(chunks)
	errs <- err
	close(errs)
	return chunks, errs
}
