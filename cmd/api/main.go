package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cheerpup/apps/backend/internal/completion"
	"cheerpup/apps/backend/internal/config"
	"cheerpup/apps/backend/internal/db"
	"cheerpup/apps/backend/internal/intake"
	"cheerpup/apps/backend/internal/logger"
	"cheerpup/apps/backend/internal/music"
	"cheerpup/apps/backend/internal/observability"
	"cheerpup/apps/backend/internal/ratelimit"
	"cheerpup/apps/backend/internal/server"
	"cheerpup/apps/backend/internal/store"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	appLog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer appLog.Sync()

	ctx := context.Background()
	shutdownTracing := observability.InitOTel(ctx, appLog, cfg)

	st, closeStore := openStore(ctx, cfg, appLog)
	defer closeStore()

	prompts, err := intake.LoadCatalog(cfg.PromptsFile)
	if err != nil {
		appLog.Fatal("prompt catalog load failed", "path", cfg.PromptsFile, "error", err)
	}

	var verifier music.Verifier
	if strings.TrimSpace(cfg.YouTubeAPIKey) != "" {
		yt, err := music.NewYouTubeVerifier(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			appLog.Warn("youtube verifier disabled", "error", err)
		} else {
			verifier = yt
		}
	}

	var limiter ratelimit.Limiter
	if strings.TrimSpace(cfg.RedisURL) != "" && cfg.DailyIntakeLimit > 0 {
		redisLimiter, err := ratelimit.NewRedisDailyLimiter(ctx, cfg.RedisURL, cfg.DailyIntakeLimit)
		if err != nil {
			appLog.Warn("intake quota disabled (redis unavailable)", "error", err)
		} else {
			defer redisLimiter.Close()
			limiter = redisLimiter
		}
	}

	svc := intake.NewService(intake.Deps{
		Store:     st,
		Completer: newCompleter(cfg, appLog),
		Music:     music.NewFilter(verifier, appLog),
		Limiter:   limiter,
		Prompts:   prompts,
		Log:       appLog,
	}, intake.OptionsFromConfig(cfg))

	app := server.New(cfg, st, svc, appLog)
	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Info("cheerpup api listening", "addr", "http://localhost:"+cfg.AppPort, "store", cfg.StoreDriver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("graceful shutdown failed", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		appLog.Warn("otel shutdown failed", "error", err)
	}
}

func openStore(ctx context.Context, cfg config.Config, appLog *logger.Logger) (store.Store, func()) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		client, database, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			appLog.Fatal("mongo connect failed", "error", err)
		}
		mongoStore := store.NewMongo(database)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			appLog.Fatal("mongo index setup failed", "error", err)
		}
		return mongoStore, func() { _ = client.Disconnect(context.Background()) }
	case config.StoreDriverMemory:
		appLog.Warn("using in-memory store; data is lost on restart")
		return store.NewMemory(), func() {}
	default:
		pool, err := db.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			appLog.Fatal("database connect failed", "error", err)
		}
		if err := store.ValidateRuntimeSchema(ctx, pool); err != nil {
			pool.Close()
			appLog.Fatal("database schema mismatch", "error", err)
		}
		return store.NewPostgres(pool), pool.Close
	}
}

func newCompleter(cfg config.Config, appLog *logger.Logger) completion.Client {
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		switch cfg.AppEnv {
		case "local", "test":
			appLog.Warn("OPENAI_API_KEY not set; using canned completions")
			return completion.MockClient{Model: "mock"}
		}
		appLog.Warn("OPENAI_API_KEY not set; intake calls will fail upstream")
	}
	return completion.NewOpenAIResponsesClient(cfg, appLog)
}
