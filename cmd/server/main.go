package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"rostra/internal/budget"
	"rostra/internal/config"
	"rostra/internal/events"
	"rostra/internal/handler"
	"rostra/internal/handler/sse"
	"rostra/internal/judge"
	"rostra/internal/llm"
	anthropicprovider "rostra/internal/llm/providers/anthropic"
	openaiprovider "rostra/internal/llm/providers/openai"
	"rostra/internal/middleware"
	"rostra/internal/orchestrator"
	"rostra/internal/pricing"
	"rostra/internal/ratelimit"
	"rostra/internal/safety"
	"rostra/internal/store"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

func main() {
	// .env is optional; production configures through the environment
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}
	var logOut io.Writer = os.Stdout
	if cfg.LogDir != "" {
		f, err := config.SetupLogFile(cfg.LogDir, 10)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer f.Close()
		logOut = io.MultiWriter(os.Stdout, f)
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
	)

	// Session store: redis when configured, in-process map otherwise
	cipher, err := store.NewCipher(cfg.SessionSecret)
	if err != nil {
		log.Fatalf("Failed to derive store key: %v", err)
	}
	var kv store.KV
	if cfg.RedisURL != "" {
		redisKV, err := store.NewRedisKV(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisKV.Close()
		kv = redisKV
		logger.Info("session store backend", "backend", "redis")
	} else {
		kv = store.NewMemoryKV()
		logger.Warn("session store backend is in-process; debates do not survive restarts", "backend", "memory")
	}
	sessionStore := store.New(kv, cipher, logger)

	// Providers: the moderator model plus the two hidden debater families
	registry := llm.NewRegistry(
		anthropicprovider.NewProvider(cfg.AnthropicAPIKey),
		openaiprovider.NewOpenAI(cfg.OpenAIAPIKey),
		openaiprovider.NewXAI(cfg.XAIAPIKey),
	)
	checkProviderHealth(registry, logger)

	// Safety pipeline layers
	patterns, err := safety.NewPatternScreen(cfg.SafetyStrictMode)
	if err != nil {
		log.Fatalf("Failed to load safety catalogue: %v", err)
	}
	var moderationClient safety.ModerationClient
	var embeddingClient safety.EmbeddingClient
	if cfg.OpenAIAPIKey != "" {
		oc := openaisdk.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey))
		if cfg.OpenAIModerationEnabled {
			moderationClient = safety.NewOpenAIModerationClient(&oc)
		}
		if cfg.SemanticFilterEnabled {
			embeddingClient = safety.NewOpenAIEmbeddingClient(&oc)
		}
	}
	pipeline := safety.NewPipeline(
		safety.Config{
			StrictMode:       cfg.SafetyStrictMode,
			EnablePatterns:   true,
			EnableModeration: cfg.OpenAIModerationEnabled,
			EnableSemantic:   cfg.SemanticFilterEnabled,
		},
		patterns,
		safety.NewModeration(moderationClient, logger),
		safety.NewSemanticFilter(embeddingClient, logger),
		logger,
	)

	rates, err := pricing.Load()
	if err != nil {
		log.Fatalf("Failed to load pricing table: %v", err)
	}
	budgetManager := budget.NewManager(sessionStore, rates, budget.Config{
		TokensPerDebate:  cfg.TokenBudgetPerDebate,
		WarningThreshold: cfg.BudgetWarningThreshold,
		HardLimit:        cfg.BudgetHardLimit,
		CostLimitUSD:     cfg.CostLimitUSD,
	})

	bus := events.NewBus(logger)
	go func() {
		for range time.Tick(10 * time.Minute) {
			bus.Cleanup(time.Hour)
		}
	}()

	limiter := ratelimit.New(ratelimit.DefaultQuotas())

	orch := orchestrator.New(
		orchestrator.Config{
			MaxTokensPerTurn: cfg.MaxTokensPerTurn,
			SessionTTL:       cfg.SessionTTL,
		},
		sessionStore, bus, registry, limiter, budgetManager, pipeline, patterns, logger,
	)
	defer orch.Shutdown()

	analyzer := judge.NewAnalyzer(sessionStore, registry, logger)
	orch.SetOnCompleted(func(debateID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := analyzer.Analyze(ctx, debateID, false); err != nil {
			logger.Warn("eager judge analysis failed", "debate_id", debateID, "error", err)
		}
	})

	logger.Info("services initialized")

	mux := handler.NewRouter(handler.Handlers{
		Debate:  handler.NewDebateHandler(orch, sessionStore, logger),
		Events:  handler.NewEventsHandler(bus, sessionStore, sse.DefaultConfig(), logger),
		Summary: handler.NewSummaryHandler(sessionStore, logger),
		Judge:   handler.NewJudgeHandler(analyzer, logger),
		Share:   handler.NewShareHandler(sessionStore, logger),
		Health:  handler.NewHealthHandler(registry),
	})

	var httpHandler http.Handler = mux
	httpHandler = middleware.Recovery(logger)(httpHandler)
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Last-Event-ID"},
		AllowCredentials: true,
	})
	httpHandler = corsHandler.Handler(httpHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// checkProviderHealth probes each configured provider once at startup so a
// bad credential shows up in the logs before the first debate.
func checkProviderHealth(registry *llm.Registry, logger *slog.Logger) {
	for _, p := range registry.All() {
		if !p.IsConfigured() {
			logger.Warn("provider not configured", "provider", p.Type())
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := p.CheckHealth(ctx)
		cancel()
		if err != nil {
			logger.Warn("provider health check failed", "provider", p.Type(), "error", err)
			continue
		}
		logger.Info("provider ready", "provider", p.Type())
	}
}
