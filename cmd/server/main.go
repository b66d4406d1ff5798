package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"arxivian/internal/config"
	agentsvc "arxivian/internal/domain/services/agent"
	"arxivian/internal/handler"
	"arxivian/internal/middleware"
	"arxivian/internal/observability"
	"arxivian/internal/repository/postgres"
	agentrepo "arxivian/internal/repository/postgres/agent"
	searchrepo "arxivian/internal/repository/postgres/search"
	"arxivian/internal/service/agent/checkpoint"
	"arxivian/internal/service/agent/formatter"
	agentllm "arxivian/internal/service/agent/llm"
	"arxivian/internal/service/agent/orchestrator"
	"arxivian/internal/service/agent/security"
	"arxivian/internal/service/agent/stream"
	"arxivian/internal/service/agent/tools"
	"arxivian/internal/service/chunk"
	"arxivian/internal/service/embeddings"
	"arxivian/internal/service/paper"
	"arxivian/internal/service/pdfparse"
	"arxivian/internal/service/search"
)

const (
	llmCallTimeout           = 30 * time.Second
	maxProposalPapersDefault = 5

	// Graph-level defaults for a request that doesn't override them,
	// mirroring the per-request fallbacks in stream validation; the graph
	// is built once at startup rather than per-request.
	defaultTopK               = 5
	defaultMaxRetrievalAttempts = 3
	defaultGuardrailThreshold = 75
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected", "max_conns", 25, "min_conns", 5)

	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := &postgres.RepositoryConfig{Pool: pool, Tables: tables, Logger: logger}
	txManager := postgres.NewTransactionManager(pool)

	conversationStore := agentrepo.NewPostgresConversationStore(repoConfig, txManager)
	paperStore := agentrepo.NewPostgresPaperStore(repoConfig)
	vectorStore := searchrepo.NewVectorStore(repoConfig)
	lexicalStore := searchrepo.NewLexicalStore(repoConfig)

	embeddingsClient := embeddings.New(cfg.EmbeddingsURL)
	searchService := search.NewService(vectorStore, lexicalStore, embeddingsClient, cfg.RRFK)

	paperClient := paper.New(cfg.ArxivBaseURL)
	pdfParser := pdfparse.New(pdfparse.TextExtractor{})
	chunker := chunk.NewRecursiveSplitter(chunk.DefaultConfig())

	llmClient := agentllm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	scanner := security.NewDefaultRegexScanner()
	convFormatter := formatter.New()

	toolRegistry := tools.NewRegistry("paper_client", "search_service", "paper_store", "embeddings_client")
	ingestLimiter := tools.NewDailyIngestLimiter(paperStore, cfg.DailyIngestQuota)

	maxProposalPapers := cfg.MaxProposalPapers
	if maxProposalPapers <= 0 {
		maxProposalPapers = maxProposalPapersDefault
	}

	for _, t := range []agentsvc.Tool{
		tools.NewArxivSearchTool(paperClient),
		tools.NewRetrieveChunksTool(searchService, defaultTopK),
		tools.NewProposeIngestTool(paperStore, ingestLimiter, maxProposalPapers),
		tools.NewIngestPapersTool(paperClient, pdfParser, chunker, embeddingsClient, paperStore),
	} {
		if err := toolRegistry.Register(t); err != nil {
			log.Fatalf("register tool %s: %v", t.Name(), err)
		}
	}

	classifier := orchestrator.NewClassifier(llmClient, scanner, convFormatter, toolRegistry, llmCallTimeout)
	executor := orchestrator.NewExecutor(toolRegistry)
	evaluator := orchestrator.NewEvaluator(llmClient, llmCallTimeout)
	generator := orchestrator.NewGenerator(llmClient, llmCallTimeout)
	graph := orchestrator.NewGraph(classifier, executor, evaluator, generator, defaultTopK, defaultMaxRetrievalAttempts, defaultGuardrailThreshold)

	checkpointStore := checkpoint.NewStore(cfg.CheckpointTTL)
	defer checkpointStore.Stop()
	idempotencyStore := checkpoint.NewIdempotencyStore(cfg.IdempotencyTTL)
	defer idempotencyStore.Stop()

	taskRegistry := stream.NewTaskRegistry()
	metrics := observability.NewMetrics()
	traceScorer := observability.NewPrometheusTraceScorer()

	streamService := stream.NewService(
		conversationStore,
		checkpointStore,
		idempotencyStore,
		graph,
		toolRegistry,
		taskRegistry,
		cfg,
		logger,
		metrics,
		traceScorer,
	)

	streamHandler := handler.NewStreamHandler(streamService, logger)
	conversationHandler := handler.NewConversationHandler(conversationStore, taskRegistry, logger)

	logger.Info("services initialized")

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     strings.Join([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}, ","),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
		AllowCredentials: true,
	}))

	// Auth stub. Injects a fixed test user ID until Supabase JWT
	// verification (internal/auth) is wired into this middleware.
	app.Use(middleware.AuthMiddleware(cfg.TestUserID))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Post("/stream", streamHandler.Stream)

	conversations := app.Group("/conversations")
	conversations.Get("/", conversationHandler.List)
	conversations.Get("/:session_id", conversationHandler.Get)
	conversations.Delete("/:session_id", conversationHandler.Delete)
	conversations.Post("/:session_id/cancel", conversationHandler.Cancel)

	logger.Info("server listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
