package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/skyrag-assistant/server/internal/agent"
	"github.com/skyrag-assistant/server/internal/agent/graph"
	"github.com/skyrag-assistant/server/internal/agent/graph/conversations"
	"github.com/skyrag-assistant/server/internal/agent/graph/nodes"
	"github.com/skyrag-assistant/server/internal/agent/model"
	"github.com/skyrag-assistant/server/internal/agent/repo"
	"github.com/skyrag-assistant/server/internal/embedding"
	"github.com/skyrag-assistant/server/internal/ingestion"
	"github.com/skyrag-assistant/server/internal/metrics"
	"github.com/skyrag-assistant/server/internal/retrieval"
	"github.com/skyrag-assistant/server/internal/turnlog"
	"github.com/skyrag-assistant/server/internal/vectorstore"
	"github.com/skyrag-assistant/server/internal/weather"
	logx "github.com/skyrag-assistant/server/pkg/logger"
	pkgpostgres "github.com/skyrag-assistant/server/pkg/postgres"
)

// App holds the wired components shared by the commands.
type App struct {
	Config    *AppConfig
	Assistant *agent.Assistant
	Runner    *graph.Runner
	Store     *vectorstore.Store
	Indexer   *ingestion.PDFIndexer
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics

	pool *pgxpool.Pool
	rdb  *redis.Client
}

type appOptions struct {
	// redisTranscript keeps session transcripts in Redis when REDIS_URL is set
	redisTranscript bool
}

// NewApp connects to Postgres and Gemini and builds the routing graph.
func NewApp(ctx context.Context, cfg *AppConfig, opts appOptions) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Registry: prometheus.NewRegistry()}
	app.Metrics = metrics.New(app.Registry)

	client, err := nodes.NewGenAIClient(ctx, cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	chatModels, err := nodes.NewChatModels(ctx, client, nodes.ChatModelConfig{
		Classifier: &cfg.Classifier,
		Response:   &cfg.Response,
	})
	if err != nil {
		return nil, err
	}
	embedder, err := embedding.NewGeminiEmbedder(client, cfg.Embedding)
	if err != nil {
		return nil, err
	}

	pgCfg := pkgpostgres.Config{URL: cfg.VectorStore.DatabaseURL}
	app.pool, err = pgCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect vector store: %w", err)
	}

	app.Store, err = vectorstore.New(app.pool, vectorstore.Config{
		Collection: cfg.VectorStore.Collection,
		Dimensions: cfg.Embedding.Dimensions,
		Embedder:   embedder,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Indexer, err = ingestion.NewPDFIndexer(ctx, cfg.Ingestion, app.Store)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Runner, err = graph.BuildResponseGraph(ctx, graph.Config{
		ChatModels: chatModels,
		Weather:    weather.NewClient(cfg.Weather),
		Retriever:  retrieval.NewDocumentRetriever(app.Store, cfg.VectorStore.TopK),
		TurnLog:    turnlog.NewFileLogger(cfg.TurnLog),
		Metrics:    app.Metrics,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	transcripts, err := app.transcriptRepository(ctx, opts)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Assistant = agent.NewAssistant(app.Runner, conversations.NewMessagesManager(transcripts, cfg.Conversation))

	return app, nil
}

func (a *App) transcriptRepository(ctx context.Context, opts appOptions) (model.ConversationRepository, error) {
	if !opts.redisTranscript || !a.Config.Redis.Enabled() {
		return repo.NewMemoryConversationRepository(), nil
	}
	rdb, err := a.Config.Redis.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.rdb = rdb
	logx.Info().Msg("Session transcripts stored in Redis")
	return repo.NewRedisConversationRepository(rdb, a.Config.Conversation.TTL), nil
}

// Close releases database connections.
func (a *App) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
