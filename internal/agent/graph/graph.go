package graph

import (
	"context"
	"fmt"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"

	"github.com/skyrag-assistant/server/internal/agent/graph/nodes"
	"github.com/skyrag-assistant/server/internal/agent/graph/observers"
	"github.com/skyrag-assistant/server/internal/agent/model"
	"github.com/skyrag-assistant/server/internal/metrics"
	"github.com/skyrag-assistant/server/internal/retrieval"
	logx "github.com/skyrag-assistant/server/pkg/logger"
)

// maxRunSteps bounds a run. The graph is acyclic with at most four node
// executions per turn.
const maxRunSteps = 10

// TurnLogger persists a completed turn.
type TurnLogger interface {
	Append(ctx context.Context, state *model.TurnState) error
}

// Config holds everything needed to compose the routing graph end-to-end.
// This is a convenience layer over GraphConfig that also builds the
// classifier and synthesizer from ChatModels.
type Config struct {
	ChatModels *nodes.ChatModels
	Weather    nodes.WeatherFetcher
	Retriever  nodes.ContextRetriever
	TurnLog    TurnLogger
	Metrics    *metrics.Metrics
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	Classifier        *nodes.Classifier
	Synthesizer       *nodes.Synthesizer
	Weather           nodes.WeatherFetcher
	Retriever         nodes.ContextRetriever
	IntentModelName   string
	ResponseModelName string
}

// GraphBuilder handles the construction of the routing graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[*model.TurnState, *model.TurnState]
}

// Runner executes one turn per query: a fresh state through the compiled
// graph, then one turn log record.
type Runner struct {
	runnable compose.Runnable[*model.TurnState, *model.TurnState]
	turnLog  TurnLogger
	metrics  *metrics.Metrics
	handlers []einocb.Handler
}

func NewRunner(runnable compose.Runnable[*model.TurnState, *model.TurnState], turnLog TurnLogger, m *metrics.Metrics) *Runner {
	return &Runner{
		runnable: runnable,
		turnLog:  turnLog,
		metrics:  m,
		handlers: observers.NewAllCallbacks(m),
	}
}

// RunTurn processes query and returns the completed turn state. Failures of
// the classifier, the synthesizer or the turn log are returned as errors.
func (r *Runner) RunTurn(ctx context.Context, query string) (*model.TurnState, error) {
	state := model.NewTurnState(query)
	logx.Debug().Str("turn_id", state.TurnID).Str("query", query).Msg("Turn started")

	out, err := r.runnable.Invoke(ctx, state, compose.WithCallbacks(r.handlers...))
	if err != nil {
		r.countQuery(state.Intent, "error")
		logx.Error().Err(err).Str("turn_id", state.TurnID).Msg("Turn failed")
		return nil, err
	}
	if out == nil || !out.Completed() {
		r.countQuery(state.Intent, "error")
		return nil, fmt.Errorf("turn %s finished without a response", state.TurnID)
	}
	r.countDegraded(out)

	if err := r.turnLog.Append(ctx, out); err != nil {
		r.countQuery(out.Intent, "error")
		logx.Error().Err(err).Str("turn_id", out.TurnID).Msg("Turn log append failed")
		return nil, err
	}

	r.countQuery(out.Intent, "ok")
	logx.Info().
		Str("turn_id", out.TurnID).
		Str("intent", string(out.Intent)).
		Float64("total_cost_usd", out.TotalCostUSD).
		Msg("Turn completed")
	return out, nil
}

// Run processes query and returns the final response text.
func (r *Runner) Run(ctx context.Context, query string) (string, error) {
	state, err := r.RunTurn(ctx, query)
	if err != nil {
		return "", err
	}
	return state.FinalResponse, nil
}

func (r *Runner) countQuery(intent model.Intent, outcome string) {
	if r.metrics == nil {
		return
	}
	if intent == model.IntentUnset {
		intent = "unclassified"
	}
	r.metrics.QueriesTotal.WithLabelValues(string(intent), outcome).Inc()
}

func (r *Runner) countDegraded(state *model.TurnState) {
	if r.metrics == nil {
		return
	}
	if _, failed := model.WeatherErrorOf(state.WeatherData); failed {
		r.metrics.DegradedFetches.WithLabelValues("weather").Inc()
	}
	if retrieval.IsErrorContext(state.PDFContext) {
		r.metrics.DegradedFetches.WithLabelValues("retrieval").Inc()
	}
}

// BuildResponseGraph wires classifier and synthesizer from the chat models,
// builds the graph, and returns a Runner.
func BuildResponseGraph(ctx context.Context, cfg Config) (*Runner, error) {
	if cfg.ChatModels == nil || cfg.ChatModels.Intent == nil || cfg.ChatModels.Response == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if cfg.TurnLog == nil {
		return nil, fmt.Errorf("turn log is nil")
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{
		Classifier:        nodes.NewClassifier(cfg.ChatModels.Intent, cfg.ChatModels.IntentModelName),
		Synthesizer:       nodes.NewSynthesizer(cfg.ChatModels.Response, cfg.ChatModels.ResponseModelName),
		Weather:           cfg.Weather,
		Retriever:         cfg.Retriever,
		IntentModelName:   cfg.ChatModels.IntentModelName,
		ResponseModelName: cfg.ChatModels.ResponseModelName,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Response graph built successfully")
	return NewRunner(runnable, cfg.TurnLog, cfg.Metrics), nil
}

// BuildGraph constructs and returns the compiled routing graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[*model.TurnState, *model.TurnState], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Classifier == nil || config.Synthesizer == nil {
		return nil, fmt.Errorf("classifier and synthesizer are required")
	}
	if config.Weather == nil || config.Retriever == nil {
		return nil, fmt.Errorf("weather fetcher and retriever are required")
	}

	builder := &GraphBuilder{
		config: config,
		graph:  compose.NewGraph[*model.TurnState, *model.TurnState](),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	lambdas := []struct {
		key    string
		lambda *compose.Lambda
	}{
		{nodes.NodeClassifyIntent, nodes.NewClassifyIntentNode(b.config.Classifier, b.config.IntentModelName)},
		{nodes.NodeFetchWeather, nodes.NewFetchWeatherNode(b.config.Weather)},
		{nodes.NodeFetchPDFContext, nodes.NewFetchPDFContextNode(b.config.Retriever)},
		{nodes.NodeGenerateResponse, nodes.NewGenerateResponseNode(b.config.Synthesizer, b.config.ResponseModelName)},
	}

	for _, l := range lambdas {
		if err := b.graph.AddLambdaNode(l.key, l.lambda, compose.WithNodeName(l.key)); err != nil {
			logx.Error().Err(err).Str("node", l.key).Msg("Error adding node")
			return fmt.Errorf("error adding node %s: %w", l.key, err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeClassifyIntent},
		{nodes.NodeFetchWeather, nodes.NodeGenerateResponse},
		{nodes.NodeFetchPDFContext, nodes.NodeGenerateResponse},
		{nodes.NodeGenerateResponse, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates the intent routing branch
func (b *GraphBuilder) addBranches() error {
	intentBranch := compose.NewGraphBranch(
		nodes.NewRouteCondition(),
		map[string]bool{
			nodes.NodeFetchWeather:    true,
			nodes.NodeFetchPDFContext: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeClassifyIntent, intentBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding intent branch")
		return fmt.Errorf("error adding intent branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[*model.TurnState, *model.TurnState], error) {
	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("intent_router"),
		compose.WithMaxRunSteps(maxRunSteps),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
