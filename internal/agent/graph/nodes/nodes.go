package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/skyrag-assistant/server/internal/agent/model"
	logx "github.com/skyrag-assistant/server/pkg/logger"
)

const (
	NodeClassifyIntent   = "classify_intent"
	NodeFetchWeather     = "fetch_weather"
	NodeFetchPDFContext  = "fetch_pdf_context"
	NodeGenerateResponse = "generate_response"
)

// WeatherFetcher looks up current conditions. Failures come back as a
// *model.WeatherError value.
type WeatherFetcher interface {
	Fetch(ctx context.Context, city string) model.WeatherData
}

// ContextRetriever returns document passages for a query. Failures come back
// as an error string in place of the passages.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string) string
}

// NewClassifyIntentNode classifies the query and records intent, city and cost.
func NewClassifyIntentNode(c *Classifier, modelName string) *compose.Lambda {
	pricing := model.ResolvePricing(modelName)
	return compose.InvokableLambda(func(ctx context.Context, state *model.TurnState) (*model.TurnState, error) {
		cls, usage, err := c.Classify(ctx, state.UserQuery)
		if err != nil {
			logx.Error().Err(err).Str("turn_id", state.TurnID).Str("node", NodeClassifyIntent).Msg("Classification failed")
			return nil, err
		}
		if err := state.SetClassification(cls); err != nil {
			return nil, err
		}
		recordUsage(state, NodeClassifyIntent, modelName, usage, pricing)

		logx.Debug().
			Str("turn_id", state.TurnID).
			Str("intent", string(state.Intent)).
			Str("city", state.City).
			Msg("Query classified")
		return state, nil
	})
}

// NewRouteCondition sends weather turns to the weather lookup and every
// other turn to document retrieval.
func NewRouteCondition() func(context.Context, *model.TurnState) (string, error) {
	return func(ctx context.Context, state *model.TurnState) (string, error) {
		if state == nil {
			return "", fmt.Errorf("route: nil turn state")
		}
		if state.Intent == model.IntentWeather {
			return NodeFetchWeather, nil
		}
		return NodeFetchPDFContext, nil
	}
}

// NewFetchWeatherNode stores the weather lookup result for the extracted city.
func NewFetchWeatherNode(w WeatherFetcher) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, state *model.TurnState) (*model.TurnState, error) {
		if err := state.SetWeather(w.Fetch(ctx, state.City)); err != nil {
			return nil, err
		}
		if msg, failed := model.WeatherErrorOf(state.WeatherData); failed {
			logx.Warn().Str("turn_id", state.TurnID).Str("city", state.City).Str("error", msg).Msg("Continuing with weather error")
		}
		return state, nil
	})
}

// NewFetchPDFContextNode stores the retrieved passages for the query.
func NewFetchPDFContextNode(r ContextRetriever) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, state *model.TurnState) (*model.TurnState, error) {
		if err := state.SetPDFContext(r.Retrieve(ctx, state.UserQuery)); err != nil {
			return nil, err
		}
		logx.Debug().Str("turn_id", state.TurnID).Int("context_len", len(state.PDFContext)).Msg("Document context retrieved")
		return state, nil
	})
}

// NewGenerateResponseNode writes the final answer and its model cost.
func NewGenerateResponseNode(s *Synthesizer, modelName string) *compose.Lambda {
	pricing := model.ResolvePricing(modelName)
	return compose.InvokableLambda(func(ctx context.Context, state *model.TurnState) (*model.TurnState, error) {
		text, usage, err := s.Synthesize(ctx, state)
		if err != nil {
			logx.Error().Err(err).Str("turn_id", state.TurnID).Str("node", NodeGenerateResponse).Msg("Response generation failed")
			return nil, err
		}
		recordUsage(state, NodeGenerateResponse, modelName, usage, pricing)
		if err := state.SetFinalResponse(text); err != nil {
			return nil, err
		}
		return state, nil
	})
}

func recordUsage(state *model.TurnState, node, modelName string, usage *schema.TokenUsage, pricing model.Pricing) {
	if usage == nil {
		return
	}
	inC, outC, totalC := model.ComputeCost(usage, pricing)
	state.AddCost(totalC)
	logx.Debug().
		Str("turn_id", state.TurnID).
		Str("node", node).
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}
