package nodes

import (
	"context"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/skyrag-assistant/server/internal/agent/graph/parsers"
	"github.com/skyrag-assistant/server/internal/agent/graph/prompts"
	"github.com/skyrag-assistant/server/internal/agent/model"
	errx "github.com/skyrag-assistant/server/internal/core/error"
)

// IntentModel returns the raw classification for a rendered prompt.
type IntentModel interface {
	Classify(ctx context.Context, prompt string) (*schema.Message, error)
}

// Classifier maps a query to an intent and an optional city.
type Classifier struct {
	model     IntentModel
	modelName string
}

func NewClassifier(m IntentModel, modelName string) *Classifier {
	return &Classifier{model: m, modelName: modelName}
}

// Classify makes one model call. Model and parse failures are returned
// wrapped as classification errors; there are no retries.
func (c *Classifier) Classify(ctx context.Context, query string) (model.Classification, *schema.TokenUsage, error) {
	msgs, err := prompts.RenderIntent(ctx, query)
	if err != nil {
		return model.Classification{}, nil, errx.WrapClassification(err)
	}

	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      "IntentClassifier",
		Type:      "Gemini",
		Component: components.ComponentOfChatModel,
	})
	ctx = callbacks.OnStart(ctx, &einomodel.CallbackInput{
		Messages: msgs,
		Config:   &einomodel.Config{Model: c.modelName},
	})

	out, err := c.model.Classify(ctx, msgs[0].Content)
	if err != nil {
		callbacks.OnError(ctx, err)
		return model.Classification{}, nil, errx.WrapClassification(err)
	}
	callbacks.OnEnd(ctx, &einomodel.CallbackOutput{Message: out})

	cls, err := parsers.ParseClassification(out.Content)
	if err != nil {
		return model.Classification{}, nil, errx.WrapClassification(err)
	}
	return cls, model.UsageOf(out), nil
}
