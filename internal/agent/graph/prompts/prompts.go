package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/skyrag-assistant/server/internal/agent/model"
)

// NoContext replaces an empty retrieval result in the document prompt.
const NoContext = "No context available"

var (
	//go:embed template/intent_prompt.txt
	intentPrompt string

	//go:embed template/weather_prompt.txt
	weatherPrompt string

	//go:embed template/document_prompt.txt
	documentPrompt string
)

// RenderIntent renders the classification prompt for query.
func RenderIntent(ctx context.Context, query string) ([]*schema.Message, error) {
	return render(ctx, "intent", intentPrompt, map[string]any{"Query": query})
}

// RenderWeather renders the prompt that turns a weather report into an answer.
func RenderWeather(ctx context.Context, query string, r *model.WeatherReport) ([]*schema.Message, error) {
	if r == nil {
		return nil, fmt.Errorf("weather prompt: nil report")
	}
	return render(ctx, "weather", weatherPrompt, map[string]any{
		"Query":       query,
		"City":        r.City,
		"Temperature": r.Temperature,
		"TempMin":     r.TempMin,
		"TempMax":     r.TempMax,
		"FeelsLike":   r.FeelsLike,
		"Humidity":    r.Humidity,
		"Description": r.Description,
		"WindSpeed":   r.WindSpeed,
	})
}

// RenderDocument renders the retrieval-augmented prompt. An empty context is
// replaced with NoContext.
func RenderDocument(ctx context.Context, query, docContext string) ([]*schema.Message, error) {
	if strings.TrimSpace(docContext) == "" {
		docContext = NoContext
	}
	return render(ctx, "document", documentPrompt, map[string]any{
		"Query":   query,
		"Context": docContext,
	})
}

// render formats tpl through the Eino prompt component so prompt callbacks
// fire for every rendered prompt.
func render(ctx context.Context, name, tpl string, vars map[string]any) ([]*schema.Message, error) {
	msgs, err := prompt.FromMessages(schema.GoTemplate, schema.UserMessage(tpl)).Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return nil, fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs, nil
}
