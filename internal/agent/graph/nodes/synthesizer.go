package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/skyrag-assistant/server/internal/agent/graph/prompts"
	"github.com/skyrag-assistant/server/internal/agent/model"
	errx "github.com/skyrag-assistant/server/internal/core/error"
)

// WeatherApology prefixes the reply when the weather lookup failed.
const WeatherApology = "I'm sorry, I couldn't fetch the weather data. "

// Synthesizer produces the final answer from the query and fetched data.
type Synthesizer struct {
	chat      einomodel.BaseChatModel
	modelName string
}

func NewSynthesizer(chat einomodel.BaseChatModel, modelName string) *Synthesizer {
	return &Synthesizer{chat: chat, modelName: modelName}
}

// Synthesize answers a classified turn. A failed weather lookup is answered
// with an apology and no model call; every other case makes exactly one call.
func (s *Synthesizer) Synthesize(ctx context.Context, state *model.TurnState) (string, *schema.TokenUsage, error) {
	var (
		msgs []*schema.Message
		err  error
	)
	switch state.Intent {
	case model.IntentWeather:
		switch d := state.WeatherData.(type) {
		case *model.WeatherError:
			return WeatherApology + d.Message, nil, nil
		case *model.WeatherReport:
			msgs, err = prompts.RenderWeather(ctx, state.UserQuery, d)
		default:
			return "", nil, errx.WrapSynthesis(fmt.Errorf("weather turn %s has no weather data", state.TurnID))
		}
	case model.IntentPDF:
		msgs, err = prompts.RenderDocument(ctx, state.UserQuery, state.PDFContext)
	default:
		return "", nil, errx.WrapSynthesis(fmt.Errorf("turn %s is not classified", state.TurnID))
	}
	if err != nil {
		return "", nil, errx.WrapSynthesis(err)
	}

	// gemini.ChatModel reports its own callbacks; give them a chat model run info
	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      "ResponseModel",
		Type:      "Gemini",
		Component: components.ComponentOfChatModel,
	})
	out, err := s.chat.Generate(ctx, msgs)
	if err != nil {
		return "", nil, errx.WrapSynthesis(err)
	}
	if out == nil {
		return "", nil, errx.WrapSynthesis(fmt.Errorf("empty model response"))
	}
	return out.Content, model.UsageOf(out), nil
}
