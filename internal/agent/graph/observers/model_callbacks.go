package observers

import (
	"context"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/skyrag-assistant/server/pkg/logger"
)

// newModelHandler builds a typed ModelCallbackHandler to log prompts and answers around model calls.
func newModelHandler() *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ev := logx.Debug().Str("component", info.Name).Str("type", info.Type)
			if input != nil {
				if input.Config != nil {
					ev = ev.Str("model", input.Config.Model)
				}
				ev = ev.Int("messages", len(input.Messages)).Str("user", lastUserContent(input.Messages))
			}
			ev.Msg("Model call started")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			ev := logx.Debug().Str("component", info.Name).Str("type", info.Type)
			if output != nil && output.Message != nil {
				ev = ev.Str("assistant", strings.TrimSpace(output.Message.Content))
			}
			ev.Msg("Model call finished")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Err(err).Str("component", info.Name).Str("type", info.Type).Msg("Model call failed")
			return ctx
		},
	}
}

func lastUserContent(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m == nil {
			continue
		}
		if m.Role == schema.User {
			return strings.TrimSpace(m.Content)
		}
	}
	return ""
}
