package observers

import (
	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	"github.com/skyrag-assistant/server/internal/metrics"
)

// NewAllCallbacks aggregates the observer handlers passed to every graph run:
// typed model and prompt handlers plus the node tracer.
func NewAllCallbacks(m *metrics.Metrics) []einocb.Handler {
	typed := callbackHelper.NewHandlerHelper().
		ChatModel(newModelHandler()).
		Prompt(newPromptHandler()).
		Handler()

	return []einocb.Handler{typed, NewNodeTracer(m)}
}
