package agent

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/skyrag-assistant/server/internal/agent/graph/conversations"
	logx "github.com/skyrag-assistant/server/pkg/logger"
)

// ErrorReplyPrefix starts the reply shown when a turn fails.
const ErrorReplyPrefix = "Error: "

// TurnRunner answers a single query.
type TurnRunner interface {
	Run(ctx context.Context, query string) (string, error)
}

// Reply is what a caller shows for one query.
type Reply struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Answer    string `json:"answer"`
	Failed    bool   `json:"failed"`
}

// Assistant is the entry point used by the CLI and the HTTP server. Turns are
// processed one at a time.
type Assistant struct {
	runner   TurnRunner
	messages *conversations.MessagesManager
	mu       sync.Mutex
}

func NewAssistant(runner TurnRunner, messages *conversations.MessagesManager) *Assistant {
	return &Assistant{runner: runner, messages: messages}
}

// ProcessQuery runs one turn and returns the answer. Errors propagate.
func (a *Assistant) ProcessQuery(ctx context.Context, query string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runner.Run(ctx, query)
}

// Reply runs one turn for a session and never fails: a workflow error is
// presented as "Error: <message>". Both sides of the exchange are recorded
// in the session transcript.
func (a *Assistant) Reply(ctx context.Context, sessionID, query string) Reply {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.messages.SaveQuery(ctx, sessionID, query); err != nil {
		logx.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to record query")
	}

	r := Reply{SessionID: sessionID, Query: query}
	answer, err := a.runner.Run(ctx, query)
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("Query failed")
		r.Answer = ErrorReplyPrefix + err.Error()
		r.Failed = true
	} else {
		r.Answer = answer
	}

	if err := a.messages.SaveResponse(ctx, sessionID, r.Answer); err != nil {
		logx.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to record reply")
	}
	return r
}

// History returns the transcript of a session.
func (a *Assistant) History(ctx context.Context, sessionID string) ([]*schema.Message, error) {
	return a.messages.History(ctx, sessionID)
}

// ClearHistory drops the transcript of a session.
func (a *Assistant) ClearHistory(ctx context.Context, sessionID string) error {
	return a.messages.Clear(ctx, sessionID)
}
