package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ConversationRepository stores the chat transcript shown to a caller. It is
// separate from the turn log: the transcript holds user and assistant
// messages (including error replies), the turn log holds workflow state.
type ConversationRepository interface {
	// AddMessage appends a message to the session transcript
	AddMessage(ctx context.Context, sessionID string, message *schema.Message) error

	// LoadHistory retrieves the transcript of a session
	LoadHistory(ctx context.Context, sessionID string) (*ConversationHistory, error)

	// ClearHistory removes the transcript of a session
	ClearHistory(ctx context.Context, sessionID string) error

	// GetMessageCount returns the number of messages in the session
	GetMessageCount(ctx context.Context, sessionID string) (int, error)
}

// ConversationHistory represents a loaded transcript.
type ConversationHistory struct {
	SessionID string
	Messages  []*schema.Message
}
