package conversations

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/skyrag-assistant/server/internal/agent/model"
)

// MessagesManager keeps the per-session transcript shown to callers. The
// routing workflow never reads it: every query is answered on its own.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	historyLimit     int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		historyLimit:     config.HistoryLimit,
	}
}

// SaveQuery records the user's message.
func (cm *MessagesManager) SaveQuery(ctx context.Context, sessionID string, query string) error {
	return cm.conversationRepo.AddMessage(ctx, sessionID, schema.UserMessage(query))
}

// SaveResponse records the assistant's reply, error replies included.
func (cm *MessagesManager) SaveResponse(ctx context.Context, sessionID string, content string) error {
	return cm.conversationRepo.AddMessage(ctx, sessionID, schema.AssistantMessage(content, nil))
}

// History returns the most recent user and assistant messages of a session,
// capped at the configured limit when it is positive.
func (cm *MessagesManager) History(ctx context.Context, sessionID string) ([]*schema.Message, error) {
	history, err := cm.conversationRepo.LoadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	msgs := make([]*schema.Message, 0, len(history.Messages))
	for _, msg := range history.Messages {
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if msg.Role == schema.User || msg.Role == schema.Assistant {
			msgs = append(msgs, msg)
		}
	}
	return trimTail(msgs, cm.historyLimit), nil
}

// Clear drops the transcript of a session.
func (cm *MessagesManager) Clear(ctx context.Context, sessionID string) error {
	return cm.conversationRepo.ClearHistory(ctx, sessionID)
}

// ====================== Helper function ======================
func trimTail(messages []*schema.Message, maxMessages int) []*schema.Message {
	if maxMessages <= 0 || len(messages) <= maxMessages {
		return messages
	}
	return messages[len(messages)-maxMessages:]
}
