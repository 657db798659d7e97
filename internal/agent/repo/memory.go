package repo

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/skyrag-assistant/server/internal/agent/model"
)

// MemoryConversationRepository keeps transcripts for the lifetime of the
// process. Used by the interactive CLI and in tests.
type MemoryConversationRepository struct {
	mu       sync.Mutex
	sessions map[string][]*schema.Message
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{sessions: map[string][]*schema.Message{}}
}

func (r *MemoryConversationRepository) AddMessage(_ context.Context, sessionID string, message *schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = append(r.sessions[sessionID], message)
	return nil
}

func (r *MemoryConversationRepository) LoadHistory(_ context.Context, sessionID string) (*model.ConversationHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := make([]*schema.Message, len(r.sessions[sessionID]))
	copy(msgs, r.sessions[sessionID])
	return &model.ConversationHistory{SessionID: sessionID, Messages: msgs}, nil
}

func (r *MemoryConversationRepository) ClearHistory(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

func (r *MemoryConversationRepository) GetMessageCount(_ context.Context, sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions[sessionID]), nil
}

var _ model.ConversationRepository = (*MemoryConversationRepository)(nil)
