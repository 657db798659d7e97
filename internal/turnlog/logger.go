package turnlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/skyrag-assistant/server/internal/agent/model"
	errx "github.com/skyrag-assistant/server/internal/core/error"
	logx "github.com/skyrag-assistant/server/pkg/logger"
)

// Entry is one record of the turn log as read back from disk. Weather data
// stays raw since the on-disk shape is either a report or {"error": ...}.
type Entry struct {
	TurnID        string          `json:"turn_id"`
	UserQuery     string          `json:"user_query"`
	Intent        model.Intent    `json:"intent"`
	City          string          `json:"city"`
	WeatherData   json.RawMessage `json:"weather_data,omitempty"`
	PDFContext    string          `json:"pdf_context,omitempty"`
	FinalResponse string          `json:"final_response"`
	TotalCostUSD  float64         `json:"total_cost_usd"`
	CreatedAt     time.Time       `json:"created_at"`
	CompletedAt   time.Time       `json:"completed_at,omitzero"`
}

// FileLogger appends completed turns to a JSONL file.
type FileLogger struct {
	path string
	mu   sync.Mutex
}

func NewFileLogger(cfg model.TurnLogConfig) *FileLogger {
	return &FileLogger{path: cfg.Path}
}

func (l *FileLogger) Path() string {
	return l.path
}

// Append writes the state as a single line. The file is created on first use.
func (l *FileLogger) Append(_ context.Context, state *model.TurnState) error {
	if state == nil {
		return errx.WrapTurnLog(errors.New("nil turn state"))
	}
	line, err := json.Marshal(state)
	if err != nil {
		return errx.WrapTurnLog(fmt.Errorf("encode turn %s: %w", state.TurnID, err))
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errx.WrapTurnLog(err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return errx.WrapTurnLog(err)
	}
	if err := f.Close(); err != nil {
		return errx.WrapTurnLog(err)
	}

	logx.Debug().Str("turn_id", state.TurnID).Str("path", l.path).Msg("Turn logged")
	return nil
}

// ReadEntries decodes every record in the log at path. A missing file yields
// no entries.
func ReadEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeEntries(f)
}

// decodeEntries reads a stream of JSON objects. Newlines between objects are
// optional, so logs written as back-to-back objects decode too.
func decodeEntries(r io.Reader) ([]Entry, error) {
	dec := json.NewDecoder(r)
	var entries []Entry
	for {
		var e Entry
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, fmt.Errorf("decode turn log entry %d: %w", len(entries)+1, err)
		}
		entries = append(entries, e)
	}
}
