package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Intent is the classified category of a user query.
type Intent string

const (
	IntentUnset   Intent = ""
	IntentWeather Intent = "weather"
	IntentPDF     Intent = "pdf"
)

// BlankCity is stored when the classifier extracts no city, so the weather
// branch always receives a non-empty string.
const BlankCity = " "

// ParseIntent maps a raw label onto one of the two routable intents. The
// label must be exactly "weather"; anything else, including case or
// whitespace variants, falls back to IntentPDF.
func ParseIntent(raw string) Intent {
	switch Intent(raw) {
	case IntentWeather:
		return IntentWeather
	default:
		return IntentPDF
	}
}

// Classification is the validated output of the intent classifier.
type Classification struct {
	Intent Intent `json:"intent"`
	City   string `json:"city"`
}

// TurnState is the record threaded through one run of the routing graph.
//
// Ownership model:
//   - One TurnState is created per query by NewTurnState and discarded after
//     it has been logged. It is never shared between runs, so no locking.
//   - Classification, fetched data and the final response are written through
//     the Set* methods, which enforce write-once and intent consistency.
type TurnState struct {
	TurnID        string      `json:"turn_id"`
	UserQuery     string      `json:"user_query"`
	Intent        Intent      `json:"intent"`
	City          string      `json:"city"`
	WeatherData   WeatherData `json:"weather_data,omitempty"`
	PDFContext    string      `json:"pdf_context,omitempty"`
	FinalResponse string      `json:"final_response"`

	// Accumulated LLM cost (USD) across model calls of this turn
	TotalCostUSD float64   `json:"total_cost_usd"`
	CreatedAt    time.Time `json:"created_at"`
	CompletedAt  time.Time `json:"completed_at,omitzero"`
}

// MarshalJSON always writes pdf_context for pdf turns, even when retrieval
// returned nothing, and omits it for every other intent.
func (s TurnState) MarshalJSON() ([]byte, error) {
	type plain TurnState
	if s.Intent != IntentPDF {
		return json.Marshal(plain(s))
	}
	return json.Marshal(struct {
		plain
		PDFContext string `json:"pdf_context"`
	}{plain: plain(s), PDFContext: s.PDFContext})
}

// NewTurnState creates the state for a single query.
func NewTurnState(query string) *TurnState {
	return &TurnState{
		TurnID:    uuid.NewString(),
		UserQuery: query,
		CreatedAt: time.Now().UTC(),
	}
}

// SetClassification records the classifier result. It may be called once.
func (s *TurnState) SetClassification(c Classification) error {
	if s.Intent != IntentUnset {
		return fmt.Errorf("turn %s already classified as %q", s.TurnID, s.Intent)
	}
	s.Intent = ParseIntent(string(c.Intent))
	s.City = c.City
	if strings.TrimSpace(s.City) == "" {
		s.City = BlankCity
	}
	return nil
}

// SetWeather stores the weather lookup result for a weather turn.
func (s *TurnState) SetWeather(d WeatherData) error {
	if s.Intent != IntentWeather {
		return fmt.Errorf("weather data on %q turn", s.Intent)
	}
	if d == nil {
		return fmt.Errorf("weather data is nil")
	}
	s.WeatherData = d
	return nil
}

// SetPDFContext stores retrieved passages for a document turn.
func (s *TurnState) SetPDFContext(ctx string) error {
	if s.Intent != IntentPDF {
		return fmt.Errorf("pdf context on %q turn", s.Intent)
	}
	s.PDFContext = ctx
	return nil
}

// SetFinalResponse stores the answer. It is the terminal write of a turn.
func (s *TurnState) SetFinalResponse(text string) error {
	if s.Completed() {
		return fmt.Errorf("turn %s already has a final response", s.TurnID)
	}
	s.FinalResponse = text
	s.CompletedAt = time.Now().UTC()
	return nil
}

// Completed reports whether the final response has been written.
func (s *TurnState) Completed() bool {
	return !s.CompletedAt.IsZero()
}

// AddCost accumulates model usage cost into the turn.
func (s *TurnState) AddCost(usd float64) {
	s.TotalCostUSD += usd
}

// QueryInput represents the input for processing user queries.
type QueryInput struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}
