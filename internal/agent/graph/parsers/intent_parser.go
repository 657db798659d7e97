package parsers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/skyrag-assistant/server/internal/agent/model"
	errx "github.com/skyrag-assistant/server/internal/core/error"
	logx "github.com/skyrag-assistant/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 16 * 1024
	maxCityLen    = 256
	maxErrSnippet = 200
)

type rawClassification struct {
	Intent *string `json:"intent"`
	City   *string `json:"city"`
}

// ParseClassification validates the classifier output. The model is asked
// for a JSON object with "intent" and "city"; an unknown or missing intent
// becomes pdf and an empty or missing city becomes model.BlankCity.
// Output that is not a JSON object is an error.
func ParseClassification(content string) (c model.Classification, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "intent_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("intent parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			c = model.Classification{}
		}
	}()

	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "intent_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("classifier output too large")
		return model.Classification{}, fmt.Errorf("classifier output exceeds %d bytes", maxContentLen)
	}

	body := stripCodeFence(content)
	if body == "" {
		return model.Classification{}, fmt.Errorf("empty classifier output")
	}

	var raw rawClassification
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return model.Classification{}, fmt.Errorf("malformed classifier output %q: %w", safeSnippet(body), err)
	}

	intent := model.IntentPDF
	if raw.Intent != nil {
		intent = model.ParseIntent(*raw.Intent)
	}

	city := model.BlankCity
	if raw.City != nil {
		if v := strings.TrimSpace(*raw.City); v != "" && utf8.ValidString(v) && len(v) <= maxCityLen {
			city = v
		}
	}

	return model.Classification{Intent: intent, City: city}, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence some models add
// even when asked for raw JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
