package nodes

import (
	"context"
	"errors"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/skyrag-assistant/server/internal/agent/model"
	errx "github.com/skyrag-assistant/server/internal/core/error"
)

type fakeIntentModel struct {
	content string
	err     error
	prompts []string
}

func (f *fakeIntentModel) Classify(_ context.Context, prompt string) (*schema.Message, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	msg := schema.AssistantMessage(f.content, nil)
	msg.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 100, CompletionTokens: 10, TotalTokens: 110}}
	return msg, nil
}

type fakeChatModel struct {
	reply string
	err   error
	calls [][]*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.calls = append(f.calls, input)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func classified(t *testing.T, query string, c model.Classification) *model.TurnState {
	t.Helper()
	s := model.NewTurnState(query)
	require.NoError(t, s.SetClassification(c))
	return s
}

func TestClassifier_Classify(t *testing.T) {
	im := &fakeIntentModel{content: `{"intent":"weather","city":"London"}`}
	c := NewClassifier(im, "gemini-2.5-flash")

	cls, usage, err := c.Classify(context.Background(), "What's the weather in London?")
	require.NoError(t, err)
	require.Equal(t, model.Classification{Intent: model.IntentWeather, City: "London"}, cls)
	require.Equal(t, 110, usage.TotalTokens)
	require.Len(t, im.prompts, 1)
	require.Contains(t, im.prompts[0], "User query: What's the weather in London?")
}

func TestClassifier_Failures(t *testing.T) {
	c := NewClassifier(&fakeIntentModel{err: errors.New("quota exceeded")}, "m")
	_, _, err := c.Classify(context.Background(), "q")
	require.ErrorContains(t, err, "quota exceeded")
	var appErr *errx.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, errx.ClassificationErrorMessage, appErr.Message)

	c = NewClassifier(&fakeIntentModel{content: "definitely weather"}, "m")
	_, _, err = c.Classify(context.Background(), "q")
	require.ErrorContains(t, err, errx.ClassificationErrorMessage)
}

func TestSynthesizer_WeatherErrorSkipsModel(t *testing.T) {
	chat := &fakeChatModel{reply: "unused"}
	s := NewSynthesizer(chat, "gemini-2.5-flash")

	state := classified(t, "What's the weather in Atlantis?", model.Classification{Intent: model.IntentWeather, City: "Atlantis"})
	require.NoError(t, state.SetWeather(&model.WeatherError{Message: "Weather API error: 404 Not Found"}))

	text, usage, err := s.Synthesize(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, "I'm sorry, I couldn't fetch the weather data. Weather API error: 404 Not Found", text)
	require.Nil(t, usage)
	require.Empty(t, chat.calls)
}

func TestSynthesizer_WeatherReport(t *testing.T) {
	chat := &fakeChatModel{reply: "It's a mild 15.5°C in London."}
	s := NewSynthesizer(chat, "gemini-2.5-flash")

	state := classified(t, "What's the weather in London?", model.Classification{Intent: model.IntentWeather, City: "London"})
	require.NoError(t, state.SetWeather(&model.WeatherReport{City: "London", Temperature: 15.5, Humidity: 65, Description: "partly cloudy"}))

	text, _, err := s.Synthesize(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, "It's a mild 15.5°C in London.", text)
	require.Len(t, chat.calls, 1)
	require.Contains(t, chat.calls[0][0].Content, "Temperature: 15.5°C")
	require.Contains(t, chat.calls[0][0].Content, "Humidity: 65%")
}

func TestSynthesizer_Document(t *testing.T) {
	chat := &fakeChatModel{reply: "The document discusses AI."}
	s := NewSynthesizer(chat, "gemini-2.5-flash")

	state := classified(t, "Summarize the document", model.Classification{Intent: model.IntentPDF})
	require.NoError(t, state.SetPDFContext(""))

	text, _, err := s.Synthesize(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, "The document discusses AI.", text)
	require.Contains(t, chat.calls[0][0].Content, "No context available")
}

func TestSynthesizer_Failures(t *testing.T) {
	s := NewSynthesizer(&fakeChatModel{err: errors.New("model overloaded")}, "m")
	state := classified(t, "q", model.Classification{Intent: model.IntentPDF})
	_, _, err := s.Synthesize(context.Background(), state)
	require.ErrorContains(t, err, "model overloaded")

	_, _, err = s.Synthesize(context.Background(), model.NewTurnState("q"))
	require.Error(t, err)

	weatherless := classified(t, "q", model.Classification{Intent: model.IntentWeather})
	_, _, err = s.Synthesize(context.Background(), weatherless)
	require.Error(t, err)
}

func TestRouteCondition(t *testing.T) {
	route := NewRouteCondition()

	next, err := route(context.Background(), classified(t, "q", model.Classification{Intent: model.IntentWeather}))
	require.NoError(t, err)
	require.Equal(t, NodeFetchWeather, next)

	next, err = route(context.Background(), classified(t, "q", model.Classification{Intent: "unknown"}))
	require.NoError(t, err)
	require.Equal(t, NodeFetchPDFContext, next)

	_, err = route(context.Background(), nil)
	require.Error(t, err)
}

type fakeGenerator struct {
	resp   *genai.GenerateContentResponse
	err    error
	config *genai.GenerateContentConfig
	model  string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.config = model, config
	return f.resp, f.err
}

func TestGeminiIntentModel_Classify(t *testing.T) {
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(`{"intent":"pdf","city":""}`, genai.RoleModel),
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 40, CandidatesTokenCount: 8, TotalTokenCount: 48},
	}}
	m := &GeminiIntentModel{models: gen, model: "gemini-2.5-flash", temperature: 0.3}

	msg, err := m.Classify(context.Background(), "Summarize the document")
	require.NoError(t, err)
	require.Equal(t, `{"intent":"pdf","city":""}`, strings.TrimSpace(msg.Content))
	require.Equal(t, 48, msg.ResponseMeta.Usage.TotalTokens)

	require.Equal(t, "gemini-2.5-flash", gen.model)
	require.Equal(t, "application/json", gen.config.ResponseMIMEType)
	require.Equal(t, []string{"weather", "pdf"}, gen.config.ResponseSchema.Properties["intent"].Enum)

	gen.err = errors.New("permission denied")
	_, err = m.Classify(context.Background(), "q")
	require.ErrorContains(t, err, "permission denied")
}
