package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/skyrag-assistant/server/internal/agent/model"
	logx "github.com/skyrag-assistant/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	Classifier *model.ClassifierModelConfig
	Response   *model.ResponseModelConfig
}

// ChatModels holds the classification and response models
type ChatModels struct {
	Intent            IntentModel
	Response          einomodel.BaseChatModel
	IntentModelName   string
	ResponseModelName string
}

// NewGenAIClient creates the Gemini API client shared by chat and embedding models.
func NewGenAIClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// NewChatModels creates the intent and response models on a shared client
func NewChatModels(ctx context.Context, client *genai.Client, config ChatModelConfig) (*ChatModels, error) {
	if client == nil {
		return nil, fmt.Errorf("gemini client is nil")
	}
	if config.Classifier == nil || config.Response == nil {
		return nil, fmt.Errorf("chat model config is incomplete")
	}

	chatModelResponse, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Response.Model,
		Temperature: &config.Response.Temperature,
		MaxTokens:   &config.Response.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Response model")
		return nil, fmt.Errorf("error creating Response model: %w", err)
	}

	return &ChatModels{
		Intent:            NewGeminiIntentModel(client, *config.Classifier),
		Response:          chatModelResponse,
		IntentModelName:   config.Classifier.Model,
		ResponseModelName: config.Response.Model,
	}, nil
}

// contentGenerator is the slice of genai.Models used for classification.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// classificationSchema constrains the classifier to {"intent": "weather"|"pdf", "city": string}.
var classificationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"intent": {
			Type:        genai.TypeString,
			Enum:        []string{string(model.IntentWeather), string(model.IntentPDF)},
			Description: "weather for weather questions, pdf for everything else",
		},
		"city": {
			Type:        genai.TypeString,
			Description: "city named in a weather question, empty otherwise",
		},
	},
	Required: []string{"intent", "city"},
}

// GeminiIntentModel asks Gemini for a schema-constrained JSON classification.
type GeminiIntentModel struct {
	models      contentGenerator
	model       string
	temperature float32
}

func NewGeminiIntentModel(client *genai.Client, cfg model.ClassifierModelConfig) *GeminiIntentModel {
	return &GeminiIntentModel{models: client.Models, model: cfg.Model, temperature: cfg.Temperature}
}

func (m *GeminiIntentModel) Classify(ctx context.Context, prompt string) (*schema.Message, error) {
	resp, err := m.models.GenerateContent(ctx, m.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr(m.temperature),
			ResponseMIMEType: "application/json",
			ResponseSchema:   classificationSchema,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini classify: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("gemini classify: empty response")
	}

	msg := schema.AssistantMessage(resp.Text(), nil)
	if u := resp.UsageMetadata; u != nil {
		msg.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}}
	}
	return msg, nil
}

var _ IntentModel = (*GeminiIntentModel)(nil)
