package embedding

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"google.golang.org/genai"

	"github.com/skyrag-assistant/server/internal/agent/model"
	logx "github.com/skyrag-assistant/server/pkg/logger"
)

// MaxBatchSize is the most texts the Gemini API accepts in one
// batchEmbedContents request.
const MaxBatchSize = 100

// contentEmbedder is the part of *genai.Models used here.
type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiEmbedder implements embedding.Embedder on the Gemini embedding API
// with a fixed output dimensionality.
type GeminiEmbedder struct {
	models     contentEmbedder
	model      string
	dimensions int
}

func NewGeminiEmbedder(client *genai.Client, cfg model.EmbeddingConfig) (*GeminiEmbedder, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is nil")
	}
	return newGeminiEmbedder(client.Models, cfg)
}

func newGeminiEmbedder(models contentEmbedder, cfg model.EmbeddingConfig) (*GeminiEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is empty")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", cfg.Dimensions)
	}
	return &GeminiEmbedder{models: models, model: cfg.Model, dimensions: cfg.Dimensions}, nil
}

// Dimensions is the length of every returned vector.
func (e *GeminiEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *GeminiEmbedder) GetType() string {
	return "GeminiEmbedder"
}

// EmbedStrings embeds texts in order, MaxBatchSize texts per request.
func (e *GeminiEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	modelName := e.model
	if o := embedding.GetCommonOptions(&embedding.Options{}, opts...); o.Model != nil && *o.Model != "" {
		modelName = *o.Model
	}

	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(texts))
		vecs, err := e.embedBatch(ctx, modelName, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end-1, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *GeminiEmbedder) embedBatch(ctx context.Context, modelName string, texts []string) ([][]float64, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := e.models.EmbedContent(ctx, modelName, contents, &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(e.dimensions)),
	})
	if err != nil {
		logx.Error().Err(err).Str("model", modelName).Int("texts", len(texts)).Msg("Embedding request failed")
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), got)
	}

	out := make([][]float64, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) != e.dimensions {
			n := 0
			if emb != nil {
				n = len(emb.Values)
			}
			return nil, fmt.Errorf("embedding %d: expected dim %d, got %d", i, e.dimensions, n)
		}
		vec := make([]float64, len(emb.Values))
		for j, v := range emb.Values {
			vec[j] = float64(v)
		}
		out[i] = vec
	}
	return out, nil
}

var _ embedding.Embedder = (*GeminiEmbedder)(nil)
