package embedding

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/skyrag-assistant/server/internal/agent/model"
)

type fakeModels struct {
	resp      *genai.EmbedContentResponse
	err       error
	gotModel  string
	gotCount  int
	gotConfig *genai.EmbedContentConfig
}

func (f *fakeModels) EmbedContent(_ context.Context, m string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.gotModel = m
	f.gotCount = len(contents)
	f.gotConfig = cfg
	return f.resp, f.err
}

func TestGeminiEmbedder_EmbedStrings(t *testing.T) {
	fm := &fakeModels{resp: &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{
		{Values: []float32{0.5, 0.25, 1}},
		{Values: []float32{1, 0, 0}},
	}}}
	e, err := newGeminiEmbedder(fm, model.EmbeddingConfig{Model: "gemini-embedding-001", Dimensions: 3})
	require.NoError(t, err)

	vecs, err := e.EmbedStrings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, [][]float64{{0.5, 0.25, 1}, {1, 0, 0}}, vecs)
	require.Equal(t, "gemini-embedding-001", fm.gotModel)
	require.Equal(t, 2, fm.gotCount)
	require.Equal(t, int32(3), *fm.gotConfig.OutputDimensionality)
}

// indexModels returns, for every text, a one-value embedding holding the
// text parsed as a number, so output order can be checked across batches.
type indexModels struct {
	batches []int
	failAt  int
}

func (f *indexModels) EmbedContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.batches = append(f.batches, len(contents))
	if f.failAt > 0 && len(f.batches) == f.failAt {
		return nil, errors.New("request payload too large")
	}
	resp := &genai.EmbedContentResponse{}
	for _, c := range contents {
		n, err := strconv.Atoi(c.Parts[0].Text)
		if err != nil {
			return nil, err
		}
		resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: []float32{float32(n)}})
	}
	return resp, nil
}

func TestGeminiEmbedder_SplitsIntoBatches(t *testing.T) {
	fm := &indexModels{}
	e, err := newGeminiEmbedder(fm, model.EmbeddingConfig{Model: "m", Dimensions: 1})
	require.NoError(t, err)

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = strconv.Itoa(i)
	}
	vecs, err := e.EmbedStrings(context.Background(), texts)
	require.NoError(t, err)
	require.Equal(t, []int{100, 100, 50}, fm.batches)
	require.Len(t, vecs, 250)
	for i, v := range vecs {
		require.Equal(t, []float64{float64(i)}, v)
	}
}

func TestGeminiEmbedder_BatchFailureFailsCall(t *testing.T) {
	fm := &indexModels{failAt: 2}
	e, err := newGeminiEmbedder(fm, model.EmbeddingConfig{Model: "m", Dimensions: 1})
	require.NoError(t, err)

	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = strconv.Itoa(i)
	}
	vecs, err := e.EmbedStrings(context.Background(), texts)
	require.ErrorContains(t, err, "batch 100-100")
	require.Nil(t, vecs)
}

func TestGeminiEmbedder_ModelOverride(t *testing.T) {
	fm := &fakeModels{resp: &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{{Values: []float32{1}}}}}
	e, err := newGeminiEmbedder(fm, model.EmbeddingConfig{Model: "default", Dimensions: 1})
	require.NoError(t, err)

	_, err = e.EmbedStrings(context.Background(), []string{"a"}, embedding.WithModel("other"))
	require.NoError(t, err)
	require.Equal(t, "other", fm.gotModel)
}

func TestGeminiEmbedder_DimensionMismatch(t *testing.T) {
	fm := &fakeModels{resp: &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{{Values: []float32{1, 2}}}}}
	e, err := newGeminiEmbedder(fm, model.EmbeddingConfig{Model: "m", Dimensions: 3})
	require.NoError(t, err)

	_, err = e.EmbedStrings(context.Background(), []string{"a"})
	require.ErrorContains(t, err, "expected dim 3")
}

func TestGeminiEmbedder_Errors(t *testing.T) {
	_, err := newGeminiEmbedder(&fakeModels{}, model.EmbeddingConfig{Model: "m"})
	require.Error(t, err)

	fm := &fakeModels{err: errors.New("quota exceeded")}
	e, err := newGeminiEmbedder(fm, model.EmbeddingConfig{Model: "m", Dimensions: 2})
	require.NoError(t, err)
	_, err = e.EmbedStrings(context.Background(), []string{"a"})
	require.ErrorContains(t, err, "quota exceeded")

	vecs, err := e.EmbedStrings(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, vecs)
}
