package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/skyrag-assistant/server/internal/agent/model"
)

type fakeLoader struct {
	docs []*schema.Document
	err  error
}

func (f fakeLoader) Load(_ context.Context, _ document.Source, _ ...document.LoaderOption) ([]*schema.Document, error) {
	return f.docs, f.err
}

type fakeUpserter struct {
	docs []*schema.Document
	ids  []string
	err  error
}

func (f *fakeUpserter) Upsert(_ context.Context, docs []*schema.Document, ids []string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.docs, f.ids = docs, ids
	return ids, nil
}

// wordSplitter emits one chunk per space separated field, keeping metadata.
type wordSplitter struct{}

func (wordSplitter) Transform(_ context.Context, src []*schema.Document, _ ...document.TransformerOption) ([]*schema.Document, error) {
	var out []*schema.Document
	for _, doc := range src {
		for _, w := range strings.Split(doc.Content, " ") {
			meta := map[string]any{}
			for k, v := range doc.MetaData {
				meta[k] = v
			}
			out = append(out, &schema.Document{Content: w, MetaData: meta})
		}
	}
	return out, nil
}

func newTestIndexer(t *testing.T, loader document.Loader, store Upserter) *PDFIndexer {
	t.Helper()
	ix, err := NewPDFIndexer(context.Background(), model.IngestionConfig{ChunkSize: 1000, ChunkOverlap: 200}, store)
	require.NoError(t, err)
	ix.loader = loader
	ix.splitter = wordSplitter{}
	n := 0
	ix.newID = func() string { n++; return fmt.Sprintf("id-%d", n) }
	return ix
}

func TestPDFIndexer_IndexesChunks(t *testing.T) {
	store := &fakeUpserter{}
	ix := newTestIndexer(t, fakeLoader{docs: []*schema.Document{
		{Content: "aaaa bbbb", MetaData: map[string]any{"source": "doc.pdf", "page": 1}},
		{Content: "cccc", MetaData: map[string]any{"source": "doc.pdf", "page": 2}},
	}}, store)

	res, err := ix.IndexPDF(context.Background(), "/tmp/doc.pdf")
	require.NoError(t, err)
	require.Equal(t, &IndexResult{Source: "doc.pdf", Pages: 2, Chunks: 3, IDs: []string{"id-1", "id-2", "id-3"}}, res)

	require.Len(t, store.docs, 3)
	require.Equal(t, "bbbb", store.docs[1].Content)
	require.Equal(t, 2, store.docs[2].MetaData["page"])
	require.Equal(t, 2, store.docs[2].MetaData["chunk"])
}

func TestPDFIndexer_SkipsBlankChunks(t *testing.T) {
	store := &fakeUpserter{}
	ix := newTestIndexer(t, fakeLoader{docs: []*schema.Document{{Content: "aaaa   bbbb"}}}, store)

	res, err := ix.IndexPDF(context.Background(), "doc.pdf")
	require.NoError(t, err)
	require.Equal(t, 2, res.Chunks)
	require.Equal(t, "bbbb", store.docs[1].Content)
	require.Equal(t, 1, store.docs[1].MetaData["chunk"])
}

func TestNewPDFIndexer_RejectsBadChunking(t *testing.T) {
	_, err := NewPDFIndexer(context.Background(), model.IngestionConfig{ChunkSize: 100, ChunkOverlap: 100}, &fakeUpserter{})
	require.Error(t, err)
}

func TestPDFIndexer_NoText(t *testing.T) {
	ix := newTestIndexer(t, fakeLoader{}, &fakeUpserter{})

	_, err := ix.IndexPDF(context.Background(), "empty.pdf")
	require.ErrorIs(t, err, ErrNoText)
}

func TestPDFIndexer_PropagatesErrors(t *testing.T) {
	ix := newTestIndexer(t, fakeLoader{err: errors.New("corrupt file")}, &fakeUpserter{})
	_, err := ix.IndexPDF(context.Background(), "bad.pdf")
	require.ErrorContains(t, err, "corrupt file")

	ix = newTestIndexer(t, fakeLoader{docs: []*schema.Document{{Content: "text"}}}, &fakeUpserter{err: errors.New("db down")})
	_, err = ix.IndexPDF(context.Background(), "doc.pdf")
	require.ErrorContains(t, err, "db down")
}

func TestLoadPDF_MissingFile(t *testing.T) {
	_, err := LoadPDF("/nonexistent/file.pdf")
	require.Error(t, err)
}
