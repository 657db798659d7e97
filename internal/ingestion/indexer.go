package ingestion

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/skyrag-assistant/server/internal/agent/model"
	logx "github.com/skyrag-assistant/server/pkg/logger"
)

// ErrNoText is returned when a PDF yields no extractable text.
var ErrNoText = errors.New("pdf has no extractable text")

// Upserter writes documents to the vector index under the given ids.
type Upserter interface {
	Upsert(ctx context.Context, docs []*schema.Document, ids []string) ([]string, error)
}

type IndexResult struct {
	Source string   `json:"source"`
	Pages  int      `json:"pages"`
	Chunks int      `json:"chunks"`
	IDs    []string `json:"ids"`
}

// PDFIndexer loads a PDF, splits its pages into chunks and writes the chunks
// to the vector index.
type PDFIndexer struct {
	loader   document.Loader
	splitter document.Transformer
	store    Upserter
	newID    func() string
}

func NewPDFIndexer(ctx context.Context, cfg model.IngestionConfig, store Upserter) (*PDFIndexer, error) {
	splitter, err := NewChunkSplitter(ctx, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return &PDFIndexer{
		loader:   PDFLoader{},
		splitter: splitter,
		store:    store,
		newID:    uuid.NewString,
	}, nil
}

func (ix *PDFIndexer) IndexPDF(ctx context.Context, path string) (*IndexResult, error) {
	pages, err := ix.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return nil, err
	}
	split, err := ix.splitter.Transform(ctx, pages)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", path, err)
	}
	chunks := make([]*schema.Document, 0, len(split))
	for _, doc := range split {
		if doc == nil || strings.TrimSpace(doc.Content) == "" {
			continue
		}
		if doc.MetaData == nil {
			doc.MetaData = map[string]any{}
		}
		doc.MetaData["chunk"] = len(chunks)
		chunks = append(chunks, doc)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoText)
	}

	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = ix.newID()
	}
	ids, err = ix.store.Upsert(ctx, chunks, ids)
	if err != nil {
		return nil, err
	}

	res := &IndexResult{Source: filepath.Base(path), Pages: len(pages), Chunks: len(chunks), IDs: ids}
	logx.Info().Str("source", res.Source).Int("pages", res.Pages).Int("chunks", res.Chunks).Msg("PDF indexed")
	return res, nil
}
