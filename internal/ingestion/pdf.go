package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
	"github.com/ledongthuc/pdf"
)

// LoadPDF extracts plain text from every page of the file at path, one
// document per non-empty page.
func LoadPDF(path string) ([]*schema.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	source := filepath.Base(path)
	var docs []*schema.Document
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d of %s: %w", i, source, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		docs = append(docs, &schema.Document{
			Content:  text,
			MetaData: map[string]any{"source": source, "page": i},
		})
	}
	return docs, nil
}

// PDFLoader adapts LoadPDF to document.Loader.
type PDFLoader struct{}

func (PDFLoader) Load(_ context.Context, src document.Source, _ ...document.LoaderOption) ([]*schema.Document, error) {
	return LoadPDF(src.URI)
}

var _ document.Loader = PDFLoader{}
