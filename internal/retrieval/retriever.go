package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/retriever"

	logx "github.com/skyrag-assistant/server/pkg/logger"
)

const (
	// DefaultTopK is the number of passages fetched when none is configured.
	DefaultTopK = 3
	// ErrorPrefix starts the context string returned when retrieval fails.
	ErrorPrefix = "Retrieval error: "

	passageSeparator = "\n\n"
)

// DocumentRetriever turns a query into a single context block built from the
// most similar indexed passages.
type DocumentRetriever struct {
	retriever retriever.Retriever
	topK      int
}

func NewDocumentRetriever(r retriever.Retriever, topK int) *DocumentRetriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &DocumentRetriever{retriever: r, topK: topK}
}

// Retrieve uses the configured top-k.
func (d *DocumentRetriever) Retrieve(ctx context.Context, query string) string {
	return d.RetrieveK(ctx, query, d.topK)
}

// RetrieveK joins the content of the k best passages with blank lines. On
// failure it returns a human readable error string instead of context.
func (d *DocumentRetriever) RetrieveK(ctx context.Context, query string, k int) (out string) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "retriever").Msgf("panic recovered: %v", r)
			out = fmt.Sprintf("%s%v", ErrorPrefix, r)
		}
	}()

	if k <= 0 {
		k = DefaultTopK
	}
	docs, err := d.retriever.Retrieve(ctx, query, retriever.WithTopK(k))
	if err != nil {
		logx.Warn().Err(err).Str("query", query).Msg("Retrieval failed; continuing with error context")
		return ErrorPrefix + err.Error()
	}

	passages := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		passages = append(passages, doc.Content)
	}
	logx.Debug().Int("passages", len(passages)).Int("top_k", k).Msg("Retrieved document context")
	return strings.Join(passages, passageSeparator)
}

// IsErrorContext reports whether a context string came from a failed retrieval.
func IsErrorContext(s string) bool {
	return strings.HasPrefix(s, ErrorPrefix)
}
