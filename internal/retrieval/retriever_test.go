package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"
)

type fakeRetriever struct {
	docs    []*schema.Document
	err     error
	gotTopK int
	gotQ    string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	o := retriever.GetCommonOptions(&retriever.Options{}, opts...)
	if o.TopK != nil {
		f.gotTopK = *o.TopK
	}
	f.gotQ = query
	return f.docs, f.err
}

func TestDocumentRetriever_JoinsPassages(t *testing.T) {
	fr := &fakeRetriever{docs: []*schema.Document{
		{ID: "1", Content: "Doc discusses AI."},
		nil,
		{ID: "2", Content: "It also covers robotics."},
	}}
	r := NewDocumentRetriever(fr, 0)

	got := r.Retrieve(context.Background(), "Summarize the document")

	require.Equal(t, "Doc discusses AI.\n\nIt also covers robotics.", got)
	require.Equal(t, DefaultTopK, fr.gotTopK)
	require.Equal(t, "Summarize the document", fr.gotQ)
	require.False(t, IsErrorContext(got))
}

func TestDocumentRetriever_CustomK(t *testing.T) {
	fr := &fakeRetriever{}
	r := NewDocumentRetriever(fr, 5)

	require.Equal(t, "", r.Retrieve(context.Background(), "q"))
	require.Equal(t, 5, fr.gotTopK)

	r.RetrieveK(context.Background(), "q", 1)
	require.Equal(t, 1, fr.gotTopK)
}

func TestDocumentRetriever_ErrorBecomesContext(t *testing.T) {
	r := NewDocumentRetriever(&fakeRetriever{err: errors.New("collection unavailable")}, 3)

	got := r.Retrieve(context.Background(), "q")

	require.Equal(t, "Retrieval error: collection unavailable", got)
	require.True(t, IsErrorContext(got))
}

type panicRetriever struct{}

func (panicRetriever) Retrieve(context.Context, string, ...retriever.Option) ([]*schema.Document, error) {
	panic("embedding client exploded")
}

func TestDocumentRetriever_PanicBecomesContext(t *testing.T) {
	got := NewDocumentRetriever(panicRetriever{}, 3).Retrieve(context.Background(), "q")
	require.Equal(t, "Retrieval error: embedding client exploded", got)
}
