package ingestion

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
)

// chunkSeparators are tried in order: paragraph, line, word, character.
var chunkSeparators = []string{"\n\n", "\n", " ", ""}

// NewChunkSplitter returns a recursive splitter producing chunks of at most
// size runes, with consecutive chunks sharing up to overlap runes.
// Separators stay attached to the end of the text they follow.
func NewChunkSplitter(ctx context.Context, size, overlap int) (document.Transformer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   size,
		OverlapSize: overlap,
		Separators:  chunkSeparators,
		LenFunc:     utf8.RuneCountInString,
		KeepType:    recursive.KeepTypeEnd,
	})
}
