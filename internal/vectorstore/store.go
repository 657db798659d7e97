package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	errx "github.com/skyrag-assistant/server/internal/core/error"
	logx "github.com/skyrag-assistant/server/pkg/logger"
)

// DefaultTopK is used when a retrieve call carries no top-k option.
const DefaultTopK = 3

var collectionName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

// DB is the subset of *pgxpool.Pool used by the store.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Config struct {
	Collection string
	Dimensions int
	Embedder   embedding.Embedder
}

// Store is a named pgvector collection usable as an eino Indexer and
// Retriever. The backing table is created on first use.
type Store struct {
	db         DB
	collection string
	table      string
	dimensions int
	embedder   embedding.Embedder

	mu      sync.Mutex
	ensured bool
}

func New(db DB, cfg Config) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("vector store db is nil")
	}
	if !collectionName.MatchString(cfg.Collection) {
		return nil, fmt.Errorf("invalid collection name %q", cfg.Collection)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("collection dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	return &Store{
		db:         db,
		collection: cfg.Collection,
		table:      pgx.Identifier{cfg.Collection}.Sanitize(),
		dimensions: cfg.Dimensions,
		embedder:   cfg.Embedder,
	}, nil
}

func (s *Store) GetType() string {
	return "PGVector"
}

// EnsureCollection creates the vector extension and the collection table if
// they do not exist yet. A failed attempt is retried on the next call.
func (s *Store) EnsureCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	embedding vector(%d) NOT NULL
)`, s.table, s.dimensions),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			logx.Error().Err(err).Str("collection", s.collection).Msg("Failed to ensure vector collection")
			return errx.WrapPostgres(fmt.Errorf("ensure collection %s: %w", s.collection, err))
		}
	}
	s.ensured = true
	logx.Debug().Str("collection", s.collection).Int("dimensions", s.dimensions).Msg("Vector collection ready")
	return nil
}

// Upsert stores docs under the given ids. ids must be empty or match docs in
// length; documents without an id get a random UUID. The caller's documents
// are not modified.
func (s *Store) Upsert(ctx context.Context, docs []*schema.Document, ids []string) ([]string, error) {
	if len(ids) > 0 && len(ids) != len(docs) {
		return nil, fmt.Errorf("got %d ids for %d documents", len(ids), len(docs))
	}
	return s.upsert(ctx, docs, ids, s.embedder)
}

// Store implements indexer.Indexer.
func (s *Store) Store(ctx context.Context, docs []*schema.Document, opts ...indexer.Option) ([]string, error) {
	emb := s.embedder
	if o := indexer.GetCommonOptions(&indexer.Options{}, opts...); o.Embedding != nil {
		emb = o.Embedding
	}
	return s.upsert(ctx, docs, nil, emb)
}

// upsert writes all docs in one transaction: either every row lands or none.
func (s *Store) upsert(ctx context.Context, docs []*schema.Document, ids []string, emb embedding.Embedder) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	out := make([]string, len(docs))
	texts := make([]string, len(docs))
	for i, d := range docs {
		if d == nil {
			return nil, fmt.Errorf("document %d is nil", i)
		}
		switch {
		case len(ids) > 0 && ids[i] != "":
			out[i] = ids[i]
		case d.ID != "":
			out[i] = d.ID
		default:
			out[i] = uuid.NewString()
		}
		texts[i] = d.Content
	}

	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	vectors, err := emb.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, content, metadata, embedding) VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`, s.table)

	batch := &pgx.Batch{}
	for i, d := range docs {
		meta, err := encodeMetadata(d.MetaData)
		if err != nil {
			return nil, fmt.Errorf("document %s metadata: %w", out[i], err)
		}
		batch.Queue(query, out[i], d.Content, meta, pgvector.NewVector(toFloat32(vectors[i])))
	}

	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for _, id := range out {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("upsert %s: %w", id, err)
			}
		}
		return br.Close()
	})
	if err != nil {
		logx.Error().Err(err).Str("collection", s.collection).Int("documents", len(out)).Msg("Failed to upsert documents")
		return nil, errx.WrapPostgres(err)
	}
	logx.Debug().Str("collection", s.collection).Int("documents", len(out)).Msg("Upserted documents")
	return out, nil
}

// SimilaritySearch returns the k passages closest to query by cosine distance.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) ([]*schema.Document, error) {
	return s.Retrieve(ctx, query, retriever.WithTopK(k))
}

// Retrieve implements retriever.Retriever.
func (s *Store) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	o := retriever.GetCommonOptions(&retriever.Options{TopK: intPtr(DefaultTopK)}, opts...)
	topK := DefaultTopK
	if o.TopK != nil && *o.TopK > 0 {
		topK = *o.TopK
	}
	emb := s.embedder
	if o.Embedding != nil {
		emb = o.Embedding
	}

	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	vectors, err := emb.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}

	sql := fmt.Sprintf(`SELECT id, content, metadata::text, 1 - (embedding <=> $1) AS score
FROM %s ORDER BY embedding <=> $1 LIMIT $2`, s.table)
	rows, err := s.db.Query(ctx, sql, pgvector.NewVector(toFloat32(vectors[0])), topK)
	if err != nil {
		return nil, errx.WrapPostgres(fmt.Errorf("similarity search: %w", err))
	}
	defer rows.Close()

	var docs []*schema.Document
	for rows.Next() {
		var (
			id, content, meta string
			score             float64
		)
		if err := rows.Scan(&id, &content, &meta, &score); err != nil {
			return nil, errx.WrapPostgres(fmt.Errorf("scan result: %w", err))
		}
		doc := &schema.Document{ID: id, Content: content, MetaData: map[string]any{}}
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &doc.MetaData); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", id, err)
			}
		}
		docs = append(docs, doc.WithScore(score))
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapPostgres(fmt.Errorf("iterate results: %w", err))
	}
	return docs, nil
}

// Clear deletes every point in the collection and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		return 0, err
	}
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table))
	if err != nil {
		logx.Error().Err(err).Str("collection", s.collection).Msg("Failed to clear vector collection")
		return 0, errx.WrapPostgres(fmt.Errorf("clear collection %s: %w", s.collection, err))
	}
	logx.Info().Str("collection", s.collection).Int64("deleted", tag.RowsAffected()).Msg("Vector collection emptied")
	return tag.RowsAffected(), nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func intPtr(v int) *int {
	return &v
}

var (
	_ indexer.Indexer     = (*Store)(nil)
	_ retriever.Retriever = (*Store)(nil)
)
