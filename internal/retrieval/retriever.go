package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/openhouse/property-assistant/internal/db"
	"github.com/openhouse/property-assistant/internal/embeddings"
	"github.com/openhouse/property-assistant/internal/logger"
)

// ErrQueryEmbedding marks an embedding failure for the query itself.
// Distinct from a valid empty result: callers degrade to "couldn't search
// right now", never to a silent wrong-scope answer.
var ErrQueryEmbedding = errors.New("failed to embed query")

// ErrEmptyQuery is returned for blank query text.
var ErrEmptyQuery = errors.New("query text cannot be empty")

// Searcher is the scoped nearest-neighbor surface of the chunk store.
type Searcher interface {
	SearchChunks(ctx context.Context, scope db.Scope, embedding *pgvector.Vector, limit int) ([]db.ChunkMatch, error)
}

// Result contains the ranked, scope-correct chunks for one query
type Result struct {
	Matches        []db.ChunkMatch
	QueryEmbedding *pgvector.Vector
	Scope          db.Scope
}

// TopSimilarity returns the best match's similarity, or 0 with no matches.
func (r *Result) TopSimilarity() float64 {
	if r == nil || len(r.Matches) == 0 {
		return 0
	}
	return r.Matches[0].Similarity
}

// Retriever answers scoped queries over the chunk store
type Retriever struct {
	store         Searcher
	embedder      embeddings.Embedder
	topK          int
	minSimilarity float64
	cache         *Cache
	expandQueries bool
}

// Option configures the retriever.
type Option func(*Retriever)

// WithTopK sets the default number of chunks returned.
func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithMinSimilarity sets the default retrieval cutoff. Chunks below it
// are excluded from results, not merely ranked low.
func WithMinSimilarity(threshold float64) Option {
	return func(r *Retriever) {
		if threshold > 0 {
			r.minSimilarity = threshold
		}
	}
}

// WithCache wires an explicitly constructed result cache. No cache is
// shared unless passed in here.
func WithCache(c *Cache) Option {
	return func(r *Retriever) {
		r.cache = c
	}
}

// WithQueryExpansion enables related-term expansion of the embedding input.
func WithQueryExpansion() Option {
	return func(r *Retriever) {
		r.expandQueries = true
	}
}

// NewRetriever creates a scoped retriever with the given options.
func NewRetriever(store Searcher, embedder embeddings.Embedder, opts ...Option) *Retriever {
	r := &Retriever{
		store:         store,
		embedder:      embedder,
		topK:          5,
		minSimilarity: 0.35,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve embeds the query and returns the top-k in-scope chunks whose
// similarity meets the threshold, ordered by similarity descending with
// chunk_index then document_id breaking ties. k <= 0 and threshold < 0
// fall back to the configured defaults.
func (r *Retriever) Retrieve(ctx context.Context, scope db.Scope, query string, k int, threshold float64) (*Result, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = r.topK
	}
	if threshold < 0 {
		threshold = r.minSimilarity
	}

	cacheKey := fmt.Sprintf("%s|%d|%.4f", scope.CacheKey(query), k, threshold)
	if r.cache != nil {
		if cached, ok := r.cache.Get(cacheKey); ok {
			logger.Debug("retrieval cache hit for %q", query)
			return cached, nil
		}
	}

	embedInput := query
	if r.expandQueries {
		embedInput = ExpandQuery(query)
		if embedInput != query {
			logger.Debug("expanded query: %q", embedInput)
		}
	}

	queryEmbedding, err := r.embedder.Embed(ctx, embedInput)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryEmbedding, err)
	}

	matches, err := r.store.SearchChunks(ctx, scope, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	kept := matches[:0]
	for _, match := range matches {
		if match.Similarity >= threshold {
			kept = append(kept, match)
		}
	}

	// Stores already order by distance; re-sorting keeps the contract
	// deterministic for equal scores regardless of backend.
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Similarity != kept[j].Similarity {
			return kept[i].Similarity > kept[j].Similarity
		}
		if kept[i].Chunk.ChunkIndex != kept[j].Chunk.ChunkIndex {
			return kept[i].Chunk.ChunkIndex < kept[j].Chunk.ChunkIndex
		}
		return kept[i].Chunk.DocumentID.String() < kept[j].Chunk.DocumentID.String()
	})
	if len(kept) > k {
		kept = kept[:k]
	}

	result := &Result{
		Matches:        kept,
		QueryEmbedding: queryEmbedding,
		Scope:          scope,
	}
	if r.cache != nil {
		r.cache.Put(cacheKey, result)
	}

	logger.Debug("retrieved %d chunks for %q (top similarity %.4f)",
		len(kept), query, result.TopSimilarity())
	return result, nil
}
