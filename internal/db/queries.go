package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// CreateDocument inserts a new document record with version 1
func (db *DB) CreateDocument(ctx context.Context, d *Document) (*Document, error) {
	if err := d.Scope().Validate(); err != nil {
		return nil, err
	}

	var doc Document
	err := db.pool.QueryRow(ctx,
		`INSERT INTO documents (tenant_id, development_id, house_type_code, title, source_type, version)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, 1)
		 RETURNING id, tenant_id, development_id, COALESCE(house_type_code, ''), title, source_type, version, created_at, updated_at`,
		d.TenantID, d.DevelopmentID, d.HouseTypeCode, d.Title, d.SourceType,
	).Scan(
		&doc.ID, &doc.TenantID, &doc.DevelopmentID, &doc.HouseTypeCode,
		&doc.Title, &doc.SourceType, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	return &doc, nil
}

// GetDocument retrieves a document by id. Returns nil when not found.
func (db *DB) GetDocument(ctx context.Context, id uuid.UUID) (*Document, error) {
	var doc Document
	err := db.pool.QueryRow(ctx,
		`SELECT id, tenant_id, development_id, COALESCE(house_type_code, ''), title, source_type, version, created_at, updated_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(
		&doc.ID, &doc.TenantID, &doc.DevelopmentID, &doc.HouseTypeCode,
		&doc.Title, &doc.SourceType, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// GetDocumentByTitle retrieves a document by title within a scope.
// Returns nil when not found. Used to detect re-uploads.
func (db *DB) GetDocumentByTitle(ctx context.Context, scope Scope, title string) (*Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var doc Document
	err := db.pool.QueryRow(ctx,
		`SELECT id, tenant_id, development_id, COALESCE(house_type_code, ''), title, source_type, version, created_at, updated_at
		 FROM documents
		 WHERE tenant_id = $1 AND development_id = $2 AND title = $3`,
		scope.TenantID, scope.DevelopmentID, title,
	).Scan(
		&doc.ID, &doc.TenantID, &doc.DevelopmentID, &doc.HouseTypeCode,
		&doc.Title, &doc.SourceType, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document by title: %w", err)
	}
	return &doc, nil
}

// BumpDocumentVersion increments the version counter on re-upload
func (db *DB) BumpDocumentVersion(ctx context.Context, id uuid.UUID) (int, error) {
	var version int
	err := db.pool.QueryRow(ctx,
		`UPDATE documents SET version = version + 1, updated_at = NOW() WHERE id = $1 RETURNING version`,
		id,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to bump document version: %w", err)
	}
	return version, nil
}

// ListDocuments retrieves all documents within a scope
func (db *DB) ListDocuments(ctx context.Context, scope Scope) ([]*Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, tenant_id, development_id, COALESCE(house_type_code, ''), title, source_type, version, created_at, updated_at
		 FROM documents
		 WHERE tenant_id = $1 AND development_id = $2
		 ORDER BY created_at DESC`,
		scope.TenantID, scope.DevelopmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(
			&doc.ID, &doc.TenantID, &doc.DevelopmentID, &doc.HouseTypeCode,
			&doc.Title, &doc.SourceType, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// DeleteDocument deletes a document and its chunks
func (db *DB) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

// ReplaceChunks deletes all existing chunks for a document and inserts the
// new set in a single transaction, so concurrent readers never observe the
// document with zero chunks mid-ingestion.
func (db *DB) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []*Chunk) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM doc_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		batch.Queue(
			`INSERT INTO doc_chunks (id, document_id, tenant_id, development_id, house_type_code, chunk_index, content, embedding)
			 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)`,
			chunk.ID, chunk.DocumentID, chunk.TenantID, chunk.DevelopmentID,
			chunk.HouseTypeCode, chunk.ChunkIndex, chunk.Content, chunk.Embedding,
		)
	}
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < len(chunks); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunk replacement: %w", err)
	}
	return nil
}

// CountChunks returns the number of chunks stored for a document
func (db *DB) CountChunks(ctx context.Context, documentID uuid.UUID) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM doc_chunks WHERE document_id = $1`, documentID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// SearchChunks finds the chunks nearest to the query embedding within a
// scope. Rows outside the scope's tenant and development are excluded by
// the WHERE clause, never by post-filtering. Results are ordered by
// similarity descending with chunk_index then document_id as tie-breaks.
func (db *DB) SearchChunks(ctx context.Context, scope Scope, embedding *pgvector.Vector, limit int) ([]ChunkMatch, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT id, document_id, tenant_id, development_id, COALESCE(house_type_code, ''), chunk_index, content, embedding, created_at,
			1 - (embedding <=> $3) AS similarity
		 FROM doc_chunks
		 WHERE tenant_id = $1 AND development_id = $2 AND embedding IS NOT NULL`
	args := []any{scope.TenantID, scope.DevelopmentID, embedding}

	if scope.HouseTypeCode != "" {
		query += ` AND (house_type_code = $4 OR house_type_code IS NULL)`
		args = append(args, scope.HouseTypeCode)
	}
	query += fmt.Sprintf(` ORDER BY embedding <=> $3, chunk_index, document_id LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var matches []ChunkMatch
	for rows.Next() {
		var chunk Chunk
		var similarity float64
		if err := rows.Scan(
			&chunk.ID, &chunk.DocumentID, &chunk.TenantID, &chunk.DevelopmentID,
			&chunk.HouseTypeCode, &chunk.ChunkIndex, &chunk.Content,
			&chunk.Embedding, &chunk.CreatedAt, &similarity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		matches = append(matches, ChunkMatch{Chunk: &chunk, Similarity: similarity})
	}
	return matches, rows.Err()
}

// InsertGap appends one answer-gap record
func (db *DB) InsertGap(ctx context.Context, entry *GapEntry) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO answer_gaps (id, tenant_id, scheme_id, user_question, intent_type, gap_reason)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.TenantID, entry.SchemeID, entry.UserQuestion, entry.IntentType, entry.GapReason,
	)
	if err != nil {
		return fmt.Errorf("failed to insert gap: %w", err)
	}
	return nil
}

// GroupedGaps aggregates gap records for developer triage: grouped by
// question, intent, reason and scheme, counted, ordered by count
// descending, capped at q.Limit.
func (db *DB) GroupedGaps(ctx context.Context, q GapQuery) ([]GapGroup, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT user_question, intent_type, gap_reason, scheme_id, COUNT(*) AS cnt, MAX(created_at) AS last_asked
		 FROM answer_gaps
		 WHERE gap_reason = ANY($1)`
	args := []any{q.Reasons}

	if q.SchemeID != uuid.Nil {
		args = append(args, q.SchemeID)
		query += fmt.Sprintf(` AND scheme_id = $%d`, len(args))
	}
	if q.TenantID != uuid.Nil {
		args = append(args, q.TenantID)
		query += fmt.Sprintf(` AND tenant_id = $%d`, len(args))
	}

	args = append(args, q.Limit)
	query += fmt.Sprintf(`
		 GROUP BY user_question, intent_type, gap_reason, scheme_id
		 ORDER BY cnt DESC, last_asked DESC
		 LIMIT $%d`, len(args))

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list gaps: %w", err)
	}
	defer rows.Close()

	var groups []GapGroup
	for rows.Next() {
		var g GapGroup
		if err := rows.Scan(&g.UserQuestion, &g.IntentType, &g.GapReason, &g.SchemeID, &g.Count, &g.LastAsked); err != nil {
			return nil, fmt.Errorf("failed to scan gap group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
