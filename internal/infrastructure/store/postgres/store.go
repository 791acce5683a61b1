package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/oncare-clinic/rag-chatbot/internal/core/domain"
)

// Store is the pgvector-backed document store. It serves the four retrieval
// branches (cosine vector search, ILIKE keyword search), category listing
// for citation supplementation and batch inserts for ingestion.
type Store struct {
	db            *sql.DB
	allowedTables map[string]struct{}
	keywordFloor  float64
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// NewStore restricts queries to the given tables; table names reach SQL text
// directly so anything outside the allow-list is rejected up front.
func NewStore(db *sql.DB, tables []string, keywordFloor float64) *Store {
	allowed := make(map[string]struct{}, len(tables))
	for _, table := range tables {
		allowed[table] = struct{}{}
	}
	return &Store{
		db:            db,
		allowedTables: allowed,
		keywordFloor:  keywordFloor,
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026032101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("ensure pgvector extension: %w", err)
	}

	for table := range s.allowedTables {
		ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	content TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	embedding VECTOR(768)
);

CREATE INDEX IF NOT EXISTS idx_%s_category ON %s ((metadata->>'category'));
CREATE INDEX IF NOT EXISTS idx_%s_type ON %s ((metadata->>'type'));
`, table, table, table, table, table)
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("execute schema ddl for %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *Store) VectorSearch(ctx context.Context, table string, embedding []float32, threshold float64, limit int) ([]domain.Document, error) {
	if err := s.validateTable(table); err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "vector search", fmt.Errorf("empty embedding"))
	}
	if limit <= 0 {
		limit = 5
	}

	query := fmt.Sprintf(`
SELECT id, content, metadata, 1 - (embedding <=> $1::vector) AS similarity
FROM %s
WHERE embedding IS NOT NULL
  AND 1 - (embedding <=> $1::vector) > $2
ORDER BY embedding <=> $1::vector
LIMIT $3
`, table)

	rows, err := s.db.QueryContext(ctx, query, vectorLiteral(embedding), threshold, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStore, "vector search", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			doc        domain.Document
			rawMeta    []byte
			similarity float64
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &rawMeta, &similarity); err != nil {
			return nil, domain.WrapError(domain.ErrStore, "scan vector row", err)
		}
		doc.Metadata = parseMetadata(rawMeta)
		doc.Similarity = similarity
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStore, "vector rows", err)
	}
	return docs, nil
}

const maxKeywordTerms = 8

func (s *Store) KeywordSearch(ctx context.Context, table string, terms []string, filter domain.SearchFilter, limit int) ([]domain.Document, error) {
	if err := s.validateTable(table); err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, nil
	}
	if len(terms) > maxKeywordTerms {
		terms = terms[:maxKeywordTerms]
	}
	if limit <= 0 {
		limit = 5
	}

	var (
		conditions []string
		args       []any
	)
	for _, term := range terms {
		args = append(args, "%"+term+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		conditions = append(conditions, fmt.Sprintf("(content ILIKE %s OR metadata->>'title' ILIKE %s)", placeholder, placeholder))
	}

	where := "(" + strings.Join(conditions, " OR ") + ")"
	if !filter.IsZero() {
		args = append(args, string(filter.Type))
		where += fmt.Sprintf(" AND metadata->>'type' = $%d", len(args))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
SELECT id, content, metadata
FROM %s
WHERE %s
LIMIT $%d
`, table, where, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStore, "keyword search", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			doc     domain.Document
			rawMeta []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &rawMeta); err != nil {
			return nil, domain.WrapError(domain.ErrStore, "scan keyword row", err)
		}
		doc.Metadata = parseMetadata(rawMeta)
		doc.Similarity = s.keywordScore(doc, terms)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStore, "keyword rows", err)
	}
	return docs, nil
}

// keywordScore is the term-overlap ratio used as a similarity proxy, clamped
// up to the configured floor so a single-term hit is not buried below every
// threshold-filtered vector result.
func (s *Store) keywordScore(doc domain.Document, terms []string) float64 {
	haystack := strings.ToLower(strings.ReplaceAll(doc.Content+" "+doc.Metadata.Title(), " ", ""))
	matched := 0
	for _, term := range terms {
		needle := strings.ToLower(strings.ReplaceAll(term, " ", ""))
		if needle != "" && strings.Contains(haystack, needle) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	score := float64(matched) / float64(len(terms))
	if score < s.keywordFloor {
		score = s.keywordFloor
	}
	if score > 1 {
		score = 1
	}
	return score
}

func (s *Store) ListByCategory(ctx context.Context, table string, category domain.Category, limit int) ([]domain.Document, error) {
	if err := s.validateTable(table); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
SELECT id, content, metadata
FROM %s
WHERE metadata->>'category' = $1
LIMIT $2
`, table)

	rows, err := s.db.QueryContext(ctx, query, string(category), limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStore, "list by category", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			doc     domain.Document
			rawMeta []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &rawMeta); err != nil {
			return nil, domain.WrapError(domain.ErrStore, "scan category row", err)
		}
		doc.Metadata = parseMetadata(rawMeta)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStore, "category rows", err)
	}
	return docs, nil
}

func (s *Store) InsertDocuments(ctx context.Context, table string, docs []domain.Document, vectors [][]float32) error {
	if err := s.validateTable(table); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("insert documents: %d vectors for %d docs", len(vectors), len(docs))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.ErrStore, "begin insert tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := fmt.Sprintf(`
INSERT INTO %s (id, content, metadata, embedding)
VALUES ($1, $2, $3, $4::vector)
`, table)

	for i, doc := range docs {
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		var embedding any
		if len(vectors[i]) > 0 {
			embedding = vectorLiteral(vectors[i])
		}
		if _, err := tx.ExecContext(ctx, query, doc.ID, doc.Content, meta, embedding); err != nil {
			return domain.WrapError(domain.ErrStore, "insert document", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.ErrStore, "commit insert tx", err)
	}
	return nil
}

func (s *Store) validateTable(table string) error {
	if _, ok := s.allowedTables[table]; !ok {
		return domain.WrapError(domain.ErrInvalidInput, "validate table", fmt.Errorf("table %q is not allowed", table))
	}
	return nil
}

// parseMetadata tolerates malformed payloads: the document stays usable as
// content, it just contributes nothing to title/category filtering.
func parseMetadata(raw []byte) domain.Metadata {
	if len(raw) == 0 {
		return nil
	}

	var flat map[string]string
	if err := json.Unmarshal(raw, &flat); err == nil {
		return domain.Metadata(flat)
	}

	var loose map[string]any
	if err := json.Unmarshal(raw, &loose); err != nil {
		slog.Warn("metadata_unparseable", "error", domain.WrapError(domain.ErrMalformedMetadata, "parse metadata", err))
		return nil
	}
	meta := make(domain.Metadata, len(loose))
	for key, value := range loose {
		switch v := value.(type) {
		case string:
			meta[key] = v
		case float64:
			meta[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			meta[key] = strconv.FormatBool(v)
		}
	}
	return meta
}

// vectorLiteral renders a pgvector input literal, e.g. "[0.1,0.2]".
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
