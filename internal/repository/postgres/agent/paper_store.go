package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	agentmodels "arxivian/internal/domain/models/agent"
	agentrepo "arxivian/internal/domain/repositories/agent"
	"arxivian/internal/repository/postgres"
)

// pgLockNotAvailable is the SQLSTATE FOR UPDATE NOWAIT raises when another
// writer already holds the row lock.
const pgLockNotAvailable = "55P03"

// PostgresPaperStore implements agentrepo.PaperStore with the same
// fmt.Sprintf table-prefixed SQL and row-locking convention as
// conversation_store.go.
type PostgresPaperStore struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

func NewPostgresPaperStore(cfg *postgres.RepositoryConfig) agentrepo.PaperStore {
	return &PostgresPaperStore{pool: cfg.Pool, tables: cfg.Tables, logger: cfg.Logger}
}

func (s *PostgresPaperStore) FilterIngested(ctx context.Context, arxivIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(arxivIDs))
	if len(arxivIDs) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`SELECT arxiv_id FROM %s WHERE arxiv_id = ANY($1)`, s.tables.Papers)
	executor := postgres.GetExecutor(ctx, s.pool)
	rows, err := executor.Query(ctx, query, arxivIDs)
	if err != nil {
		return nil, fmt.Errorf("filter ingested: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ingested id: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (s *PostgresPaperStore) IngestPaper(ctx context.Context, paper agentmodels.ProposedPaper, chunks []agentmodels.Chunk, embeddings [][]float32) (int, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("ingest paper: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	lockQuery := fmt.Sprintf(`SELECT arxiv_id FROM %s WHERE arxiv_id = $1 FOR UPDATE NOWAIT`, s.tables.Papers)
	var existing string
	err = tx.QueryRow(ctx, lockQuery, paper.ArxivID).Scan(&existing)
	switch {
	case err == nil:
		// Already ingested; nothing to do.
		return 0, true, nil
	case postgres.IsPgNoRowsError(err):
		// Not yet present; proceed to insert below.
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
			s.logger.Info("ingest skipped, concurrent writer holds the lock", "arxiv_id", paper.ArxivID)
			return 0, true, nil
		}
		return 0, false, fmt.Errorf("ingest paper: lock check: %w", err)
	}

	authorsJSON, err := json.Marshal(paper.Authors)
	if err != nil {
		return 0, false, fmt.Errorf("ingest paper: encode authors: %w", err)
	}

	insertPaper := fmt.Sprintf(`
		INSERT INTO %s (arxiv_id, title, authors, abstract, pdf_url, published_date, ingested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.tables.Papers)
	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, insertPaper, paper.ArxivID, paper.Title, authorsJSON, paper.Abstract, paper.PDFURL, paper.PublishedDate, now); err != nil {
		return 0, false, fmt.Errorf("ingest paper: insert paper row: %w", err)
	}

	created := 0
	insertChunk := fmt.Sprintf(`
		INSERT INTO %s (chunk_id, arxiv_id, title, authors, chunk_text, section_name,
		                 page_number, pdf_url, published_date, embedding, search_vector)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::vector, to_tsvector('english', $5))
	`, s.tables.Chunks)
	for i, c := range chunks {
		var embedding string
		if i < len(embeddings) {
			embedding = formatVectorLiteral(embeddings[i])
		}
		if _, err := tx.Exec(ctx, insertChunk, c.ChunkID, c.ArxivID, c.Title, authorsJSON, c.ChunkText,
			c.SectionName, c.PageNumber, c.PDFURL, c.PublishedDate, embedding); err != nil {
			return created, false, fmt.Errorf("ingest paper: insert chunk: %w", err)
		}
		created++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("ingest paper: commit: %w", err)
	}
	return created, false, nil
}

func (s *PostgresPaperStore) CountIngestedSince(ctx context.Context, sinceUnixSeconds int64) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE ingested_at >= $1`, s.tables.Papers)
	executor := postgres.GetExecutor(ctx, s.pool)
	var count int
	since := time.Unix(sinceUnixSeconds, 0).UTC()
	if err := executor.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count ingested since: %w", err)
	}
	return count, nil
}

func formatVectorLiteral(v []float32) string {
	if len(v) == 0 {
		return ""
	}
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
