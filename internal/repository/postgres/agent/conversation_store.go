// Package agent implements conversation and turn persistence over
// Postgres: table-prefixed SQL, GetExecutor transaction plumbing, and the
// row-locking / retry semantics that guarantee contiguous turn numbers.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/google/uuid"

	"arxivian/internal/domain"
	"arxivian/internal/domain/repositories"
	agentmodels "arxivian/internal/domain/models/agent"
	agentrepo "arxivian/internal/domain/repositories/agent"
	"arxivian/internal/repository/postgres"
)

const maxSaveTurnRetries = 3

// PostgresConversationStore implements agentrepo.ConversationStore.
type PostgresConversationStore struct {
	pool   *pgxpool.Pool
	tx     repositories.TransactionManager
	tables *postgres.TableNames
	logger *slog.Logger
}

func NewPostgresConversationStore(cfg *postgres.RepositoryConfig, txm repositories.TransactionManager) agentrepo.ConversationStore {
	return &PostgresConversationStore{
		pool:   cfg.Pool,
		tx:     txm,
		tables: cfg.Tables,
		logger: cfg.Logger,
	}
}

func (s *PostgresConversationStore) GetOrCreate(ctx context.Context, sessionID, userID string) (*agentmodels.Conversation, error) {
	conv, err := s.getBySessionID(ctx, sessionID, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, session_id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (session_id) DO NOTHING
		RETURNING id, session_id, user_id, title, created_at, updated_at
	`, s.tables.Conversations)

	now := time.Now().UTC()
	executor := postgres.GetExecutor(ctx, s.pool)
	var c agentmodels.Conversation
	err = executor.QueryRow(ctx, query, uuid.NewString(), sessionID, userID, now).Scan(
		&c.ID, &c.SessionID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the create race; the winner's row now exists.
			return s.getBySessionID(ctx, sessionID, userID)
		}
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &c, nil
}

func (s *PostgresConversationStore) getBySessionID(ctx context.Context, sessionID, userID string) (*agentmodels.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, user_id, title, created_at, updated_at
		FROM %s WHERE session_id = $1 AND user_id = $2
	`, s.tables.Conversations)

	executor := postgres.GetExecutor(ctx, s.pool)
	var c agentmodels.Conversation
	err := executor.QueryRow(ctx, query, sessionID, userID).Scan(
		&c.ID, &c.SessionID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

func (s *PostgresConversationStore) GetHistory(ctx context.Context, sessionID string, limit int, userID string) ([]agentmodels.Turn, error) {
	conv, err := s.getBySessionID(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE conversation_id = $1
		ORDER BY turn_number DESC LIMIT $2
	`, turnColumns, s.tables.Turns)

	executor := postgres.GetExecutor(ctx, s.pool)
	rows, err := executor.Query(ctx, query, conv.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer rows.Close()

	var turns []agentmodels.Turn
	for rows.Next() {
		t, err := scanTurnRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse DESC to chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *PostgresConversationStore) SaveTurn(ctx context.Context, sessionID string, input agentrepo.SaveTurnInput, userID string) (*agentmodels.Turn, error) {
	var saved *agentmodels.Turn

	for attempt := 0; attempt <= maxSaveTurnRetries; attempt++ {
		err := s.tx.ExecTx(ctx, func(txCtx context.Context) error {
			convID, err := s.lockOrCreateConversation(txCtx, sessionID, userID)
			if err != nil {
				return err
			}

			nextTurn, err := s.lockNextTurnNumber(txCtx, convID)
			if err != nil {
				return err
			}

			saved, err = s.insertTurn(txCtx, convID, nextTurn, input)
			return err
		})
		if err == nil {
			return saved, nil
		}
		if postgres.IsPgDuplicateError(err) && attempt < maxSaveTurnRetries {
			s.logger.Warn("turn save retry", "session_id", sessionID, "attempt", attempt+1)
			continue
		}
		return nil, fmt.Errorf("save turn: %w", err)
	}

	return nil, fmt.Errorf("save turn: exhausted %d retries", maxSaveTurnRetries)
}

func (s *PostgresConversationStore) lockOrCreateConversation(ctx context.Context, sessionID, userID string) (string, error) {
	executor := postgres.GetExecutor(ctx, s.pool)

	query := fmt.Sprintf(`
		SELECT id FROM %s WHERE session_id = $1 AND user_id = $2 FOR UPDATE
	`, s.tables.Conversations)

	var convID string
	err := executor.QueryRow(ctx, query, sessionID, userID).Scan(&convID)
	if err == nil {
		return convID, nil
	}
	if !postgres.IsPgNoRowsError(err) {
		return "", fmt.Errorf("lock conversation: %w", err)
	}

	now := time.Now().UTC()
	insert := fmt.Sprintf(`
		INSERT INTO %s (id, session_id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id
	`, s.tables.Conversations)
	convID = uuid.NewString()
	if err := executor.QueryRow(ctx, insert, convID, sessionID, userID, now).Scan(&convID); err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	return convID, nil
}

func (s *PostgresConversationStore) lockNextTurnNumber(ctx context.Context, conversationID string) (int, error) {
	executor := postgres.GetExecutor(ctx, s.pool)

	query := fmt.Sprintf(`
		SELECT turn_number FROM %s WHERE conversation_id = $1
		ORDER BY turn_number DESC LIMIT 1 FOR UPDATE
	`, s.tables.Turns)

	var maxTurn int
	err := executor.QueryRow(ctx, query, conversationID).Scan(&maxTurn)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("lock last turn: %w", err)
	}
	return maxTurn + 1, nil
}

func (s *PostgresConversationStore) insertTurn(ctx context.Context, conversationID string, turnNumber int, input agentrepo.SaveTurnInput) (*agentmodels.Turn, error) {
	sourcesJSON, err := marshalNullable(input.Sources)
	if err != nil {
		return nil, err
	}
	reasoningJSON, err := marshalNullable(input.ReasoningSteps)
	if err != nil {
		return nil, err
	}
	thinkingJSON, err := marshalNullable(input.ThinkingSteps)
	if err != nil {
		return nil, err
	}
	citationsJSON, err := marshalNullable(input.Citations)
	if err != nil {
		return nil, err
	}
	pendingJSON, err := marshalNullable(input.PendingConfirmation)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, conversation_id, turn_number, user_query, agent_response,
			provider, model, guardrail_score, retrieval_attempts, rewritten_query,
			sources, reasoning_steps, thinking_steps, citations, pending_confirmation,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING %s
	`, s.tables.Turns, turnColumns)

	executor := postgres.GetExecutor(ctx, s.pool)
	row := executor.QueryRow(ctx, query,
		uuid.NewString(), conversationID, turnNumber, input.UserQuery, input.AgentResponse,
		input.Provider, input.Model, input.GuardrailScore, input.RetrievalAttempts, input.RewrittenQuery,
		sourcesJSON, reasoningJSON, thinkingJSON, citationsJSON, pendingJSON,
		time.Now().UTC(),
	)
	return scanTurnRow(row)
}

func (s *PostgresConversationStore) CompletePendingTurn(ctx context.Context, sessionID string, turnNumber int, input agentrepo.CompleteTurnInput, userID string) error {
	return s.tx.ExecTx(ctx, func(txCtx context.Context) error {
		conv, err := s.getBySessionID(txCtx, sessionID, userID)
		if err != nil {
			return err
		}

		executor := postgres.GetExecutor(txCtx, s.pool)
		lockQuery := fmt.Sprintf(`
			SELECT id FROM %s WHERE conversation_id = $1 AND turn_number = $2 FOR UPDATE
		`, s.tables.Turns)
		var turnID string
		if err := executor.QueryRow(txCtx, lockQuery, conv.ID, turnNumber).Scan(&turnID); err != nil {
			if postgres.IsPgNoRowsError(err) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("lock pending turn: %w", err)
		}

		sets := []string{"agent_response = $2", "pending_confirmation = NULL"}
		args := []interface{}{turnID, input.AgentResponse}
		next := 3

		if input.ThinkingSteps != nil {
			b, err := json.Marshal(input.ThinkingSteps)
			if err != nil {
				return err
			}
			sets = append(sets, fmt.Sprintf("thinking_steps = $%d", next))
			args = append(args, b)
			next++
		}
		if input.Sources != nil {
			b, err := json.Marshal(input.Sources)
			if err != nil {
				return err
			}
			sets = append(sets, fmt.Sprintf("sources = $%d", next))
			args = append(args, b)
			next++
		}
		if input.ReasoningSteps != nil {
			b, err := json.Marshal(input.ReasoningSteps)
			if err != nil {
				return err
			}
			sets = append(sets, fmt.Sprintf("reasoning_steps = $%d", next))
			args = append(args, b)
			next++
		}
		if input.Citations != nil {
			b, err := json.Marshal(input.Citations)
			if err != nil {
				return err
			}
			sets = append(sets, fmt.Sprintf("citations = $%d", next))
			args = append(args, b)
			next++
		}

		setClause := sets[0]
		for _, s := range sets[1:] {
			setClause += ", " + s
		}

		update := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1`, s.tables.Turns, setClause)
		_, err = executor.Exec(txCtx, update, args...)
		return err
	})
}

func (s *PostgresConversationStore) HasPendingConfirmation(ctx context.Context, sessionID string, userID string) (bool, error) {
	turn, err := s.GetPendingTurn(ctx, sessionID, userID)
	if err != nil {
		return false, err
	}
	return turn != nil, nil
}

func (s *PostgresConversationStore) GetPendingTurn(ctx context.Context, sessionID string, userID string) (*agentmodels.Turn, error) {
	conv, err := s.getBySessionID(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE conversation_id = $1 AND pending_confirmation IS NOT NULL
		ORDER BY turn_number DESC LIMIT 1
	`, turnColumns, s.tables.Turns)

	executor := postgres.GetExecutor(ctx, s.pool)
	row := executor.QueryRow(ctx, query, conv.ID)
	turn, err := scanTurnRow(row)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pending turn: %w", err)
	}
	return turn, nil
}

func (s *PostgresConversationStore) ClearPendingConfirmation(ctx context.Context, sessionID string, turnNumber int, userID string) error {
	return s.tx.ExecTx(ctx, func(txCtx context.Context) error {
		conv, err := s.getBySessionID(txCtx, sessionID, userID)
		if err != nil {
			return err
		}

		executor := postgres.GetExecutor(txCtx, s.pool)
		query := fmt.Sprintf(`
			UPDATE %s SET pending_confirmation = NULL
			WHERE conversation_id = $1 AND turn_number = $2
		`, s.tables.Turns)
		_, err = executor.Exec(txCtx, query, conv.ID, turnNumber)
		return err
	})
}

func (s *PostgresConversationStore) Delete(ctx context.Context, sessionID string, userID string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1 AND user_id = $2`, s.tables.Conversations)
	executor := postgres.GetExecutor(ctx, s.pool)
	tag, err := executor.Exec(ctx, query, sessionID, userID)
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresConversationStore) SetTitle(ctx context.Context, sessionID string, title string, userID string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET title = $1, updated_at = $2
		WHERE session_id = $3 AND user_id = $4 AND title IS NULL
	`, s.tables.Conversations)

	executor := postgres.GetExecutor(ctx, s.pool)
	_, err := executor.Exec(ctx, query, title, time.Now().UTC(), sessionID, userID)
	if err != nil {
		return fmt.Errorf("set title: %w", err)
	}
	return nil
}

func (s *PostgresConversationStore) List(ctx context.Context, userID string, offset, limit int) ([]agentmodels.ConversationSummary, error) {
	query := fmt.Sprintf(`
		SELECT c.session_id, c.title, c.created_at, c.updated_at,
		       COUNT(t.id) AS turn_count,
		       (SELECT user_query FROM %s t2 WHERE t2.conversation_id = c.id ORDER BY t2.turn_number DESC LIMIT 1) AS last_query
		FROM %s c
		LEFT JOIN %s t ON t.conversation_id = c.id
		WHERE c.user_id = $1
		GROUP BY c.id
		ORDER BY c.updated_at DESC
		OFFSET $2 LIMIT $3
	`, s.tables.Turns, s.tables.Conversations, s.tables.Turns)

	executor := postgres.GetExecutor(ctx, s.pool)
	rows, err := executor.Query(ctx, query, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []agentmodels.ConversationSummary
	for rows.Next() {
		var sum agentmodels.ConversationSummary
		if err := rows.Scan(&sum.SessionID, &sum.Title, &sum.CreatedAt, &sum.UpdatedAt, &sum.TurnCount, &sum.LastQuery); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *PostgresConversationStore) Get(ctx context.Context, sessionID string, userID string) (*agentmodels.ConversationDetail, error) {
	conv, err := s.getBySessionID(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	turns, err := s.GetHistory(ctx, sessionID, 1<<30, userID)
	if err != nil {
		return nil, err
	}
	return &agentmodels.ConversationDetail{Conversation: *conv, Turns: turns}, nil
}

const turnColumns = `
	id, conversation_id, turn_number, user_query, agent_response,
	provider, model, guardrail_score, retrieval_attempts, rewritten_query,
	sources, reasoning_steps, thinking_steps, citations, pending_confirmation,
	created_at
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTurnRow(row rowScanner) (*agentmodels.Turn, error) {
	var t agentmodels.Turn
	var sourcesRaw, reasoningRaw, thinkingRaw, citationsRaw, pendingRaw []byte

	err := row.Scan(
		&t.ID, &t.ConversationID, &t.TurnNumber, &t.UserQuery, &t.AgentResponse,
		&t.Provider, &t.Model, &t.GuardrailScore, &t.RetrievalAttempts, &t.RewrittenQuery,
		&sourcesRaw, &reasoningRaw, &thinkingRaw, &citationsRaw, &pendingRaw,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(sourcesRaw) > 0 {
		if err := json.Unmarshal(sourcesRaw, &t.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal sources: %w", err)
		}
	}
	if len(reasoningRaw) > 0 {
		if err := json.Unmarshal(reasoningRaw, &t.ReasoningSteps); err != nil {
			return nil, fmt.Errorf("unmarshal reasoning_steps: %w", err)
		}
	}
	if len(thinkingRaw) > 0 {
		if err := json.Unmarshal(thinkingRaw, &t.ThinkingSteps); err != nil {
			return nil, fmt.Errorf("unmarshal thinking_steps: %w", err)
		}
	}
	if len(citationsRaw) > 0 {
		if err := json.Unmarshal(citationsRaw, &t.Citations); err != nil {
			return nil, fmt.Errorf("unmarshal citations: %w", err)
		}
	}
	if len(pendingRaw) > 0 {
		if err := json.Unmarshal(pendingRaw, &t.PendingConfirmation); err != nil {
			return nil, fmt.Errorf("unmarshal pending_confirmation: %w", err)
		}
	}

	return &t, nil
}

func marshalNullable(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
