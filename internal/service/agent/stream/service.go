// Package stream wraps the orchestrator graph: it translates internal
// graph events into the external SSE contract and owns turn persistence
// and HITL resume. Each request runs a validate, resolve-context, run,
// persist sequence through a producer/translator/consumer pipeline.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"arxivian/internal/config"
	"arxivian/internal/domain"
	agentmodels "arxivian/internal/domain/models/agent"
	agentrepo "arxivian/internal/domain/repositories/agent"
	agentsvc "arxivian/internal/domain/services/agent"
	"arxivian/internal/observability"
	"arxivian/internal/service/agent/orchestrator"
)

// Service implements ask_stream/resume_stream.
type Service struct {
	conversations agentrepo.ConversationStore
	checkpoints   agentrepo.CheckpointStore
	idempotency   agentrepo.IdempotencyStore
	graph         *orchestrator.Graph
	tools         agentsvc.ToolRegistry
	registry      *TaskRegistry
	cfg           *config.Config
	logger        *slog.Logger
	metrics       *observability.Metrics
	trace         observability.TraceScorer
}

func NewService(
	conversations agentrepo.ConversationStore,
	checkpoints agentrepo.CheckpointStore,
	idempotency agentrepo.IdempotencyStore,
	graph *orchestrator.Graph,
	tools agentsvc.ToolRegistry,
	registry *TaskRegistry,
	cfg *config.Config,
	logger *slog.Logger,
	metrics *observability.Metrics,
	trace observability.TraceScorer,
) *Service {
	return &Service{
		conversations: conversations,
		checkpoints:   checkpoints,
		idempotency:   idempotency,
		graph:         graph,
		tools:         tools,
		registry:      registry,
		cfg:           cfg,
		logger:        logger,
		metrics:       metrics,
		trace:         trace,
	}
}

// Stream is the single entrypoint behind POST /stream: it dispatches to the
// fresh-ask or resume path and returns a channel of SSE frames the caller
// drains until it closes. idempotencyKey is the optional caller-supplied
// header value; an empty string skips the reservation.
func (s *Service) Stream(ctx context.Context, req *agentmodels.StreamRequest, userID, idempotencyKey string) (<-chan agentmodels.Event, error) {
	if err := validateStreamRequest(req); err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		ok, err := s.idempotency.Reserve(ctx, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: idempotency key already in use", domain.ErrConflict)
		}
	}

	if req.IsResume() {
		return s.resumeStream(ctx, req, userID)
	}
	return s.askStream(ctx, req, userID)
}

// askStream runs a fresh turn from classify_and_route through to
// generation or HITL pause.
func (s *Service) askStream(ctx context.Context, req *agentmodels.StreamRequest, userID string) (<-chan agentmodels.Event, error) {
	r := resolve(req, s.cfg)

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	threadID := uuid.NewString()

	history, err := s.conversations.GetHistory(ctx, sessionID, r.conversationWindow, userID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	state := &agentmodels.AgentState{
		OriginalQuery: req.Query,
		Status:        agentmodels.StatusRunning,
		MaxIterations: r.maxIterations,
		SessionID:     sessionID,
		ThreadID:      threadID,
		Provider:      resolveProvider(r.provider),
		Model:         resolveModel(r.model, s.cfg),
		Temperature:   r.temperature,
		Metadata: agentmodels.StateMetadata{
			GuardrailThreshold: r.guardrailThreshold,
			TopK:               r.topK,
			TraceID:            uuid.NewString(),
		},
		ConversationHistory: history,
	}
	for _, t := range history {
		state.Messages = append(state.Messages, agentmodels.Message{Role: "user", Content: t.UserQuery})
		state.Messages = append(state.Messages, agentmodels.Message{Role: "assistant", Content: t.AgentResponse})
	}
	state.Messages = append(state.Messages, agentmodels.Message{Role: "user", Content: req.Query})
	if n := len(history); n > 0 {
		state.Metadata.LastGuardrailScore = history[n-1].GuardrailScore
	}

	out := make(chan agentmodels.Event, 16)
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(r.timeoutSeconds)*time.Second)
	unregister := s.registry.Register(sessionID, cancel)

	if s.metrics != nil {
		s.metrics.ActiveStreams.Inc()
	}

	go func() {
		defer close(out)
		defer cancel()
		defer unregister()
		if s.metrics != nil {
			defer s.metrics.ActiveStreams.Dec()
		}

		start := time.Now()
		tr := newTranslator(runCtx, state, r.topK, sessionID, threadID, out, s.registry)

		runErr := s.graph.Run(runCtx, state, tr.emit)
		s.finishTurn(runCtx, out, state, sessionID, userID, req.Query, history, start, runErr, tr)
	}()

	return out, nil
}

// finishTurn applies the fallback/persistence/final-events steps shared by
// both the fresh-ask and resume paths. It writes directly
// to out rather than through the ctx-gated translator path: METADATA and
// DONE must reach the consumer even if the run context's own timeout or
// cancellation already fired.
func (s *Service) finishTurn(ctx context.Context, out chan<- agentmodels.Event, state *agentmodels.AgentState, sessionID, userID, userQuery string, history []agentmodels.Turn, start time.Time, runErr error, tr *translator) {
	elapsed := time.Since(start)
	persistCtx := context.WithoutCancel(ctx)

	if runErr != nil && runErr != context.Canceled {
		code := agentmodels.ErrCodeInternal
		if isTimeout(runErr) {
			code = agentmodels.ErrCodeTimeout
		}
		s.logger.Error("graph run failed", "session_id", sessionID, "error", runErr)
		out <- agentmodels.Event{Name: agentmodels.EventError, Payload: agentmodels.ErrorPayload{Error: runErr.Error(), Code: code}}
	}

	if tr != nil && !tr.emittedContent() && state.FinalAnswer != "" {
		s.logger.Warn("no content tokens emitted; sending synthetic fallback", "session_id", sessionID)
		out <- agentmodels.Event{Name: agentmodels.EventContent, Payload: agentmodels.ContentPayload{Token: state.FinalAnswer}}
	}

	turn, persistErr := s.persistTurn(persistCtx, state, sessionID, userID, userQuery, history)
	if persistErr != nil {
		s.logger.Error("persist turn failed", "session_id", sessionID, "error", persistErr)
	}

	turnNumber := 0
	if turn != nil {
		turnNumber = turn.TurnNumber
	}

	s.recordCompletion(state, elapsed, runErr)

	out <- agentmodels.Event{Name: agentmodels.EventMetadata, Payload: agentmodels.MetadataPayload{
		Query:             state.OriginalQuery,
		ExecutionTimeMs:   elapsed.Milliseconds(),
		RetrievalAttempts: state.RetrievalAttempts,
		RewrittenQuery:    nonEmptyPtr(state.RewrittenQuery),
		GuardrailScore:    state.Metadata.GuardrailScore,
		Provider:          state.Provider,
		Model:             state.Model,
		SessionID:         sessionID,
		TurnNumber:        turnNumber,
		ReasoningSteps:    state.Metadata.ReasoningSteps,
		TraceID:           nonEmptyPtr(state.Metadata.TraceID),
	}}
	out <- agentmodels.Event{Name: agentmodels.EventDone, Payload: agentmodels.DonePayload{}}
}

// recordCompletion folds a finished turn into the observability stack: a
// Prometheus turn counter/histogram keyed by terminal status, and a trace
// score for the guardrail score so an external viewer can correlate scope
// confidence with trace_id.
func (s *Service) recordCompletion(state *agentmodels.AgentState, elapsed time.Duration, runErr error) {
	status := string(state.Status)
	if runErr != nil && runErr != context.Canceled {
		status = string(agentmodels.StatusFailed)
	}
	if s.metrics != nil {
		s.metrics.RecordTurn(status, elapsed, state.Iteration)
	}
	if s.trace != nil && state.Metadata.GuardrailScore != nil {
		s.trace.ScoreTrace(context.Background(), state.Metadata.TraceID, "guardrail_score", float64(*state.Metadata.GuardrailScore))
	}
}

// persistTurn saves the turn produced by this invocation, deriving a
// cold-start title when this is the session's first turn.
func (s *Service) persistTurn(ctx context.Context, state *agentmodels.AgentState, sessionID, userID, userQuery string, history []agentmodels.Turn) (*agentmodels.Turn, error) {
	input := agentrepo.SaveTurnInput{
		UserQuery:         userQuery,
		AgentResponse:     state.FinalAnswer,
		Provider:          state.Provider,
		Model:             state.Model,
		GuardrailScore:    state.Metadata.GuardrailScore,
		RetrievalAttempts: state.RetrievalAttempts,
		RewrittenQuery:    nonEmptyPtr(state.RewrittenQuery),
		Sources:           buildSources(state),
		ReasoningSteps:    state.Metadata.ReasoningSteps,
	}
	if state.Status == agentmodels.StatusPaused && state.PauseReason != nil {
		input.AgentResponse = ""
		input.PendingConfirmation = &agentmodels.PendingConfirmation{
			Papers:      state.PauseReason.Papers,
			Model:       state.Model,
			Temperature: state.Temperature,
			ThreadID:    state.ThreadID,
		}
		if err := s.checkpoints.Save(ctx, state.ThreadID, state); err != nil {
			return nil, fmt.Errorf("save checkpoint: %w", err)
		}
	}

	turn, err := s.conversations.SaveTurn(ctx, sessionID, input, userID)
	if err != nil {
		return nil, err
	}

	if len(history) == 0 {
		title := deriveTitle(userQuery)
		if err := s.conversations.SetTitle(ctx, sessionID, title, userID); err != nil {
			s.logger.Warn("set title failed", "session_id", sessionID, "error", err)
		}
	}

	return turn, nil
}

func buildSources(state *agentmodels.AgentState) []agentmodels.Source {
	seen := make(map[string]bool)
	var sources []agentmodels.Source
	for _, c := range state.RelevantChunks {
		if seen[c.ArxivID] {
			continue
		}
		seen[c.ArxivID] = true
		sources = append(sources, agentmodels.Source{
			ArxivID:           c.ArxivID,
			Title:             c.Title,
			Authors:           c.Authors,
			PDFURL:            c.PDFURL,
			RelevanceScore:    c.Score,
			PublishedDate:     c.PublishedDate,
			WasGradedRelevant: true,
		})
	}
	return sources
}

// deriveTitle extracts the conversation's cold-start title from its first
// query: up to TitleWordCount words, truncated to the column limit.
func deriveTitle(query string) string {
	words := strings.Fields(strings.TrimSpace(query))
	if len(words) > config.TitleWordCount {
		words = words[:config.TitleWordCount]
	}
	title := strings.Join(words, " ")
	if title == "" {
		return "New conversation"
	}
	if len(title) > config.MaxConversationTitleLength {
		title = title[:config.MaxConversationTitleLength-3] + "..."
	}
	return title
}

func resolveProvider(p string) string {
	if p != "" {
		return p
	}
	return "anthropic"
}

func resolveModel(m string, cfg *config.Config) string {
	if m != "" {
		return m
	}
	return cfg.AnthropicModel
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isTimeout(err error) bool {
	type timeoutErr interface{ Timeout() bool }
	if te, ok := err.(timeoutErr); ok {
		return te.Timeout()
	}
	return strings.Contains(err.Error(), "timed out")
}
