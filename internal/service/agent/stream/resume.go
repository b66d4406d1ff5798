package stream

import (
	"context"
	"fmt"
	"time"

	agentmodels "arxivian/internal/domain/models/agent"
)

// resumeStream implements the HITL resume algorithm: look up
// the pending turn, optionally run the approved ingest side-effect inline,
// rehydrate the checkpoint, and continue the graph from classify_and_route.
func (s *Service) resumeStream(ctx context.Context, req *agentmodels.StreamRequest, userID string) (<-chan agentmodels.Event, error) {
	r := resolve(req, s.cfg)
	resumeReq := req.Resume

	out := make(chan agentmodels.Event, 16)

	pending, err := s.conversations.GetPendingTurn(ctx, resumeReq.SessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("get pending turn: %w", err)
	}
	if pending == nil || pending.PendingConfirmation == nil || pending.PendingConfirmation.ThreadID != resumeReq.ThreadID {
		go func() {
			defer close(out)
			out <- doubleConfirmError()
			out <- doneEvent()
		}()
		return out, nil
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(r.timeoutSeconds)*time.Second)
	unregister := s.registry.Register(resumeReq.SessionID, cancel)

	go func() {
		defer close(out)
		defer cancel()
		defer unregister()

		start := time.Now()

		var ingestResult *agentmodels.ToolResult
		if resumeReq.Approved && len(resumeReq.SelectedIDs) > 0 {
			res := s.tools.Execute(runCtx, "ingest_papers", map[string]interface{}{"arxiv_ids": toAnySlice(resumeReq.SelectedIDs)})
			ingestResult = &res
			out <- ingestCompleteEvent(res, time.Since(start))
		}

		state, found, err := s.checkpoints.Load(runCtx, resumeReq.ThreadID)
		if err != nil || !found {
			if err != nil {
				s.logger.Error("load checkpoint failed", "thread_id", resumeReq.ThreadID, "error", err)
			}
			if clearErr := s.conversations.ClearPendingConfirmation(runCtx, resumeReq.SessionID, pending.TurnNumber, userID); clearErr != nil {
				s.logger.Error("clear pending confirmation failed", "session_id", resumeReq.SessionID, "error", clearErr)
			}
			out <- checkpointExpiredError()
			out <- doneEvent()
			return
		}
		_ = s.checkpoints.Delete(runCtx, resumeReq.ThreadID)

		appendResumeOutcome(state, resumeReq.Approved, resumeReq.SelectedIDs, ingestResult)

		history := state.ConversationHistory
		tr := newTranslator(runCtx, state, r.topK, resumeReq.SessionID, state.ThreadID, out, s.registry)
		runErr := s.graph.Resume(runCtx, state, tr.emit)

		userQuery := resumeConfirmationQuery(resumeReq.Approved, resumeReq.SelectedIDs)
		s.finishTurn(runCtx, out, state, resumeReq.SessionID, userID, userQuery, history, start, runErr, tr)

		if clearErr := s.conversations.ClearPendingConfirmation(context.WithoutCancel(runCtx), resumeReq.SessionID, pending.TurnNumber, userID); clearErr != nil {
			s.logger.Error("clear pending confirmation failed", "session_id", resumeReq.SessionID, "error", clearErr)
		}
	}()

	return out, nil
}

// appendResumeOutcome synthesizes the post-pause tool_history/tool_outputs
// entry the resumed classify-&-route call sees, reflecting
// whatever the user decided rather than re-running propose_ingest.
func appendResumeOutcome(state *agentmodels.AgentState, approved bool, selectedIDs []string, ingestResult *agentmodels.ToolResult) {
	if !approved {
		msg := "user rejected the ingest proposal"
		state.ToolHistory = append(state.ToolHistory, agentmodels.ToolExecution{
			ToolName:      "ingest_papers",
			Success:       false,
			ResultSummary: msg,
			Error:         &msg,
		})
		state.ToolOutputs = append(state.ToolOutputs, agentmodels.ToolOutput{
			ToolName: "ingest_papers",
			Data:     map[string]interface{}{"rejected": true},
		})
		return
	}

	if ingestResult == nil {
		msg := "no papers selected"
		state.ToolHistory = append(state.ToolHistory, agentmodels.ToolExecution{
			ToolName:      "ingest_papers",
			Success:       false,
			ResultSummary: msg,
			Error:         &msg,
		})
		return
	}

	summary := fmt.Sprintf("ingested %d of %d selected papers", len(selectedIDs), len(selectedIDs))
	state.ToolHistory = append(state.ToolHistory, agentmodels.ToolExecution{
		ToolName:      "ingest_papers",
		ToolArgs:      map[string]interface{}{"arxiv_ids": toAnySlice(selectedIDs)},
		Success:       ingestResult.Success,
		ResultSummary: summary,
	})
	if ingestResult.Success {
		state.ToolOutputs = append(state.ToolOutputs, agentmodels.ToolOutput{
			ToolName:   "ingest_papers",
			Data:       ingestResult.Data,
			PromptText: ingestResult.PromptText,
		})
	}
}

func resumeConfirmationQuery(approved bool, selectedIDs []string) string {
	if !approved {
		return "[resume] rejected pending ingest proposal"
	}
	return fmt.Sprintf("[resume] approved ingest of %d paper(s)", len(selectedIDs))
}

func ingestCompleteEvent(res agentmodels.ToolResult, elapsed time.Duration) agentmodels.Event {
	payload := agentmodels.IngestCompletePayload{DurationSeconds: elapsed.Seconds()}
	if m, ok := res.Data.(map[string]interface{}); ok {
		if n, ok := m["papers_processed"].(int); ok {
			payload.PapersProcessed = n
		}
		if n, ok := m["chunks_created"].(int); ok {
			payload.ChunksCreated = n
		}
		if errs, ok := m["errors"].([]string); ok {
			payload.Errors = errs
		}
	}
	if !res.Success {
		payload.Errors = append(payload.Errors, res.Error)
	}
	return agentmodels.Event{Name: agentmodels.EventIngestComplete, Payload: payload}
}

func doubleConfirmError() agentmodels.Event {
	return agentmodels.Event{Name: agentmodels.EventError, Payload: agentmodels.ErrorPayload{
		Error: "no pending confirmation for this session/thread",
		Code:  agentmodels.ErrCodeDoubleConfirm,
	}}
}

func checkpointExpiredError() agentmodels.Event {
	return agentmodels.Event{Name: agentmodels.EventError, Payload: agentmodels.ErrorPayload{
		Error: "checkpoint expired or not found",
		Code:  agentmodels.ErrCodeCheckpointExpired,
	}}
}

func doneEvent() agentmodels.Event {
	return agentmodels.Event{Name: agentmodels.EventDone, Payload: agentmodels.DonePayload{}}
}

func toAnySlice(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
