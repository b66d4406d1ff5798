package stream

import (
	"context"
	"fmt"
	"sync"

	agentmodels "arxivian/internal/domain/models/agent"
	"arxivian/internal/service/agent/orchestrator"
)

// translator is the event-mapper stage of the producer/translator/consumer
// pipeline: the graph driver produces orchestrator.Event values,
// translator owns the "has sources been emitted yet" state, and maps each
// one onto zero or more external SSE frames.
type translator struct {
	mu sync.Mutex

	state     *agentmodels.AgentState
	topK      int
	sessionID string
	threadID  string

	out chan<- agentmodels.Event
	ctx context.Context

	registry *TaskRegistry

	sourcesEmitted bool
	contentEmitted bool
}

func newTranslator(ctx context.Context, state *agentmodels.AgentState, topK int, sessionID, threadID string, out chan<- agentmodels.Event, registry *TaskRegistry) *translator {
	return &translator{
		ctx:       ctx,
		state:     state,
		topK:      topK,
		sessionID: sessionID,
		threadID:  threadID,
		out:       out,
		registry:  registry,
	}
}

// emit is the Emitter the graph driver calls. Returning context.Canceled
// aborts the run; the executor node calls this concurrently (once per
// in-flight tool call), so all state reads/writes here are mutex-guarded.
func (t *translator) emit(ev orchestrator.Event) error {
	if t.registry.IsCancelled(t.sessionID) {
		return context.Canceled
	}

	t.mu.Lock()
	frames := t.frames(ev)
	t.mu.Unlock()

	for _, f := range frames {
		select {
		case t.out <- f:
		case <-t.ctx.Done():
			return context.Canceled
		}
	}
	return nil
}

func (t *translator) frames(ev orchestrator.Event) []agentmodels.Event {
	switch ev.Kind {
	case orchestrator.EventNodeStart:
		// Suppress status for nodes whose own custom events already tell
		// the story: the executor's tool_start/tool_end.
		if ev.Node == "executor" {
			return nil
		}
		return []agentmodels.Event{statusEvent(ev.Node, ev.Message, nil)}

	case orchestrator.EventNodeEnd:
		frames := []agentmodels.Event{statusEvent(ev.Node, ev.Message, ev.Details)}
		// Only the evaluate that actually promoted chunks gets to emit
		// sources: a rewrite-loop evaluate clears RelevantChunks and must
		// not lock in an empty sources event.
		if ev.Node == "evaluate" && !t.sourcesEmitted && len(t.state.RelevantChunks) > 0 {
			frames = append(frames, t.buildSourcesEvent())
			t.sourcesEmitted = true
		}
		return frames

	case orchestrator.EventToolStart:
		return []agentmodels.Event{statusEvent("executing", fmt.Sprintf("%s start", ev.ToolName), map[string]interface{}{"tool": ev.ToolName, "args": ev.ToolArgs})}

	case orchestrator.EventToolEnd:
		return []agentmodels.Event{statusEvent("executing", fmt.Sprintf("%s end", ev.ToolName), map[string]interface{}{"tool": ev.ToolName, "success": ev.Success})}

	case orchestrator.EventToken:
		t.contentEmitted = true
		return []agentmodels.Event{{Name: agentmodels.EventContent, Payload: agentmodels.ContentPayload{Token: ev.Token}}}

	case orchestrator.EventInterrupt:
		papers := ev.PauseReason.Papers
		return []agentmodels.Event{{
			Name: agentmodels.EventConfirmIngest,
			Payload: agentmodels.ConfirmIngestPayload{
				Papers:    papers,
				SessionID: t.sessionID,
				ThreadID:  t.threadID,
			},
		}}
	}
	return nil
}

func statusEvent(step, message string, details interface{}) agentmodels.Event {
	return agentmodels.Event{Name: agentmodels.EventStatus, Payload: agentmodels.StatusPayload{Step: step, Message: message, Details: details}}
}

// buildSourcesEvent projects t.state.RelevantChunks (as of the evaluate
// node's completion) into one Source per distinct paper, capped at topK
// and ordered by first appearance.
func (t *translator) buildSourcesEvent() agentmodels.Event {
	seen := make(map[string]bool)
	sources := make([]agentmodels.Source, 0, t.topK)
	for _, c := range t.state.RelevantChunks {
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
		if len(sources) >= t.topK {
			break
		}
	}
	return agentmodels.Event{Name: agentmodels.EventSources, Payload: agentmodels.SourcesPayload{Sources: sources}}
}

func (t *translator) emittedSources() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sourcesEmitted
}

func (t *translator) emittedContent() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.contentEmitted
}
