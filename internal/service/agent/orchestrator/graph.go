package orchestrator

import (
	"context"

	agentmodels "arxivian/internal/domain/models/agent"
)

// node tags the state machine's current position.
type node string

const (
	nodeClassify   node = "classify_and_route"
	nodeExecutor   node = "executor"
	nodeEvaluate   node = "evaluate"
	nodeGenerate   node = "generate"
	nodeOutOfScope node = "out_of_scope"
)

// Graph wires the classify/executor/evaluate/generate nodes into the
// cyclic state machine. It holds no per-invocation state itself; all
// mutable state lives on the AgentState passed to Run/Resume.
type Graph struct {
	classifier         *Classifier
	executor           *Executor
	evaluator          *Evaluator
	generator          *Generator
	topK               int
	maxRetrievalAttempts int
	guardrailThreshold int
}

func NewGraph(classifier *Classifier, executor *Executor, evaluator *Evaluator, generator *Generator, topK, maxRetrievalAttempts, guardrailThreshold int) *Graph {
	if topK <= 0 {
		topK = 10
	}
	if maxRetrievalAttempts <= 0 {
		maxRetrievalAttempts = 3
	}
	return &Graph{
		classifier:           classifier,
		executor:             executor,
		evaluator:            evaluator,
		generator:            generator,
		topK:                 topK,
		maxRetrievalAttempts: maxRetrievalAttempts,
		guardrailThreshold:   guardrailThreshold,
	}
}

// Run starts a fresh invocation at classify_and_route.
func (g *Graph) Run(ctx context.Context, state *agentmodels.AgentState, emit Emitter) error {
	state.Status = agentmodels.StatusRunning
	if state.Metadata.GuardrailThreshold == 0 {
		state.Metadata.GuardrailThreshold = g.guardrailThreshold
	}
	return g.runLoop(ctx, state, nodeClassify, emit)
}

// Resume continues a checkpointed AgentState after a HITL interrupt: the
// caller has already appended the resume outcome to state.ToolHistory and
// state.ToolOutputs. Resume clears state.PauseReason and re-enters at
// classify_and_route, not at the node that paused.
func (g *Graph) Resume(ctx context.Context, state *agentmodels.AgentState, emit Emitter) error {
	state.Status = agentmodels.StatusRunning
	state.PauseReason = nil
	return g.runLoop(ctx, state, nodeClassify, emit)
}

func (g *Graph) runLoop(ctx context.Context, state *agentmodels.AgentState, start node, emit Emitter) error {
	current := start

	for {
		select {
		case <-ctx.Done():
			state.Status = agentmodels.StatusFailed
			return ctx.Err()
		default:
		}

		switch current {
		case nodeClassify:
			if err := g.classifier.Classify(ctx, state, emit); err != nil {
				state.Status = agentmodels.StatusFailed
				return err
			}
			current = g.afterClassify(state)

		case nodeExecutor:
			if err := g.executor.Run(ctx, state, emit); err != nil {
				state.Status = agentmodels.StatusFailed
				return err
			}
			if state.PauseReason != nil {
				state.Status = agentmodels.StatusPaused
				return emit(Event{Kind: EventInterrupt, PauseReason: state.PauseReason})
			}
			current = g.afterExecutor(state)

		case nodeEvaluate:
			if err := g.evaluator.Run(ctx, state, emit); err != nil {
				state.Status = agentmodels.StatusFailed
				return err
			}
			current = g.afterEvaluate(state)

		case nodeGenerate:
			return g.generator.GenerateInScope(ctx, state, g.topK, g.maxRetrievalAttempts, emit)

		case nodeOutOfScope:
			return g.generator.GenerateOutOfScope(ctx, state, emit)

		default:
			return nil
		}
	}
}

func (g *Graph) afterClassify(state *agentmodels.AgentState) node {
	result := state.ClassificationResult
	if result == nil {
		return nodeOutOfScope
	}
	if result.Intent == agentmodels.IntentOutOfScope || result.ScopeScore < state.Metadata.GuardrailThreshold {
		return nodeOutOfScope
	}
	if result.Intent == agentmodels.IntentExecute && len(result.ToolCalls) > 0 {
		return nodeExecutor
	}
	if result.Intent == agentmodels.IntentDirect && hasUngradedChunks(state) {
		return nodeEvaluate
	}
	return nodeGenerate
}

func (g *Graph) afterExecutor(state *agentmodels.AgentState) node {
	for _, name := range state.LastExecutedTools {
		if name == "retrieve_chunks" {
			return nodeEvaluate
		}
	}
	return nodeClassify
}

func (g *Graph) afterEvaluate(state *agentmodels.AgentState) node {
	if state.EvaluationResult == nil {
		return nodeGenerate
	}
	if state.EvaluationResult.Sufficient || state.Iteration >= state.MaxIterations {
		return nodeGenerate
	}
	return nodeClassify
}

func hasUngradedChunks(state *agentmodels.AgentState) bool {
	return len(state.RetrievedChunks) > len(state.RelevantChunks)
}
