package stream

import (
	"errors"
	"testing"

	"arxivian/internal/config"
	"arxivian/internal/domain"
	agentmodels "arxivian/internal/domain/models/agent"
)

func TestValidateStreamRequest_RejectsBothQueryAndResume(t *testing.T) {
	req := &agentmodels.StreamRequest{
		Query:  "hello",
		Resume: &agentmodels.ResumeRequest{SessionID: "s", ThreadID: "t"},
	}
	err := validateStreamRequest(req)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation when both query and resume are set, got %v", err)
	}
}

func TestValidateStreamRequest_RejectsNeitherQueryNorResume(t *testing.T) {
	req := &agentmodels.StreamRequest{}
	err := validateStreamRequest(req)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation when neither query nor resume is set, got %v", err)
	}
}

func TestValidateStreamRequest_ResumeRequiresSessionAndThread(t *testing.T) {
	req := &agentmodels.StreamRequest{Resume: &agentmodels.ResumeRequest{}}
	if err := validateStreamRequest(req); err == nil {
		t.Fatal("expected an error for a resume request missing session_id/thread_id")
	}
}

func TestValidateStreamRequest_AcceptsValidQuery(t *testing.T) {
	req := &agentmodels.StreamRequest{Query: "what is attention?", TopK: 5}
	if err := validateStreamRequest(req); err != nil {
		t.Fatalf("expected a valid request to pass, got %v", err)
	}
}

func TestValidateStreamRequest_RejectsOutOfRangeTopK(t *testing.T) {
	req := &agentmodels.StreamRequest{Query: "q", TopK: 11}
	if err := validateStreamRequest(req); err == nil {
		t.Fatal("expected top_k above its max to fail validation")
	}
}

func TestResolve_FillsZeroValuesWithDefaults(t *testing.T) {
	cfg := &config.Config{MaxIterations: 4}
	req := &agentmodels.StreamRequest{Query: "q"}

	r := resolve(req, cfg)
	if r.topK != defaultTopK {
		t.Errorf("expected default topK %d, got %d", defaultTopK, r.topK)
	}
	if r.guardrailThreshold != defaultGuardrailThreshold {
		t.Errorf("expected default guardrailThreshold %d, got %d", defaultGuardrailThreshold, r.guardrailThreshold)
	}
	if r.maxRetrievalAttempts != defaultMaxRetrievalAttempts {
		t.Errorf("expected default maxRetrievalAttempts %d, got %d", defaultMaxRetrievalAttempts, r.maxRetrievalAttempts)
	}
	if r.maxIterations != cfg.MaxIterations {
		t.Errorf("expected maxIterations to fall back to cfg.MaxIterations=%d, got %d", cfg.MaxIterations, r.maxIterations)
	}
	if r.temperature != defaultTemperature {
		t.Errorf("expected default temperature %f, got %f", defaultTemperature, r.temperature)
	}
	if r.timeoutSeconds != defaultTimeoutSeconds {
		t.Errorf("expected default timeoutSeconds %d, got %d", defaultTimeoutSeconds, r.timeoutSeconds)
	}
	if r.conversationWindow != defaultConversationWindow {
		t.Errorf("expected default conversationWindow %d, got %d", defaultConversationWindow, r.conversationWindow)
	}
}

func TestResolve_PreservesExplicitOverrides(t *testing.T) {
	cfg := &config.Config{MaxIterations: 4}
	req := &agentmodels.StreamRequest{Query: "q", TopK: 3, GuardrailThreshold: 90, Temperature: 0.7}

	r := resolve(req, cfg)
	if r.topK != 3 {
		t.Errorf("expected explicit topK=3 to survive resolve, got %d", r.topK)
	}
	if r.guardrailThreshold != 90 {
		t.Errorf("expected explicit guardrailThreshold=90 to survive resolve, got %d", r.guardrailThreshold)
	}
	if r.temperature != 0.7 {
		t.Errorf("expected explicit temperature=0.7 to survive resolve, got %f", r.temperature)
	}
}
