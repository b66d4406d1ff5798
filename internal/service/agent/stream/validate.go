package stream

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"arxivian/internal/config"
	"arxivian/internal/domain"
	agentmodels "arxivian/internal/domain/models/agent"
)

// resolvedRequest is a StreamRequest after range-checking and default-filling
//, used by AskStream/ResumeStream so the
// orchestrator and translator never see a zero value that means "absent".
type resolvedRequest struct {
	provider           string
	model              string
	topK               int
	guardrailThreshold int
	maxRetrievalAttempts int
	maxIterations      int
	temperature        float64
	timeoutSeconds     int
	conversationWindow int
}

const (
	defaultTopK               = 5
	defaultGuardrailThreshold = 75
	defaultMaxRetrievalAttempts = 3
	defaultTemperature        = 0.3
	defaultTimeoutSeconds     = 60
	defaultConversationWindow = 5
)

// validateStreamRequest checks the request's structural contract: exactly
// one of query/resume, and every optional tunable within range.
func validateStreamRequest(req *agentmodels.StreamRequest) error {
	if req.IsResume() {
		if req.Query != "" {
			return fmt.Errorf("%w: exactly one of query or resume must be set", domain.ErrValidation)
		}
		return validation.ValidateStruct(req.Resume,
			validation.Field(&req.Resume.SessionID, validation.Required),
			validation.Field(&req.Resume.ThreadID, validation.Required),
		)
	}

	if req.Query == "" {
		return fmt.Errorf("%w: query must be non-empty when resume is absent", domain.ErrValidation)
	}

	return validation.ValidateStruct(req,
		validation.Field(&req.Query, validation.Required, validation.Length(1, config.MaxQueryLength)),
		validation.Field(&req.TopK, validation.Min(0), validation.Max(10)),
		validation.Field(&req.GuardrailThreshold, validation.Min(0), validation.Max(100)),
		validation.Field(&req.MaxRetrievalAttempts, validation.Min(0), validation.Max(5)),
		validation.Field(&req.MaxIterations, validation.Min(0), validation.Max(20)),
		validation.Field(&req.Temperature, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&req.TimeoutSeconds, validation.Min(0), validation.Max(600)),
		validation.Field(&req.ConversationWindow, validation.Min(0), validation.Max(10)),
	)
}

// resolve fills unset (zero-value) optional fields with defaults.
func resolve(req *agentmodels.StreamRequest, cfg *config.Config) resolvedRequest {
	r := resolvedRequest{
		provider:             req.Provider,
		model:                req.Model,
		topK:                 req.TopK,
		guardrailThreshold:   req.GuardrailThreshold,
		maxRetrievalAttempts: req.MaxRetrievalAttempts,
		maxIterations:        req.MaxIterations,
		temperature:          req.Temperature,
		timeoutSeconds:       req.TimeoutSeconds,
		conversationWindow:   req.ConversationWindow,
	}
	if r.topK == 0 {
		r.topK = defaultTopK
	}
	if r.guardrailThreshold == 0 {
		r.guardrailThreshold = defaultGuardrailThreshold
	}
	if r.maxRetrievalAttempts == 0 {
		r.maxRetrievalAttempts = defaultMaxRetrievalAttempts
	}
	if r.maxIterations == 0 {
		r.maxIterations = cfg.MaxIterations
	}
	if r.temperature == 0 {
		r.temperature = defaultTemperature
	}
	if r.timeoutSeconds == 0 {
		r.timeoutSeconds = defaultTimeoutSeconds
	}
	if r.conversationWindow == 0 {
		r.conversationWindow = defaultConversationWindow
	}
	return r
}
