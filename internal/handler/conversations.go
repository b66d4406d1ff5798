package handler

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	agentrepo "arxivian/internal/domain/repositories/agent"
	agentstream "arxivian/internal/service/agent/stream"
)

// ConversationHandler implements the conversation-management endpoints
// over ConversationStore and the stream service's TaskRegistry: userID
// from request context, route params, domain-error-to-status mapping.
type ConversationHandler struct {
	conversations agentrepo.ConversationStore
	registry      *agentstream.TaskRegistry
	logger        *slog.Logger
}

func NewConversationHandler(conversations agentrepo.ConversationStore, registry *agentstream.TaskRegistry, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, registry: registry, logger: logger}
}

// List handles GET /conversations?offset&limit.
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(string)

	offset := queryIntDefault(c, "offset", 0)
	limit := queryIntDefault(c, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	summaries, err := h.conversations.List(c.Context(), userID, offset, limit)
	if err != nil {
		return mapErrorToHTTP(err)
	}
	return c.JSON(fiber.Map{"conversations": summaries})
}

// Get handles GET /conversations/{session_id}; 404 if not owned.
func (h *ConversationHandler) Get(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(string)
	sessionID := c.Params("session_id")

	detail, err := h.conversations.Get(c.Context(), sessionID, userID)
	if err != nil {
		return mapErrorToHTTP(err)
	}
	return c.JSON(detail)
}

// Delete handles DELETE /conversations/{session_id}; cascade-deletes turns.
func (h *ConversationHandler) Delete(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(string)
	sessionID := c.Params("session_id")

	turnsDeleted := 0
	if detail, err := h.conversations.Get(c.Context(), sessionID, userID); err == nil && detail != nil {
		turnsDeleted = len(detail.Turns)
	}

	found, err := h.conversations.Delete(c.Context(), sessionID, userID)
	if err != nil {
		return mapErrorToHTTP(err)
	}
	if !found {
		return fiber.NewError(fiber.StatusNotFound, "conversation not found")
	}

	return c.JSON(fiber.Map{"session_id": sessionID, "turns_deleted": turnsDeleted})
}

// Cancel handles POST /conversations/{session_id}/cancel. Idempotent: a
// session with no in-flight stream still returns 200 with cancelled=false.
func (h *ConversationHandler) Cancel(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")
	cancelled := h.registry.Cancel(sessionID)

	message := "no active stream for this session"
	if cancelled {
		message = "cancellation requested"
	}
	return c.JSON(fiber.Map{"cancelled": cancelled, "message": message})
}

func queryIntDefault(c *fiber.Ctx, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
