package handler

import (
	"bufio"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	agentmodels "arxivian/internal/domain/models/agent"
	"arxivian/internal/handler/sse"
	agentstream "arxivian/internal/service/agent/stream"
)

// StreamHandler exposes POST /stream: the single SSE entrypoint for both
// a fresh ask and a HITL resume. It drains agentstream.Service's one-shot
// event channel onto the response body-stream writer; a write error is
// treated as client disconnect, not a server error.
type StreamHandler struct {
	svc    *agentstream.Service
	sseCfg *sse.Config
	logger *slog.Logger
}

func NewStreamHandler(svc *agentstream.Service, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{svc: svc, sseCfg: sse.DefaultConfig(), logger: logger}
}

// Stream handles POST /stream. Validation failures and auth rejections
// return plain 4xx before the stream opens; once opened, every outcome
// (including agent errors) is an in-band `error` event followed by `done`.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	var req agentmodels.StreamRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	userID, _ := c.Locals("userID").(string)
	if userID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	events, err := h.svc.Stream(c.Context(), &req, userID, c.Get("Idempotency-Key"))
	if err != nil {
		return mapErrorToHTTP(err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	logger := h.logger
	c.Status(fiber.StatusOK).Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		writer := sse.NewEventWriter(w)

		keepAlive := sse.NewTickerKeepAlive(h.sseCfg.KeepAliveInterval)
		defer keepAlive.Stop()
		keepAlive.Start(writer, logger)

		for event := range events {
			if err := writer.WriteEvent(string(event.Name), event.Payload); err != nil {
				logger.Info("SSE client disconnected mid-stream", "error", err)
				return
			}
		}
	})

	return nil
}
