package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/reef-research/backend/internal/pipeline"
	"github.com/reef-research/backend/pkg/logger"
)

// WebSocketHandler streams per-paper progress frames for batch extraction,
// so the UI can render a multi-step progress view instead of waiting on one
// long request.
type WebSocketHandler struct {
	orchestrator *pipeline.Orchestrator
}

func NewWebSocketHandler(orchestrator *pipeline.Orchestrator) *WebSocketHandler {
	return &WebSocketHandler{
		orchestrator: orchestrator,
	}
}

// wsConn is the subset of *websocket.Conn the handler needs.
type wsConn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
}

type progressFrame struct {
	Type    string `json:"type"`
	Stage   string `json:"stage,omitempty"`
	ArxivID string `json:"arxiv_id,omitempty"`
	Index   int    `json:"index,omitempty"`
	Total   int    `json:"total,omitempty"`
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	h.serve(context.Background(), c)
}

func (h *WebSocketHandler) serve(ctx context.Context, c wsConn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for {
		var msg struct {
			Type     string   `json:"type"`
			ArxivIDs []string `json:"arxiv_ids"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			return
		}

		if msg.Type != "extract" {
			continue
		}

		if len(msg.ArxivIDs) == 0 || len(msg.ArxivIDs) > maxBatchSize {
			h.sendError(c, "arxiv_ids must contain between 1 and 20 ids")
			continue
		}

		logger.Info("Processing WebSocket extraction", zap.Int("papers", len(msg.ArxivIDs)))

		// A failed progress write means the client is gone; cancel the
		// batch instead of extracting into the void.
		batchCtx, batchCancel := context.WithCancel(ctx)
		progress := func(stage, arxivID string, index, total int) {
			if err := c.WriteJSON(progressFrame{
				Type:    "progress",
				Stage:   stage,
				ArxivID: arxivID,
				Index:   index,
				Total:   total,
			}); err != nil {
				batchCancel()
			}
		}

		result := h.orchestrator.ProcessBatch(batchCtx, msg.ArxivIDs, progress)
		batchCancel()

		if err := c.WriteJSON(map[string]interface{}{
			"type":   "result",
			"papers": result.Papers,
			"errors": result.Errors,
		}); err != nil {
			logger.Error("Failed to write WebSocket result", zap.Error(err))
			return
		}
	}
}

func (h *WebSocketHandler) sendError(c wsConn, msg string) {
	c.WriteJSON(map[string]string{
		"type":  "error",
		"error": msg,
	})
}
