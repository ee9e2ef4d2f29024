package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reef-research/backend/internal/pipeline"
	"github.com/reef-research/backend/pkg/logger"
)

const maxBatchSize = 20

type ClaimsHandler struct {
	orchestrator *pipeline.Orchestrator
}

func NewClaimsHandler(orchestrator *pipeline.Orchestrator) *ClaimsHandler {
	return &ClaimsHandler{
		orchestrator: orchestrator,
	}
}

// HandleExtractClaims runs the batch extraction pipeline. A partial failure
// is still a 200: whatever succeeded comes back in papers, the rest in
// errors.
func (h *ClaimsHandler) HandleExtractClaims(c *fiber.Ctx) error {
	var req struct {
		ArxivIDs []string `json:"arxiv_ids"`
		UserID   string   `json:"user_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.ArxivIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "arxiv_ids is required",
		})
	}
	if len(req.ArxivIDs) > maxBatchSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Too many papers in one batch",
		})
	}

	result := h.orchestrator.ProcessBatch(c.Context(), req.ArxivIDs, nil)

	resp := fiber.Map{
		"papers": result.Papers,
	}
	if len(result.Errors) > 0 {
		resp["errors"] = result.Errors
	}

	return c.JSON(resp)
}
