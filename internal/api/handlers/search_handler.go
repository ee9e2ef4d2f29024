package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reef-research/backend/internal/search"
	"github.com/reef-research/backend/pkg/logger"
)

const defaultSearchTopK = 10

type SearchHandler struct {
	engine *search.Engine
}

func NewSearchHandler(engine *search.Engine) *SearchHandler {
	return &SearchHandler{
		engine: engine,
	}
}

func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	var req struct {
		Abstract string `json:"abstract"`
		TopK     int    `json:"top_k"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if strings.TrimSpace(req.Abstract) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Abstract is required",
		})
	}

	topK := req.TopK
	if topK <= 0 || topK > 50 {
		topK = defaultSearchTopK
	}

	papers, err := h.engine.Search(c.Context(), req.Abstract, topK)
	if err != nil {
		logger.Error("Failed to search papers", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to search papers",
		})
	}

	return c.JSON(fiber.Map{
		"papers": papers,
	})
}
