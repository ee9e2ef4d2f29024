package handlers

import (
	"context"
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reef-research/backend/pkg/logger"
)

type Ingestor interface {
	IngestCategory(ctx context.Context, category string, max int) (int, error)
}

type SearchCacheInvalidator interface {
	InvalidateSearchCache(ctx context.Context) error
}

// AdminHandler drives the bulk-ingestion path. Protected by a static token
// from config; not meant for end users.
type AdminHandler struct {
	ingestor   Ingestor
	cache      SearchCacheInvalidator
	adminToken string
}

func NewAdminHandler(ingestor Ingestor, cache SearchCacheInvalidator, adminToken string) *AdminHandler {
	return &AdminHandler{
		ingestor:   ingestor,
		cache:      cache,
		adminToken: adminToken,
	}
}

func (h *AdminHandler) HandleIngest(c *fiber.Ctx) error {
	if h.adminToken == "" || subtle.ConstantTimeCompare([]byte(c.Get("X-Admin-Token")), []byte(h.adminToken)) != 1 {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden",
		})
	}

	var req struct {
		Category string `json:"category"`
		Max      int    `json:"max"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Category == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "category is required",
		})
	}

	count, err := h.ingestor.IngestCategory(c.Context(), req.Category, req.Max)
	if err != nil {
		logger.Error("Ingestion failed",
			zap.String("category", req.Category),
			zap.Int("ingested_before_failure", count),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":    "Ingestion failed",
			"ingested": count,
		})
	}

	if h.cache != nil {
		if err := h.cache.InvalidateSearchCache(c.Context()); err != nil {
			logger.Warn("Failed to invalidate search cache after ingestion", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"category": req.Category,
		"ingested": count,
	})
}
