package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reef-research/backend/internal/storage/models"
	"github.com/reef-research/backend/internal/storage/sqlite"
	"github.com/reef-research/backend/pkg/logger"
)

type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	GetGenerationHistory(ctx context.Context, userID string, limit int) ([]models.GenerationRecord, error)
}

type ProfileHandler struct {
	store ProfileReader
}

func NewProfileHandler(store ProfileReader) *ProfileHandler {
	return &ProfileHandler{
		store: store,
	}
}

func (h *ProfileHandler) HandleGetProfile(c *fiber.Ctx) error {
	userID := c.Params("id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user id is required",
		})
	}

	profile, err := h.store.GetProfile(c.Context(), userID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}
	if err != nil {
		logger.Error("Failed to load profile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load profile",
		})
	}

	return c.JSON(fiber.Map{
		"id":                profile.ID,
		"whitelisted":       profile.Whitelisted,
		"credits_remaining": profile.CreditsRemaining,
	})
}

func (h *ProfileHandler) HandleGetHistory(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	records, err := h.store.GetGenerationHistory(c.Context(), userID, limit)
	if err != nil {
		logger.Error("Failed to load history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	if records == nil {
		records = []models.GenerationRecord{}
	}

	return c.JSON(fiber.Map{
		"history": records,
	})
}
