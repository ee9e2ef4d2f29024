package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reef-research/backend/internal/angles"
	"github.com/reef-research/backend/internal/credits"
	"github.com/reef-research/backend/internal/metrics"
	"github.com/reef-research/backend/internal/storage/models"
	"github.com/reef-research/backend/pkg/logger"
)

const minIdeaLength = 20

// Generator is the synthesis backend behind every billed route.
type Generator interface {
	SynthesizeAngles(ctx context.Context, corpus, researchIdea string) ([]models.ResearchAngle, error)
	GenerateAbstract(ctx context.Context, angle *models.ResearchAngle, corpus string) (*models.AbstractDoc, error)
	BuildPlan(ctx context.Context, angle *models.ResearchAngle, abstract *models.AbstractDoc) (*models.ResearchPlan, error)
	CritiquePlan(ctx context.Context, plan *models.ResearchPlan) (*models.PlanCritique, error)
}

// HistoryStore records completed generations.
type HistoryStore interface {
	InsertGenerationRecord(ctx context.Context, record *models.GenerationRecord) error
}

type GenerateHandler struct {
	ledger    *credits.Ledger
	generator Generator
	history   HistoryStore
}

func NewGenerateHandler(ledger *credits.Ledger, generator Generator, history HistoryStore) *GenerateHandler {
	return &GenerateHandler{
		ledger:    ledger,
		generator: generator,
		history:   history,
	}
}

// billingStatus maps the gating taxonomy onto HTTP statuses.
func billingStatus(err error) (int, string) {
	switch {
	case errors.Is(err, credits.ErrProfileNotFound):
		return fiber.StatusNotFound, "Profile not found"
	case errors.Is(err, credits.ErrNotWhitelisted):
		return fiber.StatusForbidden, "User is not whitelisted"
	case errors.Is(err, credits.ErrInsufficientCredits):
		return fiber.StatusPaymentRequired, "Insufficient credits"
	case errors.Is(err, credits.ErrChargeFailed):
		return fiber.StatusPaymentRequired, "Failed to update credits"
	default:
		return fiber.StatusInternalServerError, "Internal error"
	}
}

func (h *GenerateHandler) HandleGenAngles(c *fiber.Ctx) error {
	var req struct {
		UserID       string                 `json:"user_id"`
		ResearchIdea string                 `json:"research_idea"`
		Papers       []models.PaperAnalysis `json:"papers"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}
	if len(strings.TrimSpace(req.ResearchIdea)) < minIdeaLength {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Research idea must be at least 20 characters",
		})
	}
	if len(req.Papers) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "papers is required",
		})
	}

	const operation = "gen-angles"

	if _, err := h.ledger.Authorize(c.Context(), req.UserID, operation); err != nil {
		status, msg := billingStatus(err)
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	corpus := angles.Aggregate(req.Papers)

	candidates, err := h.generator.SynthesizeAngles(c.Context(), corpus, req.ResearchIdea)
	if err != nil {
		logger.Error("Angle synthesis failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate angles",
		})
	}
	if len(candidates) < 3 {
		logger.Error("Angle synthesis returned too few candidates",
			zap.Int("count", len(candidates)),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate angles",
		})
	}

	ranked := angles.ScoreAndRank(candidates, 3)

	if err := h.charge(c.Context(), req.UserID, operation, req.ResearchIdea); err != nil {
		status, msg := billingStatus(err)
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	return c.JSON(fiber.Map{
		"angles":          ranked,
		"analyzed_papers": len(req.Papers),
		"user_idea":       req.ResearchIdea,
	})
}

func (h *GenerateHandler) HandleGenAbstract(c *fiber.Ctx) error {
	var req struct {
		UserID string                 `json:"user_id"`
		Angle  *models.ResearchAngle  `json:"angle"`
		Papers []models.PaperAnalysis `json:"papers"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.UserID == "" || req.Angle == nil || req.Angle.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id and angle are required",
		})
	}

	const operation = "gen-abstract"

	if _, err := h.ledger.Authorize(c.Context(), req.UserID, operation); err != nil {
		status, msg := billingStatus(err)
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	doc, err := h.generator.GenerateAbstract(c.Context(), req.Angle, angles.Aggregate(req.Papers))
	if err != nil {
		logger.Error("Abstract generation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate abstract",
		})
	}

	if err := h.charge(c.Context(), req.UserID, operation, req.Angle.Title); err != nil {
		status, msg := billingStatus(err)
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	return c.JSON(fiber.Map{
		"abstract_doc": doc,
	})
}

func (h *GenerateHandler) HandleBuildPlan(c *fiber.Ctx) error {
	var req struct {
		UserID   string                `json:"user_id"`
		Angle    *models.ResearchAngle `json:"angle"`
		Abstract *models.AbstractDoc   `json:"abstract"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.UserID == "" || req.Angle == nil || req.Abstract == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id, angle, and abstract are required",
		})
	}

	const operation = "build-plan"

	if _, err := h.ledger.Authorize(c.Context(), req.UserID, operation); err != nil {
		status, msg := billingStatus(err)
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	plan, err := h.generator.BuildPlan(c.Context(), req.Angle, req.Abstract)
	if err != nil {
		logger.Error("Plan generation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build plan",
		})
	}

	if err := h.charge(c.Context(), req.UserID, operation, req.Angle.Title); err != nil {
		status, msg := billingStatus(err)
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	return c.JSON(fiber.Map{
		"plan": plan,
	})
}

func (h *GenerateHandler) HandleCritiquePlan(c *fiber.Ctx) error {
	var req struct {
		UserID string               `json:"user_id"`
		Plan   *models.ResearchPlan `json:"plan"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.UserID == "" || req.Plan == nil || req.Plan.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id and plan are required",
		})
	}

	const operation = "critique-plan"

	if _, err := h.ledger.Authorize(c.Context(), req.UserID, operation); err != nil {
		status, msg := billingStatus(err)
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	critique, err := h.generator.CritiquePlan(c.Context(), req.Plan)
	if err != nil {
		logger.Error("Plan critique failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to critique plan",
		})
	}

	if err := h.charge(c.Context(), req.UserID, operation, req.Plan.Title); err != nil {
		status, msg := billingStatus(err)
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	return c.JSON(fiber.Map{
		"critique": critique,
	})
}

// charge deducts the operation's cost and records it. Charging happens
// after the generation succeeded; a failed deduction surfaces as a billing
// error even though the work is done.
func (h *GenerateHandler) charge(ctx context.Context, userID, operation, inputSummary string) error {
	if err := h.ledger.Charge(ctx, userID, operation); err != nil {
		return err
	}

	cost, _ := h.ledger.Cost(operation)
	metrics.CreditsCharged.WithLabelValues(operation).Add(float64(cost))

	if len(inputSummary) > 200 {
		inputSummary = inputSummary[:200]
	}

	record := &models.GenerationRecord{
		ID:           uuid.New().String(),
		UserID:       userID,
		Operation:    operation,
		Cost:         cost,
		InputSummary: inputSummary,
		CreatedAt:    time.Now(),
	}
	if err := h.history.InsertGenerationRecord(ctx, record); err != nil {
		// History is advisory; the charge already landed.
		logger.Warn("Failed to record generation", zap.Error(err))
	}

	return nil
}
