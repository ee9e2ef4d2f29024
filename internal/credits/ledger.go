// Package credits gates billed operations on a per-user integer balance.
// Authorization (whitelist + balance check) happens before expensive work;
// the charge lands only after the work succeeded.
package credits

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/reef-research/backend/internal/storage/models"
	"github.com/reef-research/backend/internal/storage/sqlite"
	"github.com/reef-research/backend/pkg/logger"
)

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrNotWhitelisted      = errors.New("user is not whitelisted")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrChargeFailed        = errors.New("failed to charge credits")
	ErrUnknownOperation    = errors.New("unknown billed operation")
)

// ProfileStore is the durable profile backend. DeductCredits must be
// conditional: it fails rather than drive the balance negative when
// concurrent requests race on the same user.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	DeductCredits(ctx context.Context, userID string, amount int) error
}

type Ledger struct {
	store ProfileStore
	costs map[string]int
}

func NewLedger(store ProfileStore, costs map[string]int) *Ledger {
	return &Ledger{
		store: store,
		costs: costs,
	}
}

// Cost returns the fixed price of an operation.
func (l *Ledger) Cost(operation string) (int, error) {
	cost, ok := l.costs[operation]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownOperation, operation)
	}
	return cost, nil
}

// Authorize checks that userID may start the operation. It returns the
// profile on success so callers can echo the balance without a second read.
func (l *Ledger) Authorize(ctx context.Context, userID, operation string) (*models.UserProfile, error) {
	cost, err := l.Cost(operation)
	if err != nil {
		return nil, err
	}

	profile, err := l.store.GetProfile(ctx, userID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if !profile.Whitelisted {
		return nil, ErrNotWhitelisted
	}

	if profile.CreditsRemaining < cost {
		logger.Info("Operation rejected for insufficient credits",
			zap.String("user_id", userID),
			zap.String("operation", operation),
			zap.Int("cost", cost),
			zap.Int("remaining", profile.CreditsRemaining),
		)
		return nil, ErrInsufficientCredits
	}

	return profile, nil
}

// Charge deducts the operation's cost after the work succeeded. A failed
// deduction is surfaced as a billing error even though the result already
// exists; the user was not charged for it.
func (l *Ledger) Charge(ctx context.Context, userID, operation string) error {
	cost, err := l.Cost(operation)
	if err != nil {
		return err
	}

	if err := l.store.DeductCredits(ctx, userID, cost); err != nil {
		logger.Error("Credit charge failed after generation",
			zap.String("user_id", userID),
			zap.String("operation", operation),
			zap.Int("cost", cost),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s", ErrChargeFailed, operation)
	}

	logger.Info("Credits charged",
		zap.String("user_id", userID),
		zap.String("operation", operation),
		zap.Int("cost", cost),
	)

	return nil
}
