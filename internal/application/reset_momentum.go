package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/logging"
)

// ResetMomentumUseCase discards a user's momentum history.
// the next scoring cycle starts from a fresh state.
type ResetMomentumUseCase struct {
	momentumRepo domain.MomentumRepository
	locker       UserLocker
	logger       *logging.Logger
}

// NewResetMomentumUseCase creates a new ResetMomentumUseCase.
func NewResetMomentumUseCase(momentumRepo domain.MomentumRepository, logger *logging.Logger) *ResetMomentumUseCase {
	return &ResetMomentumUseCase{
		momentumRepo: momentumRepo,
		locker:       NewLocalUserLocker(),
		logger:       logger.WithComponent("reset_momentum"),
	}
}

// WithLocker shares the scoring lock so a reset never interleaves with a cycle.
func (uc *ResetMomentumUseCase) WithLocker(l UserLocker) *ResetMomentumUseCase {
	uc.locker = l
	return uc
}

// Execute deletes the stored momentum state. resetting a user without state
// is not an error.
func (uc *ResetMomentumUseCase) Execute(ctx context.Context, rawUserID string) error {
	userID, err := domain.ParseUserID(rawUserID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	unlock, err := uc.locker.Lock(ctx, userID)
	if err != nil {
		return fmt.Errorf("acquiring user lock: %w", err)
	}
	defer unlock()

	if err := uc.momentumRepo.Delete(ctx, userID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		uc.logger.Error("momentum reset failed",
			"user_id", userID.String(),
			"error", err.Error(),
		)
		return fmt.Errorf("deleting momentum: %w", err)
	}

	uc.logger.Info("momentum reset", "user_id", userID.String())
	return nil
}
