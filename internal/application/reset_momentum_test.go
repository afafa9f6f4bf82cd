package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/logging"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/memory"
)

func TestResetMomentum(t *testing.T) {
	store := memory.NewStore()
	uc := NewResetMomentumUseCase(store.Momentum(), logging.NewNop())
	user := domain.NewUserID()

	// no state yet is fine
	require.NoError(t, uc.Execute(context.Background(), user.String()))

	require.NoError(t, store.Momentum().Save(context.Background(), user, domain.MomentumState{Multiplier: 1.2}))
	require.NoError(t, uc.Execute(context.Background(), user.String()))

	_, err := store.Momentum().Get(context.Background(), user)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestResetMomentum_Errors(t *testing.T) {
	store := memory.NewStore()

	err := NewResetMomentumUseCase(store.Momentum(), logging.NewNop()).Execute(context.Background(), "nope")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	failing := failingMomentum{MomentumRepository: store.Momentum(), deleteErr: errors.New("down")}
	err = NewResetMomentumUseCase(failing, logging.NewNop()).Execute(context.Background(), domain.NewUserID().String())
	assert.Error(t, err)
}

func TestResetMomentum_NextCycleStartsFresh(t *testing.T) {
	f := newComputeFixture()
	user := domain.NewUserID()
	f.completeEverything(t, user)
	f.run(t, user, mecca)

	reset := NewResetMomentumUseCase(f.store.Momentum(), logging.NewNop())
	require.NoError(t, reset.Execute(context.Background(), user.String()))

	out := f.run(t, user, mecca)
	assert.Equal(t, domain.PhaseBuilding, out.Phase)
	assert.InDelta(t, 1.02, out.Multiplier, 1e-9)
}
