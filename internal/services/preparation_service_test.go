package services

import (
	"context"
	"order_dispatch/internal/apperrors"
	"order_dispatch/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvancePreparation(t *testing.T) {
	env := newTestEnv(t)
	near := env.addRestaurant(t, "near", nearPoint, "")
	placed := env.placeDispatchedOrder(t)
	ctx := context.Background()

	_, err := env.assignments.AcceptOrder(ctx, placed.Order.ID, near.ID, "")
	require.NoError(t, err)

	stages, err := env.preparation.AdvancePreparation(ctx, placed.Order.ID, near.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageInProgress, stages[0].Status)
	assert.Equal(t, models.StagePending, stages[1].Status)
	assert.Equal(t, models.OrderPreparing, env.order(t, placed.Order.ID).Status)

	stages, err = env.preparation.AdvancePreparation(ctx, placed.Order.ID, near.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageCompleted, stages[0].Status)
	assert.Equal(t, models.StageInProgress, stages[1].Status)
	assert.Equal(t, models.OrderPreparing, env.order(t, placed.Order.ID).Status)

	for i := 0; i < 3; i++ {
		stages, err = env.preparation.AdvancePreparation(ctx, placed.Order.ID, near.ID)
		require.NoError(t, err)
	}
	for _, st := range stages {
		assert.Equal(t, models.StageCompleted, st.Status, st.StageName)
	}
	order := env.order(t, placed.Order.ID)
	assert.Equal(t, models.OrderReadyForPickup, order.Status)
	assert.NotNil(t, order.ReadyAt)

	_, err = env.preparation.AdvancePreparation(ctx, placed.Order.ID, near.ID)
	assert.Equal(t, apperrors.ECONFLICT, apperrors.Code(err))
}

func TestAdvancePreparationByOtherRestaurant(t *testing.T) {
	env := newTestEnv(t)
	near := env.addRestaurant(t, "near", nearPoint, "")
	mid := env.addRestaurant(t, "mid", midPoint, "")
	placed := env.placeDispatchedOrder(t)
	ctx := context.Background()

	_, err := env.assignments.AcceptOrder(ctx, placed.Order.ID, near.ID, "")
	require.NoError(t, err)

	_, err = env.preparation.AdvancePreparation(ctx, placed.Order.ID, mid.ID)
	assert.Equal(t, apperrors.ENOTFOUND, apperrors.Code(err))
	assert.Equal(t, models.OrderRestaurantAccepted, env.order(t, placed.Order.ID).Status)
}
