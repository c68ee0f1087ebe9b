package service

import (
	"context"
	"testing"

	"membership-ledger-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanCatalog(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	plans, err := env.plans.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "monthly_plan", plans[0].Code)
	assert.Equal(t, 2, plans[0].AllowancePerCycle)
	assert.Equal(t, "biannual_plan", plans[1].Code)
	assert.Equal(t, 12, plans[1].AllowancePerCycle)
	assert.Equal(t, "219.00", plans[1].Price.StringFixed(2))

	plan, err := env.plans.GetPlan(ctx, "biannual_plan")
	require.NoError(t, err)
	assert.Equal(t, 6, plan.IntervalCount)

	_, err = env.plans.GetPlan(ctx, "unknown")
	assert.ErrorIs(t, err, entity.ErrPlanNotFound)

	t.Run("Seeding twice keeps one row per plan", func(t *testing.T) {
		require.NoError(t, env.plans.SeedDefaultPlans(ctx))
		var count int64
		require.NoError(t, env.db.Table("membership_plans").Count(&count).Error)
		assert.Equal(t, int64(2), count)
	})
}
