package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finops-agent/internal/tools"
)

func TestDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("Should fetch a fresh breakdown when optimisation is primary", func(t *testing.T) {
		provider := &sequenceProvider{}
		d := NewDispatcher(tools.NewRegistry(provider))

		for call := 1; call <= 2; call++ {
			name, out, err := d.Dispatch(ctx, ToolPlan{Primary: tools.SuggestOptimisations})
			require.NoError(t, err)
			assert.Equal(t, tools.SuggestOptimisations, name)
			combined, ok := out.(*tools.Combined)
			require.True(t, ok)
			assert.Equal(t, 100*float64(call), combined.CostData.TotalUSD)
			require.Len(t, combined.Optimisations.Recommendations, 1)
			assert.Equal(t, combined.CostData.Services[0].CostUSD, combined.Optimisations.Recommendations[0].CurrentCost)
			assert.Equal(t, combined.CostData.TotalUSD, combined.Optimisations.TotalSpendUSD)
		}
		assert.Equal(t, 2, provider.serviceCalls)
	})

	t.Run("Should feed the primary breakdown to a secondary optimiser", func(t *testing.T) {
		provider := &sequenceProvider{}
		d := NewDispatcher(tools.NewRegistry(provider))
		name, out, err := d.Dispatch(ctx, ToolPlan{Primary: tools.CostByService, Secondary: tools.SuggestOptimisations})
		require.NoError(t, err)
		assert.Equal(t, tools.CostByService, name)
		combined := out.(*tools.Combined)
		assert.Equal(t, 100.0, combined.CostData.TotalUSD)
		assert.Equal(t, 30.0, combined.Optimisations.PotentialSavingsUSD)
		assert.Equal(t, 1, provider.serviceCalls)
	})

	t.Run("Should replace a non-breakdown primary when optimisations are requested", func(t *testing.T) {
		provider := &sequenceProvider{}
		d := NewDispatcher(tools.NewRegistry(provider))
		name, out, err := d.Dispatch(ctx, ToolPlan{Primary: tools.DailyCostTrend, Secondary: tools.SuggestOptimisations})
		require.NoError(t, err)
		assert.Equal(t, tools.CostByService, name)
		assert.IsType(t, &tools.Combined{}, out)
		assert.Equal(t, 1, provider.serviceCalls)
	})

	t.Run("Should substitute the breakdown for unknown tools", func(t *testing.T) {
		d := NewDispatcher(tools.NewRegistry(&sequenceProvider{}))
		name, out, err := d.Dispatch(ctx, ToolPlan{Primary: "get_weather"})
		require.NoError(t, err)
		assert.Equal(t, tools.CostByService, name)
		assert.IsType(t, &tools.ServiceBreakdown{}, out)
	})

	t.Run("Should ignore a secondary tool other than the optimiser", func(t *testing.T) {
		d := NewDispatcher(tools.NewRegistry(&sequenceProvider{}))
		name, out, err := d.Dispatch(ctx, ToolPlan{Primary: tools.CostByResourceGroup, Secondary: tools.DailyCostTrend})
		require.NoError(t, err)
		assert.Equal(t, tools.CostByResourceGroup, name)
		assert.IsType(t, &tools.ResourceGroupBreakdown{}, out)
	})

	t.Run("Should accept tool names in any case", func(t *testing.T) {
		provider := &sequenceProvider{}
		d := NewDispatcher(tools.NewRegistry(provider))
		name, out, err := d.Dispatch(ctx, ToolPlan{Primary: " GET_COST_BY_SERVICE", Secondary: "Suggest_Optimisations "})
		require.NoError(t, err)
		assert.Equal(t, tools.CostByService, name)
		assert.IsType(t, &tools.Combined{}, out)
		assert.Equal(t, 1, provider.serviceCalls)
	})

	t.Run("Should annotate the daily series", func(t *testing.T) {
		d := NewDispatcher(tools.NewRegistry(&sequenceProvider{}))
		_, out, err := d.Dispatch(ctx, ToolPlan{Primary: tools.DailyCostTrend})
		require.NoError(t, err)
		trend := out.(*tools.DailyTrend)
		assert.Len(t, trend.Daily, 3)
		assert.Equal(t, 11.0, trend.MeanDailyUSD)
		assert.Empty(t, trend.AnomalyDays)
	})

	t.Run("Should propagate provider errors", func(t *testing.T) {
		d := NewDispatcher(tools.NewRegistry(&failingProvider{}))
		_, _, err := d.Dispatch(ctx, ToolPlan{Primary: tools.SuggestOptimisations})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "billing api unavailable")
	})
}
