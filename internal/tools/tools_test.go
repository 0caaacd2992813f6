package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2026, 9, 30, 15, 4, 5, 0, time.UTC)
}

func syntheticRegistry() *Registry {
	return NewRegistry(&SyntheticProvider{Now: fixedClock})
}

func TestParseName(t *testing.T) {
	for _, n := range Names {
		got, ok := ParseName(string(n))
		assert.True(t, ok)
		assert.Equal(t, n, got)
	}
	got, ok := ParseName(" Suggest_Optimisations\n")
	assert.True(t, ok)
	assert.Equal(t, SuggestOptimisations, got)

	_, ok = ParseName("get_weather")
	assert.False(t, ok)
}

func TestRegistry(t *testing.T) {
	r := syntheticRegistry()

	t.Run("Should register every data tool under its own name", func(t *testing.T) {
		for _, n := range []Name{CostByService, DailyCostTrend, CostByResourceGroup} {
			tool, ok := r.Tool(n)
			require.True(t, ok, n)
			assert.Equal(t, n, tool.Name())
		}
		assert.Equal(t, CostByService, r.Breakdown().Name())
	})

	t.Run("Should not expose the optimiser as a data tool", func(t *testing.T) {
		_, ok := r.Tool(SuggestOptimisations)
		assert.False(t, ok)
		assert.NotNil(t, r.Optimiser())
	})
}

func TestSyntheticTools(t *testing.T) {
	ctx := context.Background()
	r := syntheticRegistry()

	t.Run("Should return the service breakdown sorted with a rounded total", func(t *testing.T) {
		out, err := r.Breakdown().Invoke(ctx)
		require.NoError(t, err)
		b := out.(*ServiceBreakdown)
		assert.Equal(t, SourceMock, b.DataSource())
		assert.Equal(t, "2026-08-31 to 2026-09-30", b.Period)
		assert.Equal(t, 4000.15, b.TotalUSD)
		require.Len(t, b.Services, 10)
		assert.Equal(t, "Azure Kubernetes Service", b.Services[0].Service)
		for i := 1; i < len(b.Services); i++ {
			assert.GreaterOrEqual(t, b.Services[i-1].CostUSD, b.Services[i].CostUSD)
		}
	})

	t.Run("Should flag exactly the two spike days", func(t *testing.T) {
		tool, _ := r.Tool(DailyCostTrend)
		out, err := tool.Invoke(ctx)
		require.NoError(t, err)
		d := out.(*DailyTrend)
		require.Len(t, d.Daily, DefaultLookbackDays)
		assert.Equal(t, "2026-09-01", d.Daily[0].Date)
		assert.Equal(t, "2026-09-30", d.Daily[DefaultLookbackDays-1].Date)
		require.Len(t, d.AnomalyDays, 2)
		assert.Equal(t, d.Daily[SpikeDays[0]].Date, d.AnomalyDays[0].Date)
		assert.Equal(t, d.Daily[SpikeDays[1]].Date, d.AnomalyDays[1].Date)
		for _, a := range d.AnomalyDays {
			assert.Greater(t, a.CostUSD, d.AnomalyThresholdUSD)
		}
		assert.InDelta(t, d.MeanDailyUSD+1.5*d.StdDevUSD, d.AnomalyThresholdUSD, 0.02)
	})

	t.Run("Should produce the same series on every call", func(t *testing.T) {
		tool, _ := r.Tool(DailyCostTrend)
		a, err := tool.Invoke(ctx)
		require.NoError(t, err)
		b, err := tool.Invoke(ctx)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("Should return resource groups with a total", func(t *testing.T) {
		tool, _ := r.Tool(CostByResourceGroup)
		out, err := tool.Invoke(ctx)
		require.NoError(t, err)
		g := out.(*ResourceGroupBreakdown)
		require.Len(t, g.ResourceGroups, 5)
		assert.Equal(t, "rg-production", g.ResourceGroups[0].ResourceGroup)
		assert.Equal(t, 3600.15, g.TotalUSD)
	})
}

func TestFinishServices(t *testing.T) {
	in := &ServiceBreakdown{Source: SourceAzure}
	for i := 0; i < 20; i++ {
		in.Services = append(in.Services, ServiceCost{Service: fmt.Sprintf("svc-%02d", i), CostUSD: float64(i) + 0.004})
	}
	out := finishServices(in)

	require.Len(t, out.Services, MaxServices)
	assert.Equal(t, "svc-19", out.Services[0].Service)
	assert.Equal(t, 19.0, out.Services[0].CostUSD)
	assert.Equal(t, 190.0, out.TotalUSD, "the total covers services beyond the cap")
	assert.Len(t, in.Services, 20, "input is left untouched")
}

func TestRuleOptimiser(t *testing.T) {
	ctx := context.Background()
	out, err := syntheticRegistry().Breakdown().Invoke(ctx)
	require.NoError(t, err)

	opt, err := RuleOptimiser{}.Optimise(ctx, out.(*ServiceBreakdown))
	require.NoError(t, err)

	t.Run("Should apply every rule above the minimum spend", func(t *testing.T) {
		require.Len(t, opt.Recommendations, 7)
		assert.Equal(t, "Virtual Machines", opt.Recommendations[0].Service)
		assert.Equal(t, 294.09, opt.Recommendations[0].EstSavingUSD)
		assert.Equal(t, 980.30, opt.Recommendations[0].CurrentCost)
		for i := 1; i < len(opt.Recommendations); i++ {
			assert.GreaterOrEqual(t, opt.Recommendations[i-1].EstSavingUSD, opt.Recommendations[i].EstSavingUSD)
		}
	})

	t.Run("Should total the savings and the share of spend", func(t *testing.T) {
		assert.Equal(t, 4000.15, opt.TotalSpendUSD)
		assert.Equal(t, 979.07, opt.PotentialSavingsUSD)
		assert.Equal(t, 24.5, opt.SavingsPctOfTotal)
		assert.Equal(t, SourceMock, opt.DataSource())
	})

	t.Run("Should skip services at or below the minimum spend", func(t *testing.T) {
		small := &ServiceBreakdown{Services: []ServiceCost{{Service: "Virtual Machines", CostUSD: 50}}, TotalUSD: 50}
		opt, err := RuleOptimiser{}.Optimise(ctx, small)
		require.NoError(t, err)
		assert.Empty(t, opt.Recommendations)
		assert.Zero(t, opt.PotentialSavingsUSD)
	})

	t.Run("Should report a zero share when there is no spend", func(t *testing.T) {
		opt, err := RuleOptimiser{}.Optimise(ctx, &ServiceBreakdown{})
		require.NoError(t, err)
		assert.Zero(t, opt.SavingsPctOfTotal)
		assert.NotNil(t, opt.Recommendations)
	})
}

func TestCombinedJSON(t *testing.T) {
	ctx := context.Background()
	out, err := syntheticRegistry().Breakdown().Invoke(ctx)
	require.NoError(t, err)
	b := out.(*ServiceBreakdown)
	opt, err := RuleOptimiser{}.Optimise(ctx, b)
	require.NoError(t, err)

	c := &Combined{CostData: b, Optimisations: opt}
	assert.Equal(t, SourceMock, c.DataSource())

	raw, err := json.Marshal(c)
	require.NoError(t, err)
	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "mock", decoded["cost_data"]["source"])
	assert.Equal(t, 979.07, decoded["optimisations"]["potential_savings_usd"])
	assert.NotContains(t, decoded["optimisations"], "source")
}
