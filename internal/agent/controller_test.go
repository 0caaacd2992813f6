package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finops-agent/internal/llmservice"
	"finops-agent/internal/models"
	"finops-agent/internal/tools"
)

func syntheticRegistry() *tools.Registry {
	return tools.NewRegistry(tools.NewSyntheticProvider())
}

func TestControllerRetriesThenReturnsLastAttempt(t *testing.T) {
	llm := &scriptedLLM{
		plans: []string{
			`{"primary_tool":"get_daily_cost_trend","secondary_tool":null,"reasoning":"first"}`,
			`{"primary_tool":"get_cost_by_resource_group","secondary_tool":null,"reasoning":"second"}`,
		},
		answers:  []string{"First answer, demo data.", "Second answer $3600.15, demo data."},
		verdicts: []string{`{"score":4,"reason":"vague"}`, `{"score":8,"reason":"good"}`},
	}
	retriever := &staticRetriever{results: []models.RetrievalResult{{Text: "tip", Source: "vm.md"}}}
	c := NewController(retriever, llm, syntheticRegistry(), Options{})

	run, err := c.Run(context.Background(), "where does the money go?")
	require.NoError(t, err)

	assert.Equal(t, 2, run.Attempts)
	assert.Equal(t, "Second answer $3600.15, demo data.", run.Answer)
	assert.Equal(t, tools.CostByResourceGroup, run.ToolCalled)
	assert.IsType(t, &tools.ResourceGroupBreakdown{}, run.ToolOutput)
	assert.Equal(t, "second", run.Plan.Reasoning)
	assert.Equal(t, ReflectionVerdict{Score: 8, Reason: "good"}, run.Reflection)
	assert.Equal(t, []string{"vm.md"}, run.KBSources)
	assert.Equal(t, "where does the money go?", run.Query)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 1, retriever.calls, "knowledge is retrieved once per query")
	assert.Equal(t, 2, llm.count("plan"))
}

func TestControllerTerminatesWhenCriticAlwaysRejects(t *testing.T) {
	for _, budget := range []int{1, 2, 3} {
		llm := &scriptedLLM{
			plans:    []string{`{"primary_tool":"get_cost_by_service"}`},
			answers:  []string{"meh"},
			verdicts: []string{`{"score":1,"reason":"bad","should_retry":true}`},
		}
		c := NewController(&staticRetriever{}, llm, syntheticRegistry(), Options{MaxRetries: budget})

		run, err := c.Run(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, budget, run.Attempts)
		assert.Equal(t, budget, llm.count("verdict"))
		assert.Equal(t, 1, run.Reflection.Score)
		assert.False(t, run.Reflection.ShouldRetry, "the last attempt is final")
	}
}

func TestControllerWithoutKnowledge(t *testing.T) {
	c := NewController(&staticRetriever{results: []models.RetrievalResult{}}, llmservice.NewSynthetic(), syntheticRegistry(), Options{})

	run, err := c.Run(context.Background(), "Which service costs the most?")
	require.NoError(t, err)

	assert.NotNil(t, run.KBSources)
	assert.Empty(t, run.KBSources)
	assert.Equal(t, 1, run.Attempts)
	assert.Equal(t, tools.CostByService, run.ToolCalled)
	assert.Contains(t, run.Answer, "$4000.15")
	assert.Contains(t, run.Answer, models.DemoDisclosure)

	raw, err := json.Marshal(run)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kb_sources":[]`)
}

func TestControllerOptimisationQuery(t *testing.T) {
	c := NewController(&staticRetriever{}, llmservice.NewSynthetic(), syntheticRegistry(), Options{})

	run, err := c.Run(context.Background(), "how can I reduce cost")
	require.NoError(t, err)

	assert.Equal(t, tools.CostByService, run.Plan.Primary)
	assert.Equal(t, tools.SuggestOptimisations, run.Plan.Secondary)
	combined, ok := run.ToolOutput.(*tools.Combined)
	require.True(t, ok)
	assert.Equal(t, combined.CostData.TotalUSD, combined.Optimisations.TotalSpendUSD)
	assert.Contains(t, run.Answer, "save about $979.07")
	assert.Equal(t, 1, run.Attempts)
}

func TestControllerAnomalyQuery(t *testing.T) {
	c := NewController(&staticRetriever{}, llmservice.NewSynthetic(), syntheticRegistry(), Options{})

	run, err := c.Run(context.Background(), "Were there any cost spikes last month?")
	require.NoError(t, err)

	assert.Equal(t, tools.DailyCostTrend, run.ToolCalled)
	trend := run.ToolOutput.(*tools.DailyTrend)
	assert.Len(t, trend.AnomalyDays, 2)
	assert.Contains(t, run.Answer, trend.AnomalyDays[0].Date)
}

func TestControllerErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Should fail when retrieval fails", func(t *testing.T) {
		c := NewController(&staticRetriever{err: assert.AnError}, llmservice.NewSynthetic(), syntheticRegistry(), Options{})
		_, err := c.Run(ctx, "q")
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("Should fail when the completion service is down", func(t *testing.T) {
		c := NewController(&staticRetriever{}, &scriptedLLM{err: assert.AnError}, syntheticRegistry(), Options{})
		_, err := c.Run(ctx, "q")
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("Should fail when the cost provider is down", func(t *testing.T) {
		c := NewController(&staticRetriever{}, llmservice.NewSynthetic(), tools.NewRegistry(&failingProvider{}), Options{})
		_, err := c.Run(ctx, "which service costs most")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "billing api unavailable")
	})
}
