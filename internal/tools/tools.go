// Package tools exposes the cost-data and optimisation tools the agent can plan with.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Name identifies a tool in plans.
type Name string

const (
	CostByService        Name = "get_cost_by_service"
	DailyCostTrend       Name = "get_daily_cost_trend"
	CostByResourceGroup  Name = "get_cost_by_resource_group"
	SuggestOptimisations Name = "suggest_optimisations"
)

// Names lists every tool in the order they are described to the planner.
var Names = []Name{CostByService, DailyCostTrend, CostByResourceGroup, SuggestOptimisations}

// ParseName maps a planner-supplied string onto a known tool, ignoring case and surrounding space.
func ParseName(s string) (Name, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, n := range Names {
		if string(n) == s {
			return n, true
		}
	}
	return "", false
}

// Output is a tool payload. It marshals to the JSON handed to the synthesizer and logs as a summary.
type Output interface {
	zerolog.LogObjectMarshaler
	// DataSource is "mock", "azure_api" or "export"
	DataSource() string
}

// Tool fetches cost data without input.
type Tool interface {
	Name() Name
	Invoke(ctx context.Context) (Output, error)
}

// Optimiser derives recommendations from a service breakdown computed by the caller.
type Optimiser interface {
	Optimise(ctx context.Context, costData *ServiceBreakdown) (*Optimisations, error)
}

// Registry holds the tools built for one cost provider. It is read-only after construction.
type Registry struct {
	tools     map[Name]Tool
	optimiser Optimiser
}

// NewRegistry wires every data tool to provider.
func NewRegistry(provider CostProvider) *Registry {
	return &Registry{
		tools: map[Name]Tool{
			CostByService:       serviceTool{provider: provider},
			DailyCostTrend:      dailyTool{provider: provider},
			CostByResourceGroup: groupTool{provider: provider},
		},
		optimiser: RuleOptimiser{},
	}
}

// Tool returns the data tool registered under name. SuggestOptimisations is not a data tool.
func (r *Registry) Tool(name Name) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Breakdown is the service cost breakdown tool, the default for unknown plans.
func (r *Registry) Breakdown() Tool {
	return r.tools[CostByService]
}

func (r *Registry) Optimiser() Optimiser {
	return r.optimiser
}

type serviceTool struct{ provider CostProvider }

func (serviceTool) Name() Name { return CostByService }

func (t serviceTool) Invoke(ctx context.Context) (Output, error) {
	out, err := t.provider.CostByService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get cost by service: %w", err)
	}
	return finishServices(out), nil
}

type dailyTool struct{ provider CostProvider }

func (dailyTool) Name() Name { return DailyCostTrend }

func (t dailyTool) Invoke(ctx context.Context) (Output, error) {
	series, err := t.provider.DailyCosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily cost trend: %w", err)
	}
	return NewDailyTrend(series), nil
}

type groupTool struct{ provider CostProvider }

func (groupTool) Name() Name { return CostByResourceGroup }

func (t groupTool) Invoke(ctx context.Context) (Output, error) {
	out, err := t.provider.CostByResourceGroup(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get cost by resource group: %w", err)
	}
	return finishGroups(out), nil
}
