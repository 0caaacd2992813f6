package agent

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"finops-agent/internal/tools"
)

// Dispatcher executes plans against a registry. The optimiser only ever sees a breakdown
// fetched in the same Dispatch call.
type Dispatcher struct {
	registry *tools.Registry
}

func NewDispatcher(registry *tools.Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch runs plan and returns the tool that was actually used as primary with its output
func (d *Dispatcher) Dispatch(ctx context.Context, plan ToolPlan) (tools.Name, tools.Output, error) {
	name, _ := tools.ParseName(string(plan.Primary))
	if name == tools.SuggestOptimisations {
		out, err := d.optimise(ctx, d.registry.Breakdown())
		return tools.SuggestOptimisations, out, err
	}

	primary, ok := d.registry.Tool(name)
	if !ok {
		log.Warn().Str("tool", string(plan.Primary)).Msg("Unknown tool, using the service breakdown")
		primary = d.registry.Breakdown()
	}

	secondary, _ := tools.ParseName(string(plan.Secondary))
	switch {
	case plan.Secondary == "":
	case secondary == tools.SuggestOptimisations:
		if primary.Name() != tools.CostByService {
			log.Warn().Str("tool", string(primary.Name())).Msg("Optimisations need the service breakdown, replacing primary tool")
			primary = d.registry.Breakdown()
		}
		out, err := d.optimise(ctx, primary)
		return primary.Name(), out, err
	default:
		log.Warn().Str("tool", string(plan.Secondary)).Msg("Ignoring secondary tool")
	}

	out, err := primary.Invoke(ctx)
	if err != nil {
		return primary.Name(), nil, err
	}
	log.Info().Str("tool", string(primary.Name())).Object("output", out).Msg("Tool executed")
	return primary.Name(), out, nil
}

func (d *Dispatcher) optimise(ctx context.Context, breakdown tools.Tool) (tools.Output, error) {
	out, err := breakdown.Invoke(ctx)
	if err != nil {
		return nil, err
	}
	costData, ok := out.(*tools.ServiceBreakdown)
	if !ok {
		return nil, fmt.Errorf("optimiser needs a service breakdown, got %T", out)
	}
	opt, err := d.registry.Optimiser().Optimise(ctx, costData)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest optimisations: %w", err)
	}
	combined := &tools.Combined{CostData: costData, Optimisations: opt}
	log.Info().Str("tool", string(tools.SuggestOptimisations)).Object("output", combined).Msg("Tool executed")
	return combined, nil
}
