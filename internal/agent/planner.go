package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"finops-agent/internal/llmservice"
	"finops-agent/internal/models"
	"finops-agent/internal/tools"
)

const (
	planMaxTokens     = 300
	fallbackReasonLen = 200
)

var errNoPrimaryTool = errors.New("plan names no primary tool")

type Planner struct {
	llm llmservice.CompletionService
}

func NewPlanner(llm llmservice.CompletionService) *Planner {
	return &Planner{llm: llm}
}

// Plan asks the model which tools answer query. Malformed replies yield DefaultPlan; only
// transport errors are returned.
func (p *Planner) Plan(ctx context.Context, query string, kb []models.RetrievalResult) (ToolPlan, error) {
	prompt := fmt.Sprintf(models.PlannerPromptTemplate, query, knowledgeText(kb, true), models.ToolDescriptions)
	raw, err := p.llm.Complete(ctx, prompt, planMaxTokens)
	if err != nil {
		return ToolPlan{}, fmt.Errorf("failed to plan: %w", err)
	}
	plan, err := DecodePlan(raw)
	if err != nil {
		log.Warn().Err(err).Msg("Unparseable plan, using the default")
		return DefaultPlan(raw), nil
	}
	return plan, nil
}

type rawPlan struct {
	Primary   string  `json:"primary_tool"`
	Secondary *string `json:"secondary_tool"`
	Reasoning string  `json:"reasoning"`
}

// DecodePlan parses the model's JSON plan. Unknown primary names are kept for the
// dispatcher to substitute; an absent or "null" secondary means none.
func DecodePlan(raw string) (ToolPlan, error) {
	var rp rawPlan
	if err := json.Unmarshal([]byte(stripFences(raw)), &rp); err != nil {
		return ToolPlan{}, fmt.Errorf("failed to decode plan: %w", err)
	}
	if strings.TrimSpace(rp.Primary) == "" {
		return ToolPlan{}, errNoPrimaryTool
	}
	plan := ToolPlan{Primary: tools.Name(strings.TrimSpace(rp.Primary)), Reasoning: rp.Reasoning}
	if rp.Secondary != nil {
		switch s := strings.TrimSpace(*rp.Secondary); strings.ToLower(s) {
		case "", "null", "none":
		default:
			plan.Secondary = tools.Name(s)
		}
	}
	return plan, nil
}

// DefaultPlan runs the service breakdown alone and keeps the head of the raw reply as reasoning
func DefaultPlan(raw string) ToolPlan {
	reason := []rune(stripFences(raw))
	if len(reason) > fallbackReasonLen {
		reason = reason[:fallbackReasonLen]
	}
	return ToolPlan{Primary: tools.CostByService, Reasoning: string(reason)}
}
