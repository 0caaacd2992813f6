package llmservice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"finops-agent/internal/models"
)

// Synthetic is a deterministic offline CompletionService. It recognises planner, synthesizer
// and critic prompts by their opening line and answers each with canned reasoning.
type Synthetic struct{}

func NewSynthetic() Synthetic {
	return Synthetic{}
}

var (
	optimiseWords = []string{"reduce", "save", "saving", "optimi", "cheaper", "cut"}
	anomalyWords  = []string{"spike", "anomal", "daily", "trend", "burn"}
	groupWords    = []string{"resource group", "team", "environment"}
	actionWords   = []string{"recommend", "save", "saving", "reduce", "consider", "switch", "enable", "review", "move"}
)

func (Synthetic) Complete(ctx context.Context, prompt string, _ int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch {
	case strings.HasPrefix(prompt, models.PlannerPreamble):
		return planFor(between(prompt, models.QuestionLabel, "\n")), nil
	case strings.HasPrefix(prompt, models.SynthesizerPreamble):
		return answerFor(between(prompt, models.CostDataLabel+"\n", "\n\n"+models.GuidelineMark)), nil
	case strings.HasPrefix(prompt, models.CriticPreamble):
		return verdictFor(between(prompt, models.AnswerLabel, "\n\nScore on:")), nil
	}
	return "I can only help with Azure cost questions.", nil
}

func between(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	s = s[i+len(start):]
	if j := strings.Index(s, end); j >= 0 {
		s = s[:j]
	}
	return strings.TrimSpace(s)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func planFor(query string) string {
	q := strings.ToLower(query)
	primary, secondary, reasoning := "get_cost_by_service", "", "General spend question, start from the service breakdown."
	switch {
	case containsAny(q, optimiseWords):
		secondary = "suggest_optimisations"
		reasoning = "The user wants to lower spend, so fetch the breakdown and derive savings."
	case containsAny(q, anomalyWords):
		primary = "get_daily_cost_trend"
		reasoning = "The user asks about day-to-day movement, which needs the daily series."
	case containsAny(q, groupWords):
		primary = "get_cost_by_resource_group"
		reasoning = "The user asks about spend per group or team."
	}
	plan := map[string]any{
		"primary_tool":   primary,
		"secondary_tool": nil,
		"reasoning":      reasoning,
	}
	if secondary != "" {
		plan["secondary_tool"] = secondary
	}
	b, _ := json.Marshal(plan)
	return string(b)
}

type costLine struct {
	Service       string  `json:"service"`
	ResourceGroup string  `json:"resource_group"`
	Date          string  `json:"date"`
	CostUSD       float64 `json:"cost_usd"`
}

type recommendation struct {
	Service      string  `json:"service"`
	Tip          string  `json:"tip"`
	EstSavingUSD float64 `json:"est_saving_usd"`
}

type savings struct {
	TotalSpendUSD       float64          `json:"total_spend_usd"`
	PotentialSavingsUSD float64          `json:"potential_savings_usd"`
	SavingsPct          float64          `json:"savings_pct_of_total"`
	Recommendations     []recommendation `json:"recommendations"`
}

type payload struct {
	Source         string     `json:"source"`
	Period         string     `json:"period"`
	TotalUSD       float64    `json:"total_usd"`
	Services       []costLine `json:"services"`
	ResourceGroups []costLine `json:"resource_groups"`
	Daily          []costLine `json:"daily"`
	MeanDailyUSD   float64    `json:"mean_daily_usd"`
	ThresholdUSD   float64    `json:"anomaly_threshold_usd"`
	AnomalyDays    []costLine `json:"anomaly_days"`
	CostData       *payload   `json:"cost_data"`
	Optimisations  *savings   `json:"optimisations"`
}

func answerFor(data string) string {
	var p payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return "No cost data was available to answer this question."
	}

	var b strings.Builder
	source := p.Source
	switch {
	case p.Optimisations != nil:
		o := p.Optimisations
		if p.CostData != nil {
			source = p.CostData.Source
		}
		fmt.Fprintf(&b, "You could save about $%.2f per month (%.1f%% of $%.2f spend).\n", o.PotentialSavingsUSD, o.SavingsPct, o.TotalSpendUSD)
		for _, r := range o.Recommendations {
			fmt.Fprintf(&b, "- %s: %s (save ~$%.2f)\n", r.Service, r.Tip, r.EstSavingUSD)
		}
	case p.Daily != nil:
		fmt.Fprintf(&b, "Daily spend averaged $%.2f over %s; %d day(s) exceeded the $%.2f anomaly threshold.\n",
			p.MeanDailyUSD, p.Period, len(p.AnomalyDays), p.ThresholdUSD)
		for _, d := range p.AnomalyDays {
			fmt.Fprintf(&b, "- %s: $%.2f\n", d.Date, d.CostUSD)
		}
		b.WriteString("Review the resources deployed on those days.\n")
	case p.ResourceGroups != nil:
		fmt.Fprintf(&b, "Total spend across resource groups was $%.2f for %s.\n", p.TotalUSD, p.Period)
		for _, g := range p.ResourceGroups {
			fmt.Fprintf(&b, "- %s: $%.2f\n", g.ResourceGroup, g.CostUSD)
		}
	default:
		fmt.Fprintf(&b, "Total spend was $%.2f for %s.\n", p.TotalUSD, p.Period)
		for i, s := range p.Services {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "- %s: $%.2f\n", s.Service, s.CostUSD)
		}
	}
	if source == "mock" {
		b.WriteString("\n")
		b.WriteString(models.DemoDisclosure)
	}
	return b.String()
}

func verdictFor(answer string) string {
	lower := strings.ToLower(answer)
	score := 0
	var missing []string
	if strings.TrimSpace(answer) != "" {
		score += 3
	} else {
		missing = append(missing, "no answer")
	}
	if strings.Contains(answer, "$") {
		score += 3
	} else {
		missing = append(missing, "no dollar amounts")
	}
	if containsAny(lower, actionWords) {
		score += 2
	} else {
		missing = append(missing, "no recommendations")
	}
	if n := len(strings.Fields(answer)); n > 0 && n <= 250 {
		score += 2
	}
	reason := "Answer is specific and actionable."
	if len(missing) > 0 {
		reason = "Answer has gaps: " + strings.Join(missing, ", ") + "."
	}
	b, _ := json.Marshal(map[string]any{
		"score":        score,
		"reason":       reason,
		"should_retry": score < 6,
	})
	return string(b)
}
