// Package agent plans tool calls, writes answers and reviews them in a bounded retry loop.
package agent

import (
	"strings"

	"finops-agent/internal/models"
	"finops-agent/internal/tools"
)

// ToolPlan is the planner's decision. Secondary is empty when no second tool runs.
type ToolPlan struct {
	Primary   tools.Name `json:"primary_tool"`
	Secondary tools.Name `json:"secondary_tool,omitempty"`
	Reasoning string     `json:"reasoning"`
}

// ReflectionVerdict is the critic's score for one answer
type ReflectionVerdict struct {
	Score       int    `json:"score"`
	Reason      string `json:"reason"`
	ShouldRetry bool   `json:"should_retry"`
}

// AgentRun is the result of one query. It holds the last attempt only.
type AgentRun struct {
	ID         string            `json:"id"`
	Query      string            `json:"query"`
	Plan       ToolPlan          `json:"plan"`
	ToolCalled tools.Name        `json:"tool_called"`
	ToolOutput tools.Output      `json:"tool_output"`
	Answer     string            `json:"answer"`
	KBSources  []string          `json:"kb_sources"`
	Reflection ReflectionVerdict `json:"reflection"`
	Attempts   int               `json:"attempts"`
}

// stripFences removes markdown code fences around model output
func stripFences(raw string) string {
	raw = strings.ReplaceAll(raw, models.JSONCodeFence, "")
	raw = strings.ReplaceAll(raw, models.CodeFence, "")
	return strings.TrimSpace(raw)
}

func sources(kb []models.RetrievalResult) []string {
	out := make([]string, 0, len(kb))
	for _, r := range kb {
		out = append(out, r.Source)
	}
	return out
}

const noKnowledge = "No relevant knowledge found."

// knowledgeText renders chunks for prompts, tagging each with its source when withSource is set
func knowledgeText(kb []models.RetrievalResult, withSource bool) string {
	if len(kb) == 0 {
		return noKnowledge
	}
	parts := make([]string, len(kb))
	for i, r := range kb {
		if withSource {
			parts[i] = "[" + r.Source + "]\n" + r.Text
		} else {
			parts[i] = r.Text
		}
	}
	return strings.Join(parts, "\n\n")
}
