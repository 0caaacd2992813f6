package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"finops-agent/internal/llmservice"
	"finops-agent/internal/models"
	"finops-agent/internal/tools"
)

const (
	AnswerWordLimit = 250
	answerMaxTokens = 1024
)

var demoMentions = []string{"demo", "mock", "synthetic"}

type Synthesizer struct {
	llm       llmservice.CompletionService
	maxTokens int
}

func NewSynthesizer(llm llmservice.CompletionService, maxTokens int) *Synthesizer {
	if maxTokens <= 0 {
		maxTokens = answerMaxTokens
	}
	return &Synthesizer{llm: llm, maxTokens: maxTokens}
}

// Answer writes the user-facing reply. Answers built on synthetic data always carry a disclosure.
func (s *Synthesizer) Answer(ctx context.Context, query string, kb []models.RetrievalResult, out tools.Output) (string, error) {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode tool output: %w", err)
	}
	prompt := fmt.Sprintf(models.SynthesizerPromptTemplate, query, knowledgeText(kb, false), data, AnswerWordLimit)
	answer, err := s.llm.Complete(ctx, prompt, s.maxTokens)
	if err != nil {
		return "", fmt.Errorf("failed to synthesize answer: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if out.DataSource() == tools.SourceMock && !mentionsDemo(answer) {
		answer += "\n\n" + models.DemoDisclosure
	}
	return answer, nil
}

func mentionsDemo(answer string) bool {
	lower := strings.ToLower(answer)
	for _, w := range demoMentions {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
