package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"finops-agent/internal/llmservice"
	"finops-agent/internal/models"
)

const (
	DefaultRetryThreshold = 6
	MaxScore              = 10
	criticMaxTokens       = 200
)

var errNoScore = errors.New("verdict carries no score")

// FallbackVerdict is used when the critic reply cannot be decoded; it never asks for a retry
func FallbackVerdict() ReflectionVerdict {
	return ReflectionVerdict{Score: 7, Reason: "parse error", ShouldRetry: false}
}

type Critic struct {
	llm       llmservice.CompletionService
	threshold int
}

func NewCritic(llm llmservice.CompletionService, threshold int) *Critic {
	if threshold <= 0 {
		threshold = DefaultRetryThreshold
	}
	return &Critic{llm: llm, threshold: threshold}
}

// Review scores answer against the rubric
func (c *Critic) Review(ctx context.Context, query, answer string) (ReflectionVerdict, error) {
	prompt := fmt.Sprintf(models.CriticPromptTemplate, query, answer, c.threshold)
	raw, err := c.llm.Complete(ctx, prompt, criticMaxTokens)
	if err != nil {
		return ReflectionVerdict{}, fmt.Errorf("failed to review answer: %w", err)
	}
	verdict, err := DecodeVerdict(raw, c.threshold)
	if err != nil {
		log.Warn().Err(err).Msg("Unparseable verdict, using the fallback")
		return FallbackVerdict(), nil
	}
	return verdict, nil
}

type rawVerdict struct {
	Score  *float64 `json:"score"`
	Reason string   `json:"reason"`
}

// DecodeVerdict parses the critic's JSON. The score is clamped to 0..MaxScore and
// should_retry is derived from it rather than trusted.
func DecodeVerdict(raw string, threshold int) (ReflectionVerdict, error) {
	var rv rawVerdict
	if err := json.Unmarshal([]byte(stripFences(raw)), &rv); err != nil {
		return ReflectionVerdict{}, fmt.Errorf("failed to decode verdict: %w", err)
	}
	if rv.Score == nil {
		return ReflectionVerdict{}, errNoScore
	}
	score := int(math.Round(*rv.Score))
	score = max(0, min(MaxScore, score))
	return ReflectionVerdict{Score: score, Reason: rv.Reason, ShouldRetry: score < threshold}, nil
}
