package agent

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"finops-agent/internal/config"
	"finops-agent/internal/helper"
	"finops-agent/internal/llmservice"
	"finops-agent/internal/models"
	"finops-agent/internal/tools"
)

const (
	DefaultMaxRetries = 2
	DefaultTopK       = 3
)

// Retriever returns the knowledge chunks nearest to a query
type Retriever interface {
	Query(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error)
}

type Options struct {
	TopK           int
	MaxRetries     int
	RetryThreshold int
	MaxTokens      int
}

// OptionsFromConfig reads the agent and retrieval settings
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TopK:           cfg.RAG.TopK,
		MaxRetries:     cfg.Agent.MaxRetries,
		RetryThreshold: cfg.Agent.RetryThreshold,
		MaxTokens:      cfg.LLM.MaxTokens,
	}
}

// Controller runs plan, dispatch, synthesis and review until the answer is accepted or the
// attempt budget is spent. It keeps no state between queries.
type Controller struct {
	retriever   Retriever
	planner     *Planner
	dispatcher  *Dispatcher
	synthesizer *Synthesizer
	critic      *Critic
	topK        int
	maxRetries  int
}

func NewController(retriever Retriever, llm llmservice.CompletionService, registry *tools.Registry, opts Options) *Controller {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	return &Controller{
		retriever:   retriever,
		planner:     NewPlanner(llm),
		dispatcher:  NewDispatcher(registry),
		synthesizer: NewSynthesizer(llm, opts.MaxTokens),
		critic:      NewCritic(llm, opts.RetryThreshold),
		topK:        opts.TopK,
		maxRetries:  opts.MaxRetries,
	}
}

// Run answers query. Knowledge is retrieved once; every attempt replans from scratch and the
// last attempt is returned whatever its score.
func (c *Controller) Run(ctx context.Context, query string) (*AgentRun, error) {
	kb, err := c.retriever.Query(ctx, query, c.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve knowledge: %w", err)
	}
	log.Info().Int("chunks", len(kb)).Msg("Retrieved knowledge")

	var run *AgentRun
	for state := Start(); state.Phase == Attempting; {
		log.Debug().Int("attempt", state.Attempt).Msg("Reasoning attempt")
		run, err = c.attempt(ctx, query, kb)
		if err != nil {
			return nil, fmt.Errorf("attempt %d: %w", state.Attempt, err)
		}
		run.Attempts = state.Attempt

		event := Accepted
		if run.Reflection.ShouldRetry {
			event = Rejected
		}
		state = Next(state, event, c.maxRetries)
		if event == Rejected {
			if state.Phase == Done {
				// budget spent, the verdict no longer asks for another attempt
				run.Reflection.ShouldRetry = false
				log.Warn().Int("score", run.Reflection.Score).Int("attempts", run.Attempts).Msg("Retry budget exhausted")
			} else {
				log.Info().Int("score", run.Reflection.Score).Msg("Score too low, retrying")
			}
		}
	}

	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	run.ID = id
	run.Query = query
	run.KBSources = sources(kb)
	return run, nil
}

func (c *Controller) attempt(ctx context.Context, query string, kb []models.RetrievalResult) (*AgentRun, error) {
	plan, err := c.planner.Plan(ctx, query, kb)
	if err != nil {
		return nil, err
	}
	log.Info().Str("primary", string(plan.Primary)).Str("secondary", string(plan.Secondary)).Str("reasoning", plan.Reasoning).Msg("Tool plan")

	tool, out, err := c.dispatcher.Dispatch(ctx, plan)
	if err != nil {
		return nil, err
	}

	answer, err := c.synthesizer.Answer(ctx, query, kb, out)
	if err != nil {
		return nil, err
	}

	verdict, err := c.critic.Review(ctx, query, answer)
	if err != nil {
		return nil, err
	}
	log.Info().Int("score", verdict.Score).Str("reason", verdict.Reason).Msg("Reflection")

	return &AgentRun{
		Plan:       plan,
		ToolCalled: tool,
		ToolOutput: out,
		Answer:     answer,
		Reflection: verdict,
	}, nil
}
