package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finops-agent/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

const (
	defaultMaxTokens   = 1024
	defaultBackoffBase = 500 * time.Millisecond
	defaultBackoffMax  = 10 * time.Second
)

// CompletionService turns a prompt into text
type CompletionService interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// generator is the part of llms.Model the client needs
type generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Client calls a langchaingo model with a per-attempt timeout and exponential backoff
type Client struct {
	llm         generator
	timeout     time.Duration
	retries     uint64
	backoffBase time.Duration
}

// NewLLM builds the langchaingo model for the configured provider
func NewLLM(llmConfig *config.LLMConfig) (llms.Model, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Msg("Creating LLM client")
	switch llmConfig.Provider {
	case config.ProviderOllama:
		return ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	default:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		return openai.New(opts...)
	}
}

// NewClient creates a live completion client from config
func NewClient(llmConfig *config.LLMConfig) (*Client, error) {
	llm, err := NewLLM(llmConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return newClient(llm, llmConfig.Timeout, llmConfig.Retries), nil
}

func newClient(llm generator, timeout time.Duration, retries int) *Client {
	if retries < 0 {
		retries = 0
	}
	return &Client{
		llm:         llm,
		timeout:     timeout,
		retries:     uint64(retries),
		backoffBase: defaultBackoffBase,
	}
}

// Complete sends prompt as a single human message and returns the first choice
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	backoff := retry.WithMaxRetries(c.retries, retry.WithCappedDuration(defaultBackoffMax, retry.NewExponential(c.backoffBase)))

	var text string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		res, err := c.llm.GenerateContent(callCtx, messages, llms.WithMaxTokens(maxTokens))
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.Warn().Err(err).Msg("Completion call failed")
			return retry.RetryableError(err)
		}
		if len(res.Choices) == 0 {
			return errors.New("completion returned no choices")
		}
		text = res.Choices[0].Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}
	return text, nil
}
