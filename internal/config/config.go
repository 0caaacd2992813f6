package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ModeDemo = "demo"
	ModeLive = "live"

	BackendChromem  = "chromem"
	BackendPGVector = "pgvector"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	Mode     string         `yaml:"mode" validate:"oneof=demo live"`
	LogLevel string         `yaml:"log_level" validate:"oneof=debug info warn error"`
	LLM      LLMConfig      `yaml:"llm"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Database DatabaseConfig `yaml:"database"`
	Azure    AzureConfig    `yaml:"azure"`
	Agent    AgentConfig    `yaml:"agent"`
}

type LLMConfig struct {
	Provider  string        `yaml:"provider" validate:"omitempty,oneof=openai ollama"`
	BaseURL   string        `yaml:"base_url"`
	Key       string        `yaml:"key"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens" validate:"gte=0"`
	Timeout   time.Duration `yaml:"timeout"`
	Retries   int           `yaml:"retries" validate:"gte=0,lte=10"`
}

type RAGConfig struct {
	DocsDir       string `yaml:"docs_dir"`
	Backend       string `yaml:"backend" validate:"oneof=chromem pgvector"`
	DBPath        string `yaml:"db_path"`
	Collection    string `yaml:"collection" validate:"required"`
	InMemory      bool   `yaml:"in_memory"`
	EncryptionKey string `yaml:"encryption_key" validate:"omitempty,len=32"`
	ChunkSize     int    `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap  int    `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	MinChunkLen   int    `yaml:"min_chunk_len" validate:"gte=0"`
	TopK          int    `yaml:"top_k" validate:"gt=0"`
	BatchSize     int    `yaml:"batch_size" validate:"gt=0"`
	VectorSize    int    `yaml:"vector_size" validate:"gt=0"`
	CacheSize     int    `yaml:"cache_size" validate:"gte=0"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Driver   string `yaml:"driver" validate:"omitempty,oneof=pgdriver pq"`
	Debug    bool   `yaml:"debug"`
}

type AzureConfig struct {
	SubscriptionID string `yaml:"subscription_id"`
	TenantID       string `yaml:"tenant_id"`
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	LoginURL       string `yaml:"login_url" validate:"omitempty,url"`
	ManagementURL  string `yaml:"management_url" validate:"omitempty,url"`
	LookbackDays   int    `yaml:"lookback_days" validate:"gt=0"`
	ExportFile     string `yaml:"export_file"`
}

type AgentConfig struct {
	MaxRetries     int `yaml:"max_retries" validate:"gt=0"`
	RetryThreshold int `yaml:"retry_threshold" validate:"gte=0,lte=10"`
}

// HasCredentials reports whether live Cost Management queries are possible
func (a AzureConfig) HasCredentials() bool {
	return a.SubscriptionID != "" && a.TenantID != "" && a.ClientID != "" && a.ClientSecret != ""
}

// IsDemo reports whether synthetic services should be wired
func (c *Config) IsDemo() bool {
	return c.Mode != ModeLive
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Mode:     ModeDemo,
		LogLevel: "info",
		LLM: LLMConfig{
			Provider:  ProviderOpenAI,
			MaxTokens: 1024,
			Timeout:   60 * time.Second,
			Retries:   3,
		},
		EmbedLLM: LLMConfig{
			Provider: ProviderOllama,
			BaseURL:  "http://localhost:11434",
			Model:    "nomic-embed-text",
			Timeout:  60 * time.Second,
		},
		RAG: RAGConfig{
			DocsDir:      "./runbooks",
			Backend:      BackendChromem,
			DBPath:       "./data/chromemdb",
			Collection:   "azure_cost_kb",
			ChunkSize:    500,
			ChunkOverlap: 100,
			MinChunkLen:  50,
			TopK:         3,
			BatchSize:    5,
			VectorSize:   768,
			CacheSize:    256,
		},
		Database: DatabaseConfig{
			Driver: "pgdriver",
		},
		Azure: AzureConfig{
			LoginURL:      "https://login.microsoftonline.com",
			ManagementURL: "https://management.azure.com",
			LookbackDays:  30,
		},
		Agent: AgentConfig{
			MaxRetries:     2,
			RetryThreshold: 6,
		},
	}
}

// LoadConfig reads the yaml file at path on top of the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("DEMO_MODE"); ok {
		if strings.EqualFold(v, "true") {
			cfg.Mode = ModeDemo
		} else {
			cfg.Mode = ModeLive
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.Key = v
	}
	setIfPresent(&cfg.Azure.SubscriptionID, "AZURE_SUBSCRIPTION_ID")
	setIfPresent(&cfg.Azure.TenantID, "AZURE_TENANT_ID")
	setIfPresent(&cfg.Azure.ClientID, "AZURE_CLIENT_ID")
	setIfPresent(&cfg.Azure.ClientSecret, "AZURE_CLIENT_SECRET")
}

func setIfPresent(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
