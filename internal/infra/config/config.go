// Package config provides application-wide configuration.
// Values are resolved in three layers: built-in defaults, an optional YAML file,
// then environment variables (a local .env file is loaded first when present).
// All fields except the JWT secret have safe defaults so the binary runs locally
// without any setup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultInstruction is the retrieval-augmented instruction block prepended to
// every prompt that carries retrieved context.
const DefaultInstruction = "You are an advanced AI assistant using retrieval-augmented generation to provide detailed and accurate responses. " +
	"Use the following pieces of retrieved context from Andrew Huberman's teachings to answer the question. " +
	"If you don't know the answer, say that you don't know.\n\n"

// Config holds runtime configuration for hubrag.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	History   HistoryConfig   `yaml:"history"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host             string   `yaml:"host"`               // HUBRAG_HOST
	Port             int      `yaml:"port"`               // HUBRAG_PORT
	ReadTimeoutSecs  int      `yaml:"read_timeout_secs"`  // HUBRAG_READ_TIMEOUT_SECS
	WriteTimeoutSecs int      `yaml:"write_timeout_secs"` // HUBRAG_WRITE_TIMEOUT_SECS
	AllowedOrigins   []string `yaml:"allowed_origins"`    // HUBRAG_ALLOWED_ORIGINS (comma separated)
}

// DatabaseConfig points at the SQLite file backing history, accounts and the passage index.
type DatabaseConfig struct {
	Path string `yaml:"path"` // HUBRAG_DB_PATH
}

// AuthConfig configures bearer token issuance and verification.
type AuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret"`       // JWT_SECRET
	JWTExpiryHours int    `yaml:"jwt_expiry_hours"` // JWT_EXPIRY
}

// LLMConfig selects the generation and embedding providers.
type LLMConfig struct {
	Provider      string `yaml:"provider"`       // LLM_PROVIDER: openai, azure, ollama or gemini
	EmbedProvider string `yaml:"embed_provider"` // EMBED_PROVIDER, defaults to Provider

	OpenAIAPIKey     string `yaml:"openai_api_key"`     // OPENAI_API_KEY
	OpenAIBaseURL    string `yaml:"openai_base_url"`    // OPENAI_BASE_URL
	OpenAIChatModel  string `yaml:"openai_chat_model"`  // OPENAI_CHAT_MODEL
	OpenAIEmbedModel string `yaml:"openai_embed_model"` // OPENAI_EMBED_MODEL

	AzureAPIKey     string `yaml:"azure_api_key"`     // AZURE_API_KEY
	AzureEndpoint   string `yaml:"azure_endpoint"`    // AZURE_ENDPOINT
	AzureAPIVersion string `yaml:"azure_api_version"` // AZURE_API_VERSION
	AzureDeployment string `yaml:"azure_deployment"`  // AZURE_DEPLOYMENT

	OllamaBaseURL    string `yaml:"ollama_base_url"`    // OLLAMA_BASE_URL
	OllamaChatModel  string `yaml:"ollama_chat_model"`  // OLLAMA_CHAT_MODEL
	OllamaEmbedModel string `yaml:"ollama_embed_model"` // OLLAMA_MODEL

	GeminiAPIKey     string `yaml:"gemini_api_key"`     // GEMINI_API_KEY
	GeminiChatModel  string `yaml:"gemini_chat_model"`  // GEMINI_CHAT_MODEL
	GeminiEmbedModel string `yaml:"gemini_embed_model"` // GEMINI_EMBED_MODEL

	Temperature float32 `yaml:"temperature"` // LLM_TEMPERATURE
	TopP        float32 `yaml:"top_p"`       // LLM_TOP_P
	MaxTokens   int     `yaml:"max_tokens"`  // LLM_MAX_TOKENS

	TimeoutSecs       int `yaml:"timeout_secs"`        // LLM_TIMEOUT_SECS, per attempt
	MaxAttempts       int `yaml:"max_attempts"`        // LLM_MAX_ATTEMPTS
	BackoffBaseMillis int `yaml:"backoff_base_millis"` // LLM_BACKOFF_BASE_MS
}

// RetrievalConfig configures the vector index and the MMR search defaults.
type RetrievalConfig struct {
	Index            string  `yaml:"index"`             // VECTOR_INDEX: sqlite or qdrant
	QdrantURL        string  `yaml:"qdrant_url"`        // QDRANT_URL
	QdrantAPIKey     string  `yaml:"qdrant_api_key"`    // QDRANT_API_KEY
	QdrantCollection string  `yaml:"qdrant_collection"` // QDRANT_COLLECTION
	K                int     `yaml:"k"`                 // RETRIEVAL_K
	FetchK           int     `yaml:"fetch_k"`           // RETRIEVAL_FETCH_K
	LambdaMult       float64 `yaml:"lambda_mult"`       // RETRIEVAL_LAMBDA
	TimeoutSecs      int     `yaml:"timeout_secs"`      // RETRIEVAL_TIMEOUT_SECS
	Instruction      string  `yaml:"instruction"`       // RAG_INSTRUCTION
	MaxPromptChars   int     `yaml:"max_prompt_chars"`  // RAG_MAX_PROMPT_CHARS, 0 disables truncation
}

// HistoryConfig configures the chat history store.
type HistoryConfig struct {
	TimeoutSecs int `yaml:"timeout_secs"` // HISTORY_TIMEOUT_SECS
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Format  string `yaml:"format"`  // LOG_FORMAT: json or console
	Verbose bool   `yaml:"verbose"` // LOG_VERBOSE
}

// ReadTimeout is the HTTP server read timeout.
func (c ServerConfig) ReadTimeout() time.Duration { return secs(c.ReadTimeoutSecs) }

// WriteTimeout is the HTTP server write timeout.
func (c ServerConfig) WriteTimeout() time.Duration { return secs(c.WriteTimeoutSecs) }

// Timeout bounds a single generation attempt.
func (c LLMConfig) Timeout() time.Duration { return secs(c.TimeoutSecs) }

// BackoffBase is the first retry delay of the generation client.
func (c LLMConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMillis) * time.Millisecond
}

// Timeout bounds a single retrieval call.
func (c RetrievalConfig) Timeout() time.Duration { return secs(c.TimeoutSecs) }

// Timeout bounds a single history read or write.
func (c HistoryConfig) Timeout() time.Duration { return secs(c.TimeoutSecs) }

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

var knownProviders = map[string]bool{"openai": true, "azure": true, "ollama": true, "gemini": true}

// Default returns the built-in configuration.
// Decoding defaults match the values the service has always shipped with.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeoutSecs:  15,
			WriteTimeoutSecs: 90,
			AllowedOrigins:   []string{"http://localhost:3000", "https://hubermanrag.web.app"},
		},
		Database: DatabaseConfig{Path: "./data/hubrag.db"},
		Auth:     AuthConfig{JWTExpiryHours: 24},
		LLM: LLMConfig{
			Provider:          "ollama",
			OpenAIChatModel:   "gpt-4o-mini",
			OpenAIEmbedModel:  "text-embedding-3-large",
			AzureAPIVersion:   "2024-12-01-preview",
			AzureDeployment:   "gpt-4o-mini",
			OllamaBaseURL:     "http://localhost:11434",
			OllamaChatModel:   "llama3.2:3b",
			OllamaEmbedModel:  "nomic-embed-text",
			GeminiChatModel:   "gemini-1.5-flash",
			GeminiEmbedModel:  "text-embedding-004",
			Temperature:       1.0,
			TopP:              1.0,
			MaxTokens:         4096,
			TimeoutSecs:       60,
			MaxAttempts:       3,
			BackoffBaseMillis: 500,
		},
		Retrieval: RetrievalConfig{
			Index:            "sqlite",
			QdrantURL:        "http://localhost:6333",
			QdrantCollection: "huberman_lab",
			K:                6,
			FetchK:           20,
			LambdaMult:       0.5,
			TimeoutSecs:      10,
			Instruction:      DefaultInstruction,
		},
		History: HistoryConfig{TimeoutSecs: 5},
		Log:     LogConfig{Format: "json"},
	}
}

// Load resolves the configuration: defaults, then the YAML file at path (if
// path is non-empty and the file exists), then environment variables.
func Load(path string) (Config, error) {
	// .env is optional; existing process env always wins over it.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// mergeFile overlays the YAML document at path onto cfg.
// A missing file is not an error.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %q: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = envOr("HUBRAG_HOST", cfg.Server.Host)
	cfg.Server.Port = envIntOr("HUBRAG_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeoutSecs = envIntOr("HUBRAG_READ_TIMEOUT_SECS", cfg.Server.ReadTimeoutSecs)
	cfg.Server.WriteTimeoutSecs = envIntOr("HUBRAG_WRITE_TIMEOUT_SECS", cfg.Server.WriteTimeoutSecs)
	if v := os.Getenv("HUBRAG_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}

	cfg.Database.Path = envOr("HUBRAG_DB_PATH", cfg.Database.Path)

	cfg.Auth.JWTSecret = envOr("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTExpiryHours = envIntOr("JWT_EXPIRY", cfg.Auth.JWTExpiryHours)

	l := &cfg.LLM
	l.Provider = envOr("LLM_PROVIDER", l.Provider)
	l.EmbedProvider = envOr("EMBED_PROVIDER", l.EmbedProvider)
	l.OpenAIAPIKey = envOr("OPENAI_API_KEY", l.OpenAIAPIKey)
	l.OpenAIBaseURL = envOr("OPENAI_BASE_URL", l.OpenAIBaseURL)
	l.OpenAIChatModel = envOr("OPENAI_CHAT_MODEL", l.OpenAIChatModel)
	l.OpenAIEmbedModel = envOr("OPENAI_EMBED_MODEL", l.OpenAIEmbedModel)
	l.AzureAPIKey = envOr("AZURE_API_KEY", l.AzureAPIKey)
	l.AzureEndpoint = envOr("AZURE_ENDPOINT", l.AzureEndpoint)
	l.AzureAPIVersion = envOr("AZURE_API_VERSION", l.AzureAPIVersion)
	l.AzureDeployment = envOr("AZURE_DEPLOYMENT", l.AzureDeployment)
	l.OllamaBaseURL = envOr("OLLAMA_BASE_URL", l.OllamaBaseURL)
	l.OllamaChatModel = envOr("OLLAMA_CHAT_MODEL", l.OllamaChatModel)
	l.OllamaEmbedModel = envOr("OLLAMA_MODEL", l.OllamaEmbedModel)
	l.GeminiAPIKey = envOr("GEMINI_API_KEY", l.GeminiAPIKey)
	l.GeminiChatModel = envOr("GEMINI_CHAT_MODEL", l.GeminiChatModel)
	l.GeminiEmbedModel = envOr("GEMINI_EMBED_MODEL", l.GeminiEmbedModel)
	l.Temperature = envFloat32Or("LLM_TEMPERATURE", l.Temperature)
	l.TopP = envFloat32Or("LLM_TOP_P", l.TopP)
	l.MaxTokens = envIntOr("LLM_MAX_TOKENS", l.MaxTokens)
	l.TimeoutSecs = envIntOr("LLM_TIMEOUT_SECS", l.TimeoutSecs)
	l.MaxAttempts = envIntOr("LLM_MAX_ATTEMPTS", l.MaxAttempts)
	l.BackoffBaseMillis = envIntOr("LLM_BACKOFF_BASE_MS", l.BackoffBaseMillis)
	if l.EmbedProvider == "" {
		l.EmbedProvider = l.Provider
	}

	r := &cfg.Retrieval
	r.Index = envOr("VECTOR_INDEX", r.Index)
	r.QdrantURL = envOr("QDRANT_URL", r.QdrantURL)
	r.QdrantAPIKey = envOr("QDRANT_API_KEY", r.QdrantAPIKey)
	r.QdrantCollection = envOr("QDRANT_COLLECTION", r.QdrantCollection)
	r.K = envIntOr("RETRIEVAL_K", r.K)
	r.FetchK = envIntOr("RETRIEVAL_FETCH_K", r.FetchK)
	r.LambdaMult = envFloat64Or("RETRIEVAL_LAMBDA", r.LambdaMult)
	r.TimeoutSecs = envIntOr("RETRIEVAL_TIMEOUT_SECS", r.TimeoutSecs)
	r.Instruction = envOr("RAG_INSTRUCTION", r.Instruction)
	r.MaxPromptChars = envIntOr("RAG_MAX_PROMPT_CHARS", r.MaxPromptChars)

	cfg.History.TimeoutSecs = envIntOr("HISTORY_TIMEOUT_SECS", cfg.History.TimeoutSecs)

	cfg.Log.Format = envOr("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.Verbose = envBoolOr("LOG_VERBOSE", cfg.Log.Verbose)
}

// Validate reports configuration that would make the server unusable.
func (c Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set")
	}
	if !knownProviders[c.LLM.Provider] {
		return fmt.Errorf("config: unknown LLM provider %q", c.LLM.Provider)
	}
	if !knownProviders[c.LLM.EmbedProvider] {
		return fmt.Errorf("config: unknown embed provider %q", c.LLM.EmbedProvider)
	}
	if c.Retrieval.Index != "sqlite" && c.Retrieval.Index != "qdrant" {
		return fmt.Errorf("config: unknown vector index %q", c.Retrieval.Index)
	}
	if c.Retrieval.K <= 0 || c.Retrieval.FetchK < c.Retrieval.K {
		return fmt.Errorf("config: retrieval requires 0 < k <= fetch_k (k=%d fetch_k=%d)", c.Retrieval.K, c.Retrieval.FetchK)
	}
	if c.Retrieval.LambdaMult < 0 || c.Retrieval.LambdaMult > 1 {
		return fmt.Errorf("config: lambda_mult %.2f outside [0,1]", c.Retrieval.LambdaMult)
	}
	return nil
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat64Or(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envFloat32Or(key string, fallback float32) float32 {
	return float32(envFloat64Or(key, float64(fallback)))
}

func envBoolOr(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
