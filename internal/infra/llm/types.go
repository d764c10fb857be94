// Package llm defines the model-agnostic provider abstraction, its adapters
// (OpenAI/Azure, Ollama, Gemini) and the GenerationClient that wraps a provider
// with failure classification and bounded retry.
package llm

// Message represents a single turn in a conversation (role + content).
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// ChatRequest is the input for a non-streaming chat completion.
type ChatRequest struct {
	// Model overrides the provider default when non-empty.
	Model       string
	Messages    []Message
	Temperature float32
	TopP        float32
	MaxTokens   int
}

// ChatResponse is the output from a non-streaming chat completion.
type ChatResponse struct {
	Content    string // The assistant message text.
	StopReason string // "stop" | "length" | provider specific
	Tokens     int    // Total tokens consumed (prompt + completion).
}

// EmbedRequest is the input for a batch embedding call.
type EmbedRequest struct {
	// Model overrides the provider default when non-empty.
	Model string
	Texts []string
}

// EmbedResponse is the output from a batch embedding call.
// Embeddings[i] corresponds to Texts[i] in the request.
type EmbedResponse struct {
	Embeddings [][]float32
	Tokens     int
}

// ModelMeta describes the model / provider identity.
type ModelMeta struct {
	ID        string // e.g. "gpt-4o-mini", "llama3.2:3b"
	Provider  string // e.g. "ollama", "openai"
	MaxTokens int
}

// Decoding defaults used when a GenerationConfig leaves a field unset.
const (
	DefaultTemperature float32 = 1.0
	DefaultTopP        float32 = 1.0
	DefaultMaxTokens           = 4096
)

// GenerationConfig carries the decoding parameters of one answer.
// Zero values mean "use the default".
type GenerationConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
	TopP        float32
}

// WithDefaults returns a copy with unset fields filled in.
func (c GenerationConfig) WithDefaults() GenerationConfig {
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.TopP == 0 {
		c.TopP = DefaultTopP
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	return c
}
