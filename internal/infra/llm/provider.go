package llm

import "context"

// Provider is the model-agnostic interface implemented by every vendor adapter,
// so the application is never coupled to a specific LLM vendor.
//
// Adapters report failures as *ProviderFailure so callers can decide whether
// a retry makes sense.
type Provider interface {
	// ChatCompletion performs a non-streaming chat completion.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Embed computes dense vector representations for a batch of texts.
	Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error)

	// ModelInfo returns static metadata about the provider/model.
	ModelInfo() ModelMeta

	// HealthCheck returns nil if the provider is reachable and operational.
	HealthCheck(ctx context.Context) error
}
