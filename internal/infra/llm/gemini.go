package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
)

// GeminiProvider implements Provider against the Google Gemini API.
type GeminiProvider struct {
	client     *genai.Client
	chatModel  string
	embedModel string
}

// NewGeminiProvider dials the Gemini API with an API key.
func NewGeminiProvider(ctx context.Context, apiKey, chatModel, embedModel string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiProvider{client: client, chatModel: chatModel, embedModel: embedModel}, nil
}

// Close releases the underlying gRPC connection.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// ChatCompletion sends system messages as the system instruction and the
// remaining messages as the content of one GenerateContent call.
func (p *GeminiProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	name := req.Model
	if name == "" {
		name = p.chatModel
	}
	model := p.client.GenerativeModel(name)
	if req.Temperature != 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.TopP != 0 {
		model.SetTopP(req.TopP)
	}
	if req.MaxTokens != 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	var parts []genai.Part
	for _, m := range req.Messages {
		if m.Role == "system" {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(m.Content)}}
			continue
		}
		parts = append(parts, genai.Text(m.Content))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, classifyGemini(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, malformed("gemini: no candidates returned")
	}

	cand := resp.Candidates[0]
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	out := &ChatResponse{Content: b.String(), StopReason: cand.FinishReason.String()}
	if resp.UsageMetadata != nil {
		out.Tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

// Embed embeds each text with the configured embedding model.
func (p *GeminiProvider) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	name := req.Model
	if name == "" {
		name = p.embedModel
	}
	em := p.client.EmbeddingModel(name)

	out := make([][]float32, 0, len(req.Texts))
	for _, text := range req.Texts {
		res, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, classifyGemini(err)
		}
		if res.Embedding == nil {
			return nil, malformed("gemini: no embedding returned")
		}
		out = append(out, res.Embedding.Values)
	}
	return &EmbedResponse{Embeddings: out}, nil
}

func (p *GeminiProvider) ModelInfo() ModelMeta {
	return ModelMeta{ID: p.chatModel, Provider: "gemini", MaxTokens: 8192}
}

// HealthCheck lists models; one page is enough to prove the key works.
func (p *GeminiProvider) HealthCheck(ctx context.Context) error {
	it := p.client.ListModels(ctx)
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("gemini healthcheck: %w", classifyGemini(err))
	}
	return nil
}

func classifyGemini(err error) *ProviderFailure {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &ProviderFailure{Class: ProviderError, Err: err}
	}

	var ae *apierror.APIError
	if !errors.As(err, &ae) {
		return classifyTransport(err)
	}
	if status := ae.HTTPCode(); status > 0 {
		return classifyStatus(status, err)
	}
	switch ae.GRPCStatus().Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return &ProviderFailure{Class: AuthFailure, Err: err}
	case codes.ResourceExhausted:
		return &ProviderFailure{Class: RateLimited, Retryable: true, Err: err}
	case codes.DeadlineExceeded:
		return &ProviderFailure{Class: Timeout, Retryable: true, Err: err}
	case codes.Unavailable, codes.Internal, codes.Unknown, codes.Aborted:
		return &ProviderFailure{Class: ProviderError, Retryable: true, Err: err}
	default:
		return &ProviderFailure{Class: ProviderError, Err: err}
	}
}
