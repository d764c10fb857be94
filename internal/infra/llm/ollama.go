package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaProvider implements Provider against a running Ollama instance.
type OllamaProvider struct {
	client     *api.Client
	chatModel  string
	embedModel string
}

// NewOllamaProvider creates an OllamaProvider for baseURL (e.g. http://localhost:11434).
// Request deadlines come from the caller's context.
func NewOllamaProvider(baseURL, chatModel, embedModel string) (*OllamaProvider, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ollama: invalid base URL %q", baseURL)
	}
	return &OllamaProvider{
		client:     api.NewClient(u, http.DefaultClient),
		chatModel:  chatModel,
		embedModel: embedModel,
	}, nil
}

// Embed computes embeddings one text at a time; /api/embeddings takes a single prompt.
func (p *OllamaProvider) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	if len(req.Texts) == 0 {
		return &EmbedResponse{Embeddings: [][]float32{}}, nil
	}
	model := req.Model
	if model == "" {
		model = p.embedModel
	}

	embeddings := make([][]float32, 0, len(req.Texts))
	for _, text := range req.Texts {
		resp, err := p.client.Embeddings(ctx, &api.EmbeddingRequest{Model: model, Prompt: text})
		if err != nil {
			return nil, classifyOllama(err)
		}
		if len(resp.Embedding) == 0 {
			return nil, malformed("ollama: empty embedding")
		}
		vec := make([]float32, len(resp.Embedding))
		for i, v := range resp.Embedding {
			vec[i] = float32(v)
		}
		embeddings = append(embeddings, vec)
	}
	return &EmbedResponse{Embeddings: embeddings}, nil
}

// ChatCompletion performs a non-streaming chat via /api/chat.
func (p *OllamaProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.chatModel
	}

	msgs := make([]api.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = api.Message{Role: m.Role, Content: m.Content}
	}

	var (
		content strings.Builder
		out     ChatResponse
	)
	err := p.client.Chat(ctx, &api.ChatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   new(bool),
		Options:  buildChatOptions(req),
	}, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Done {
			out.StopReason = resp.DoneReason
			out.Tokens = resp.EvalCount + resp.PromptEvalCount
		}
		return nil
	})
	if err != nil {
		return nil, classifyOllama(err)
	}
	out.Content = content.String()
	return &out, nil
}

// buildChatOptions converts ChatRequest fields into the Ollama options map.
func buildChatOptions(req ChatRequest) map[string]any {
	opts := map[string]any{}
	if req.Temperature != 0 {
		opts["temperature"] = req.Temperature
	}
	if req.TopP != 0 {
		opts["top_p"] = req.TopP
	}
	if req.MaxTokens != 0 {
		opts["num_predict"] = req.MaxTokens
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

func (p *OllamaProvider) ModelInfo() ModelMeta {
	return ModelMeta{ID: p.chatModel, Provider: "ollama", MaxTokens: 4096}
}

// HealthCheck returns nil if the Ollama server answers.
func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	if err := p.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama healthcheck: %w", err)
	}
	return nil
}

func classifyOllama(err error) *ProviderFailure {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr.StatusCode, err)
	}
	return classifyTransport(err)
}
