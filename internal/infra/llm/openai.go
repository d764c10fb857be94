package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider against the OpenAI API or an Azure OpenAI
// deployment. Both speak the same wire protocol through go-openai.
type OpenAIProvider struct {
	client     *openai.Client
	name       string
	chatModel  string
	embedModel string
}

// NewOpenAIProvider creates a provider for api.openai.com (or a compatible
// endpoint when baseURL is set).
func NewOpenAIProvider(apiKey, baseURL, chatModel, embedModel string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(cfg),
		name:       "openai",
		chatModel:  chatModel,
		embedModel: embedModel,
	}, nil
}

// NewAzureProvider creates a provider for an Azure OpenAI resource.
// Chat requests are routed to deployment; embedding requests use embedModel
// as the deployment name.
func NewAzureProvider(apiKey, endpoint, apiVersion, deployment, embedModel string) (*OpenAIProvider, error) {
	if apiKey == "" || endpoint == "" {
		return nil, errors.New("azure: API key and endpoint are required")
	}
	cfg := openai.DefaultAzureConfig(apiKey, endpoint)
	if apiVersion != "" {
		cfg.APIVersion = apiVersion
	}
	cfg.AzureModelMapperFunc = func(model string) string {
		if model == "" {
			return deployment
		}
		return model
	}
	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(cfg),
		name:       "azure",
		chatModel:  deployment,
		embedModel: embedModel,
	}, nil
}

// ChatCompletion calls the chat completions endpoint.
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.chatModel
	}

	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})
	if err != nil {
		return nil, classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return nil, malformed("%s: no choices returned", p.name)
	}

	choice := resp.Choices[0]
	return &ChatResponse{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Tokens:     resp.Usage.TotalTokens,
	}, nil
}

// Embed calls the embeddings endpoint with the whole batch.
func (p *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	if len(req.Texts) == 0 {
		return &EmbedResponse{Embeddings: [][]float32{}}, nil
	}
	model := req.Model
	if model == "" {
		model = p.embedModel
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: req.Texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, classifyOpenAI(err)
	}
	if len(resp.Data) != len(req.Texts) {
		return nil, malformed("%s: %d embeddings for %d texts", p.name, len(resp.Data), len(req.Texts))
	}

	out := make([][]float32, len(req.Texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, malformed("%s: embedding index %d out of range", p.name, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return &EmbedResponse{Embeddings: out, Tokens: resp.Usage.TotalTokens}, nil
}

func (p *OpenAIProvider) ModelInfo() ModelMeta {
	return ModelMeta{ID: p.chatModel, Provider: p.name, MaxTokens: 128000}
}

// HealthCheck lists models, which needs a valid key but no quota.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("%s healthcheck: %w", p.name, classifyOpenAI(err))
	}
	return nil
}

func classifyOpenAI(err error) *ProviderFailure {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}
	return classifyTransport(err)
}
