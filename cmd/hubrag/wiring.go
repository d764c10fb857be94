package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/matiasleandrokruk/hubrag/internal/domain/chat"
	"github.com/matiasleandrokruk/hubrag/internal/domain/conversation"
	"github.com/matiasleandrokruk/hubrag/internal/domain/knowledge"
	"github.com/matiasleandrokruk/hubrag/internal/domain/prompt"
	"github.com/matiasleandrokruk/hubrag/internal/infra/config"
	"github.com/matiasleandrokruk/hubrag/internal/infra/eventbus"
	"github.com/matiasleandrokruk/hubrag/internal/infra/llm"
	"github.com/matiasleandrokruk/hubrag/internal/infra/logging"
	"github.com/matiasleandrokruk/hubrag/internal/infra/sqlite"
)

// openDB opens the configured database, creating its directory first.
func openDB(ctx context.Context, path string) (*sql.DB, error) {
	if path != sqlite.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	return sqlite.NewDB(ctx, path)
}

// providers holds the chat and embedding providers and whatever must be
// closed on shutdown.
type providers struct {
	chat    llm.Provider
	embed   llm.Provider
	closers []func() error
}

func (p *providers) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// buildProviders constructs the configured chat and embedding providers
// through an llm.Router, building each distinct key once.
func buildProviders(ctx context.Context, cfg config.LLMConfig) (*providers, error) {
	out := &providers{}
	router := llm.NewRouter(nil, cfg.Provider)
	for _, key := range []string{cfg.Provider, cfg.EmbedProvider} {
		if _, err := router.Lookup(key); err == nil {
			continue
		}
		p, closeFn, err := newProvider(ctx, key, cfg)
		if err != nil {
			out.Close() //nolint:errcheck
			return nil, err
		}
		router.Register(key, p)
		if closeFn != nil {
			out.closers = append(out.closers, closeFn)
		}
	}

	var err error
	if out.chat, err = router.Route(ctx); err == nil {
		out.embed, err = router.Lookup(cfg.EmbedProvider)
	}
	if err != nil {
		out.Close() //nolint:errcheck
		return nil, err
	}
	return out, nil
}

func newProvider(ctx context.Context, key string, cfg config.LLMConfig) (llm.Provider, func() error, error) {
	switch key {
	case "openai":
		p, err := llm.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIChatModel, cfg.OpenAIEmbedModel)
		return p, nil, err
	case "azure":
		p, err := llm.NewAzureProvider(cfg.AzureAPIKey, cfg.AzureEndpoint, cfg.AzureAPIVersion, cfg.AzureDeployment, cfg.OpenAIEmbedModel)
		return p, nil, err
	case "ollama":
		p, err := llm.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaChatModel, cfg.OllamaEmbedModel)
		return p, nil, err
	case "gemini":
		p, err := llm.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiChatModel, cfg.GeminiEmbedModel)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", key)
	}
}

// buildIndex returns the configured vector index.
func buildIndex(cfg config.RetrievalConfig, db *sql.DB) knowledge.VectorIndex {
	if cfg.Index == "qdrant" {
		return knowledge.NewQdrantIndex(knowledge.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			Timeout:    cfg.Timeout(),
		})
	}
	return knowledge.NewSQLiteIndex(db)
}

// orchestratorParts are the runtime pieces behind a conversation.Orchestrator.
type orchestratorParts struct {
	index   knowledge.VectorIndex
	history chat.HistoryStore
	events  eventbus.Publisher
}

const (
	// generationSlack covers adapter overhead on top of the retry schedule.
	generationSlack = 5 * time.Second
	// requestSlack covers routing and response encoding around Ask.
	requestSlack = 5 * time.Second
)

func retryPolicy(cfg config.LLMConfig) llm.RetryPolicy {
	return llm.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Base:        cfg.BackoffBase(),
		Max:         llm.DefaultRetryPolicy().Max,
	}
}

// conversationOptions maps configuration onto orchestrator options. The
// generation timeout spans the whole retry schedule.
func conversationOptions(cfg config.Config) conversation.Options {
	opts := conversation.DefaultOptions()
	opts.Search = knowledge.SearchOptions{
		Mode:       knowledge.MMR,
		K:          cfg.Retrieval.K,
		FetchK:     cfg.Retrieval.FetchK,
		LambdaMult: cfg.Retrieval.LambdaMult,
	}
	opts.Generation = llm.GenerationConfig{
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
		MaxTokens:   cfg.LLM.MaxTokens,
	}
	opts.RetrievalTimeout = cfg.Retrieval.Timeout()
	opts.PersistenceTimeout = cfg.History.Timeout()
	opts.GenerationTimeout = retryPolicy(cfg.LLM).Budget(cfg.LLM.Timeout()) + generationSlack
	return opts
}

// requestTimeout bounds one HTTP request. It never undercuts the conversation
// budget, so a retry schedule or the final history append is not cut short by
// the router deadline.
func requestTimeout(cfg config.Config, opts conversation.Options) time.Duration {
	return max(cfg.Server.WriteTimeout(), opts.Budget()+requestSlack)
}

func newOrchestrator(cfg config.Config, p *providers, parts orchestratorParts, opts conversation.Options, log *logging.Logger) *conversation.Orchestrator {
	gen := llm.NewGenerationClient(p.chat, llm.ClientOptions{
		Retry:          retryPolicy(cfg.LLM),
		AttemptTimeout: cfg.LLM.Timeout(),
	}, log)

	return conversation.New(conversation.Deps{
		Retriever: knowledge.NewRetriever(parts.index, p.embed, log),
		Assembler: prompt.Assembler{Instruction: cfg.Retrieval.Instruction, MaxChars: cfg.Retrieval.MaxPromptChars},
		Generator: gen,
		History:   parts.history,
		Events:    parts.events,
		Log:       log,
	}, opts)
}

// consumeOutcomes logs every published outcome at debug level until ch closes.
func consumeOutcomes(ch <-chan eventbus.Event, log *logging.Logger) {
	for evt := range ch {
		o, ok := evt.Payload.(conversation.OutcomeEvent)
		if !ok {
			continue
		}
		log.Log().Debug().
			Str("outcome_id", o.ID).
			Str("user_id", o.UserID).
			Str("state", string(o.State)).
			Int("passages", o.Passages).
			Msg("conversation outcome")
	}
}
