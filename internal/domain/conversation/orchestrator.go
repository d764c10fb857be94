// Package conversation runs one question through retrieval, prompt assembly,
// generation and history persistence.
//
// Each Ask ends in exactly one terminal State. The user's turn is always
// stored before generation starts; a failed generation leaves no assistant
// turn behind.
package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matiasleandrokruk/hubrag/internal/domain/apperr"
	"github.com/matiasleandrokruk/hubrag/internal/domain/chat"
	"github.com/matiasleandrokruk/hubrag/internal/domain/knowledge"
	"github.com/matiasleandrokruk/hubrag/internal/domain/prompt"
	"github.com/matiasleandrokruk/hubrag/internal/infra/eventbus"
	"github.com/matiasleandrokruk/hubrag/internal/infra/llm"
	"github.com/matiasleandrokruk/hubrag/internal/infra/logging"
)

// State is the terminal state of one request.
type State string

const (
	Answered         State = "answered"
	AnsweredDegraded State = "answered_degraded"
	Failed           State = "failed"
)

// Warning tags attached to a degraded outcome.
const (
	WarningRetrievalUnavailable = "retrieval_unavailable"
	WarningHistoryNotSaved      = "history_not_saved"
)

// HistoryWarning is appended to the answer when the assistant turn could not be stored.
const HistoryWarning = "\n\nNote: Your message history could not be saved due to a database permission issue."

// Retriever finds passages for a question.
type Retriever interface {
	Search(ctx context.Context, query string, opts knowledge.SearchOptions) (knowledge.Result, error)
}

// Generator produces an answer for a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string, cfg llm.GenerationConfig) (string, error)
}

// Options tunes an Orchestrator. Zero timeouts disable the bound.
type Options struct {
	Search             knowledge.SearchOptions
	Generation         llm.GenerationConfig
	RetrievalTimeout   time.Duration
	GenerationTimeout  time.Duration
	PersistenceTimeout time.Duration
	HistoryWarning     string
}

// DefaultOptions returns MMR retrieval with k=6, fetch_k=20, lambda=0.5 and
// the default step timeouts.
func DefaultOptions() Options {
	return Options{
		Search:             knowledge.DefaultSearchOptions(),
		RetrievalTimeout:   10 * time.Second,
		GenerationTimeout:  60 * time.Second,
		PersistenceTimeout: 5 * time.Second,
		HistoryWarning:     HistoryWarning,
	}
}

// Budget is the longest Ask may run when every step uses its full timeout:
// retrieval, generation and the two history appends.
func (o Options) Budget() time.Duration {
	return o.RetrievalTimeout + o.GenerationTimeout + 2*o.PersistenceTimeout
}

// Deps are the collaborators of an Orchestrator. Retriever, Events and Log
// may be nil.
type Deps struct {
	Retriever Retriever
	Assembler prompt.Assembler
	Generator Generator
	History   chat.HistoryStore
	Events    eventbus.Publisher
	Log       *logging.Logger
}

// Request is one question from an authenticated user.
type Request struct {
	UserID   string
	Question string
	UseRAG   bool
}

// Outcome is the result of Ask. History is the full session on Answered,
// only the current user/assistant pair on a history failure, and whatever
// was stored on Failed.
type Outcome struct {
	ID       string
	UserID   string
	State    State
	Answer   string
	History  []chat.Turn
	Warnings []string
	Passages []knowledge.Passage
	Err      *apperr.Error
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	retriever Retriever
	assembler prompt.Assembler
	generator Generator
	history   chat.HistoryStore
	events    eventbus.Publisher
	log       *logging.Logger
	opts      Options
	now       func() time.Time
}

// New wires an Orchestrator.
func New(d Deps, opts Options) *Orchestrator {
	if d.Log == nil {
		d.Log = logging.Nop()
	}
	if opts.HistoryWarning == "" {
		opts.HistoryWarning = HistoryWarning
	}
	return &Orchestrator{
		retriever: d.Retriever,
		assembler: d.Assembler,
		generator: d.Generator,
		history:   d.History,
		events:    d.Events,
		log:       d.Log,
		opts:      opts,
		now:       time.Now,
	}
}

// Ask answers one question. On Failed the returned error is the outcome's
// *apperr.Error; the outcome itself is always non-nil.
func (o *Orchestrator) Ask(ctx context.Context, req Request) (*Outcome, error) {
	ctx, span := o.log.StartSpan(ctx, "conversation.Ask")
	defer span.End()

	out := &Outcome{ID: uuid.NewString(), UserID: req.UserID}
	defer o.finish(out)

	if strings.TrimSpace(req.UserID) == "" {
		return o.failed(out, apperr.New(apperr.Unauthenticated, "a user identity is required", nil))
	}
	if strings.TrimSpace(req.Question) == "" {
		return o.failed(out, apperr.New(apperr.InvalidRequest, "message must not be empty", nil))
	}

	// The user turn is foundational: without it the exchange cannot proceed.
	session, err := o.appendTurn(ctx, req.UserID, chat.Turn{Role: chat.RoleUser, Content: req.Question})
	if err != nil {
		return o.failed(out, persistenceErr("could not save your message", err))
	}
	userTurn, _ := session.Last()
	out.History = session.Turns

	var passages []knowledge.Passage
	if req.UseRAG {
		passages, err = o.retrieve(ctx, req.Question)
		if err != nil {
			out.Warnings = append(out.Warnings, WarningRetrievalUnavailable)
			o.log.Log().Warn().
				Str("user_id", req.UserID).
				Err(err).
				Msg("retrieval unavailable, answering without context")
		}
	}

	text, used := o.assembler.Build(passages, req.Question)
	out.Passages = used

	answer, err := o.generate(ctx, text)
	if err != nil {
		return o.failed(out, apperr.New(apperr.GenerationError, "the model could not produce an answer", err))
	}

	assistant := chat.Turn{Role: chat.RoleAssistant, Content: answer}
	session, err = o.appendTurn(ctx, req.UserID, assistant)
	if err != nil {
		// No retry: the answer is returned with a warning and only this exchange.
		o.log.Log().Warn().
			Str("user_id", req.UserID).
			Err(err).
			Msg("assistant turn not saved")
		if assistant.CreatedAt = o.now().UTC(); assistant.CreatedAt.Before(userTurn.CreatedAt) {
			assistant.CreatedAt = userTurn.CreatedAt
		}
		out.Warnings = append(out.Warnings, WarningHistoryNotSaved)
		out.Answer = answer + o.opts.HistoryWarning
		out.History = []chat.Turn{userTurn, assistant}
		out.State = AnsweredDegraded
		return out, nil
	}

	out.Answer = answer
	out.History = session.Turns
	out.State = Answered
	if len(out.Warnings) > 0 {
		out.State = AnsweredDegraded
	}
	return out, nil
}

// History returns the stored session of userID.
func (o *Orchestrator) History(ctx context.Context, userID string) (chat.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return chat.Session{}, apperr.New(apperr.Unauthenticated, "a user identity is required", nil)
	}
	ctx, cancel := withTimeout(ctx, o.opts.PersistenceTimeout)
	defer cancel()
	session, err := o.history.Read(ctx, userID)
	if err != nil {
		return chat.Session{}, persistenceErr("could not load chat history", err)
	}
	return session, nil
}

func (o *Orchestrator) appendTurn(ctx context.Context, userID string, t chat.Turn) (chat.Session, error) {
	ctx, cancel := withTimeout(ctx, o.opts.PersistenceTimeout)
	defer cancel()
	return o.history.Append(ctx, userID, t)
}

func (o *Orchestrator) retrieve(ctx context.Context, question string) ([]knowledge.Passage, error) {
	if o.retriever == nil {
		return nil, knowledge.ErrIndexUnavailable
	}
	ctx, cancel := withTimeout(ctx, o.opts.RetrievalTimeout)
	defer cancel()
	return o.retriever.Search(ctx, question, o.opts.Search)
}

func (o *Orchestrator) generate(ctx context.Context, text string) (string, error) {
	ctx, cancel := withTimeout(ctx, o.opts.GenerationTimeout)
	defer cancel()
	return o.generator.Complete(ctx, text, o.opts.Generation)
}

func (o *Orchestrator) failed(out *Outcome, e *apperr.Error) (*Outcome, error) {
	out.State = Failed
	out.Err = e
	return out, e
}

// finish logs the terminal state and publishes it.
func (o *Orchestrator) finish(out *Outcome) {
	switch out.State {
	case Answered:
		o.log.Log().Info().
			Str("user_id", out.UserID).
			Str("state", string(out.State)).
			Int("passages", len(out.Passages)).
			Msg("question answered")
	case AnsweredDegraded:
		o.log.Log().Warn().
			Str("user_id", out.UserID).
			Str("state", string(out.State)).
			Str("warnings", strings.Join(out.Warnings, ",")).
			Msg("question answered with degradation")
	default:
		o.log.Log().Error().
			Str("user_id", out.UserID).
			Str("state", string(out.State)).
			Str("code", string(out.Err.Code)).
			Err(out.Err).
			Msg("question failed")
	}
	if o.events != nil {
		o.events.Publish(eventbus.TopicConversationOutcome, OutcomeEvent{
			ID:       out.ID,
			UserID:   out.UserID,
			State:    out.State,
			Warnings: append([]string(nil), out.Warnings...),
			Passages: len(out.Passages),
			Code:     codeOf(out.Err),
		})
	}
}

// OutcomeEvent is the payload published on eventbus.TopicConversationOutcome.
type OutcomeEvent struct {
	ID       string
	UserID   string
	State    State
	Warnings []string
	Passages int
	Code     apperr.Code
}

func codeOf(e *apperr.Error) apperr.Code {
	if e == nil {
		return ""
	}
	return e.Code
}

func persistenceErr(msg string, err error) *apperr.Error {
	switch {
	case errors.Is(err, chat.ErrPermissionDenied):
		return apperr.New(apperr.PermissionDenied, msg, err)
	case errors.Is(err, chat.ErrInvalidTurn):
		return apperr.New(apperr.InvalidTurn, msg, err)
	default:
		return apperr.New(apperr.PersistenceError, msg, err)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
