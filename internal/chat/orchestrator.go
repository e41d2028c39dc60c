package chat

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/suPer8Hu/providentia/internal/ai"
	"github.com/suPer8Hu/providentia/internal/auth"
	"github.com/suPer8Hu/providentia/internal/common"
	"github.com/suPer8Hu/providentia/internal/rag"
	"github.com/suPer8Hu/providentia/internal/ratelimit"
)

const maxQuestionLen = 1000

// Request enters the pipeline untouched and is discarded once the
// response is produced.
type Request struct {
	Credential string
	Question   string
	ReceivedAt time.Time
}

// Response is produced exactly once per request that passed
// authentication and admission. Context keeps retrieval-rank order.
type Response struct {
	InteractionID string
	Answer        string
	Context       []rag.Passage
	GeneratedAt   time.Time
	Recorded      bool
}

// Policy holds the retry and timeout knobs of the pipeline.
type Policy struct {
	RetrievalRetries  int
	GenerationRetries int
	BackoffBase       time.Duration
	RetrieveTimeout   time.Duration
	GenerateTimeout   time.Duration
	RecordTimeout     time.Duration
	RequestBudget     time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.BackoffBase <= 0 {
		p.BackoffBase = 250 * time.Millisecond
	}
	if p.RetrieveTimeout <= 0 {
		p.RetrieveTimeout = 10 * time.Second
	}
	if p.GenerateTimeout <= 0 {
		p.GenerateTimeout = 30 * time.Second
	}
	if p.RecordTimeout <= 0 {
		p.RecordTimeout = 5 * time.Second
	}
	if p.RequestBudget <= 0 {
		p.RequestBudget = 60 * time.Second
	}
	return p
}

// Orchestrator sequences one chat request through verification,
// admission, retrieval, generation and recording. Collaborators are
// narrow capability contracts so tests can inject failures
// deterministically. Authentication runs before the rate-limit check.
type Orchestrator struct {
	verifier  auth.Verifier
	limiter   ratelimit.Limiter
	retriever rag.Retriever
	generator ai.Generator
	recorder  Recorder
	policy    Policy
}

func NewOrchestrator(
	verifier auth.Verifier,
	limiter ratelimit.Limiter,
	retriever rag.Retriever,
	generator ai.Generator,
	recorder Recorder,
	policy Policy,
) *Orchestrator {
	return &Orchestrator{
		verifier:  verifier,
		limiter:   limiter,
		retriever: retriever,
		generator: generator,
		recorder:  recorder,
		policy:    policy.withDefaults(),
	}
}

// Handle runs the full pipeline. On failure the returned error is an
// *Abort carrying the state reached and a stable reason code.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, o.policy.RequestBudget)
	defer cancel()

	state := StateReceived

	question := strings.TrimSpace(req.Question)
	if question == "" || len(question) > maxQuestionLen {
		return nil, o.abort(state, ReasonInvalidQuestion, nil)
	}

	// Received -> Authenticated
	principal, err := o.verifier.Verify(ctx, req.Credential)
	if err != nil {
		return nil, o.abort(state, ReasonUnauthenticated, err)
	}
	state = o.advance(state, StateAuthenticated)

	// Authenticated -> Admitted
	principalKey := strconv.FormatUint(principal.UserID, 10)
	decision, err := o.limiter.Admit(ctx, principalKey)
	if err != nil {
		// limiter infrastructure trouble fails open rather than
		// turning every request away
		log.Printf("rate limiter unavailable, admitting user=%d err=%v", principal.UserID, err)
		decision = ratelimit.Decision{Allowed: true}
	}
	if !decision.Allowed {
		a := o.abort(state, ReasonRateLimited, nil)
		a.RetryAfter = decision.RetryAfter
		return nil, a
	}
	state = o.advance(state, StateAdmitted)

	// Admitted -> ContextGathered
	passages, err := o.retrieveWithRetry(ctx, question)
	if err != nil {
		if ctx.Err() != nil {
			return nil, o.abort(state, ReasonTimeout, err)
		}
		return nil, o.abort(state, ReasonRetrievalUnavailable, err)
	}
	state = o.advance(state, StateContextGathered)

	// ContextGathered -> Answered
	answer, err := o.generateWithRetry(ctx, question, passages)
	if err != nil {
		if ctx.Err() != nil {
			return nil, o.abort(state, ReasonTimeout, err)
		}
		return nil, o.abort(state, ReasonGenerationUnavailable, err)
	}
	state = o.advance(state, StateAnswered)

	resp := &Response{
		Answer:      answer,
		Context:     passages,
		GeneratedAt: time.Now().UTC(),
	}

	// Answered -> Recorded -> Completed, or Answered -> Completed when
	// recording fails: the caller already has a valid answer.
	interaction, err := o.buildInteraction(principal, question, resp)
	if err != nil {
		log.Printf("interaction build failed user=%d err=%v", principal.UserID, err)
		o.advance(state, StateCompleted)
		return resp, nil
	}
	resp.InteractionID = interaction.InteractionID

	recordCtx, recordCancel := context.WithTimeout(context.WithoutCancel(ctx), o.policy.RecordTimeout)
	defer recordCancel()
	if err := o.recorder.Record(recordCtx, interaction); err != nil {
		log.Printf("interaction record failed user=%d interaction=%s err=%v",
			principal.UserID, interaction.InteractionID, err)
		o.advance(state, StateCompleted)
		return resp, nil
	}
	state = o.advance(state, StateRecorded)
	o.advance(state, StateCompleted)

	resp.Recorded = true
	return resp, nil
}

func (o *Orchestrator) buildInteraction(p auth.Principal, question string, resp *Response) (*Interaction, error) {
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	in := &Interaction{
		InteractionID: id,
		UserID:        p.UserID,
		Question:      question,
		Answer:        resp.Answer,
		CreatedAt:     resp.GeneratedAt,
	}
	if err := in.SetContext(resp.Context); err != nil {
		return nil, err
	}
	return in, nil
}

func (o *Orchestrator) retrieveWithRetry(ctx context.Context, question string) ([]rag.Passage, error) {
	attempts := 1 + o.policy.RetrievalRetries
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := o.backoff(ctx, attempt); err != nil {
				return nil, lastErr
			}
		}

		stageCtx, cancel := context.WithTimeout(ctx, o.policy.RetrieveTimeout)
		passages, err := o.retriever.Retrieve(stageCtx, question)
		cancel()
		if err == nil {
			return passages, nil
		}
		lastErr = err

		var re *rag.Error
		if !errors.As(err, &re) || !re.Transient || ctx.Err() != nil {
			return nil, err
		}
		log.Printf("retrieval attempt %d/%d failed: %v", attempt+1, attempts, err)
	}
	return nil, lastErr
}

func (o *Orchestrator) generateWithRetry(ctx context.Context, question string, passages []rag.Passage) (string, error) {
	attempts := 1 + o.policy.GenerationRetries
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := o.backoff(ctx, attempt); err != nil {
				return "", lastErr
			}
		}

		stageCtx, cancel := context.WithTimeout(ctx, o.policy.GenerateTimeout)
		answer, err := o.generator.Generate(stageCtx, question, passages)
		cancel()
		if err == nil {
			return answer, nil
		}
		lastErr = err

		var ge *ai.Error
		if !errors.As(err, &ge) || ctx.Err() != nil {
			return "", err
		}
		// do not retry into an upstream that is already saturated
		if ge.Kind == ai.KindRateLimited {
			return "", err
		}
		log.Printf("generation attempt %d/%d failed kind=%s: %v", attempt+1, attempts, ge.Kind, err)
	}
	return "", lastErr
}

// backoff waits base<<(attempt-1), giving up early if the request budget
// runs out first.
func (o *Orchestrator) backoff(ctx context.Context, attempt int) error {
	d := o.policy.BackoffBase << (attempt - 1)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) advance(from, to State) State {
	if !canTransition(from, to) {
		// indicates a pipeline bug, not a runtime condition
		log.Printf("illegal pipeline transition %s -> %s", from, to)
	}
	return to
}

func (o *Orchestrator) abort(state State, reason Reason, err error) *Abort {
	if err != nil {
		log.Printf("chat pipeline aborted state=%s reason=%s err=%v", state, reason, err)
	} else {
		log.Printf("chat pipeline aborted state=%s reason=%s", state, reason)
	}
	return &Abort{State: state, Reason: reason, Err: err}
}
