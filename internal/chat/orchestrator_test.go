package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/suPer8Hu/providentia/internal/ai"
	"github.com/suPer8Hu/providentia/internal/auth"
	"github.com/suPer8Hu/providentia/internal/rag"
	"github.com/suPer8Hu/providentia/internal/ratelimit"
)

type fakeVerifier struct {
	principal auth.Principal
	err       error
	calls     int
}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (auth.Principal, error) {
	f.calls++
	if f.err != nil {
		return auth.Principal{}, f.err
	}
	return f.principal, nil
}

type fakeLimiter struct {
	decision ratelimit.Decision
	err      error
	calls    int
}

func (f *fakeLimiter) Admit(ctx context.Context, principal string) (ratelimit.Decision, error) {
	f.calls++
	return f.decision, f.err
}

type fakeRetriever struct {
	passages []rag.Passage
	errs     []error // consumed per call; nil entry means success
	calls    int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, question string) ([]rag.Passage, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.passages, nil
}

type fakeGenerator struct {
	answer string
	errs   []error
	calls  int
	got    []rag.Passage
}

func (f *fakeGenerator) Generate(ctx context.Context, question string, passages []rag.Passage) (string, error) {
	i := f.calls
	f.calls++
	f.got = append([]rag.Passage(nil), passages...)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	return f.answer, nil
}

type fakeRecorder struct {
	err   error
	calls int
	last  *Interaction
}

func (f *fakeRecorder) Record(ctx context.Context, in *Interaction) error {
	f.calls++
	f.last = in
	return f.err
}

func allowAll() *fakeLimiter {
	return &fakeLimiter{decision: ratelimit.Decision{Allowed: true}}
}

func okVerifier() *fakeVerifier {
	return &fakeVerifier{principal: auth.Principal{UserID: 1, Email: "u@example.com"}}
}

func fastPolicy() Policy {
	return Policy{
		RetrievalRetries:  2,
		GenerationRetries: 1,
		BackoffBase:       time.Millisecond,
		RetrieveTimeout:   time.Second,
		GenerateTimeout:   time.Second,
		RecordTimeout:     time.Second,
		RequestBudget:     5 * time.Second,
	}
}

var threePassages = []rag.Passage{
	{Source: "epf-act-s69", Text: "minimum five years of contribution", Score: 0.9},
	{Source: "epf-act-s70", Text: "partial withdrawal rules", Score: 0.8},
	{Source: "faq-31", Text: "withdrawal process steps", Score: 0.7},
}

func TestHandle_HappyPath(t *testing.T) {
	rec := &fakeRecorder{}
	gen := &fakeGenerator{answer: "Five years, per the cited sections."}
	o := NewOrchestrator(okVerifier(), allowAll(), &fakeRetriever{passages: threePassages}, gen, rec, fastPolicy())

	resp, err := o.Handle(context.Background(), Request{
		Credential: "token",
		Question:   "What is the minimum contribution period for EPF withdrawal?",
		ReceivedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.Answer == "" || len(resp.Context) != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !resp.Recorded {
		t.Fatalf("expected interaction to be recorded")
	}
	if rec.calls != 1 {
		t.Fatalf("recorder called %d times, want 1", rec.calls)
	}
}

func TestHandle_PersistedContextMatchesGeneratorInput(t *testing.T) {
	rec := &fakeRecorder{}
	gen := &fakeGenerator{answer: "ok"}
	o := NewOrchestrator(okVerifier(), allowAll(), &fakeRetriever{passages: threePassages}, gen, rec, fastPolicy())

	if _, err := o.Handle(context.Background(), Request{Credential: "t", Question: "q"}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	persisted, err := rec.last.Context()
	if err != nil {
		t.Fatalf("decode persisted context: %v", err)
	}
	if len(persisted) != len(gen.got) {
		t.Fatalf("persisted %d passages, generator saw %d", len(persisted), len(gen.got))
	}
	for i := range persisted {
		if persisted[i] != gen.got[i] {
			t.Fatalf("passage %d differs: persisted=%+v generator=%+v", i, persisted[i], gen.got[i])
		}
	}
}

func TestHandle_InvalidQuestion(t *testing.T) {
	v := okVerifier()
	o := NewOrchestrator(v, allowAll(), &fakeRetriever{}, &fakeGenerator{}, &fakeRecorder{}, fastPolicy())

	for _, q := range []string{"", "   \t  "} {
		_, err := o.Handle(context.Background(), Request{Credential: "t", Question: q})
		var a *Abort
		if !errors.As(err, &a) || a.Reason != ReasonInvalidQuestion {
			t.Fatalf("question %q: got %v, want invalid-question abort", q, err)
		}
	}
	if v.calls != 0 {
		t.Fatalf("verifier called for invalid question")
	}
}

func TestHandle_Unauthenticated(t *testing.T) {
	v := &fakeVerifier{err: &auth.Error{Reason: auth.ReasonExpired}}
	lim := allowAll()
	ret := &fakeRetriever{}
	o := NewOrchestrator(v, lim, ret, &fakeGenerator{}, &fakeRecorder{}, fastPolicy())

	_, err := o.Handle(context.Background(), Request{Credential: "expired", Question: "q"})
	var a *Abort
	if !errors.As(err, &a) {
		t.Fatalf("expected *Abort, got %v", err)
	}
	if a.Reason != ReasonUnauthenticated || a.State != StateReceived {
		t.Fatalf("abort = %+v", a)
	}
	if lim.calls != 0 || ret.calls != 0 {
		t.Fatalf("downstream called after auth failure")
	}
}

func TestHandle_RateLimitedShortCircuits(t *testing.T) {
	lim := &fakeLimiter{decision: ratelimit.Decision{Allowed: false, RetryAfter: 17 * time.Second}}
	ret := &fakeRetriever{passages: threePassages}
	gen := &fakeGenerator{answer: "x"}
	rec := &fakeRecorder{}
	o := NewOrchestrator(okVerifier(), lim, ret, gen, rec, fastPolicy())

	_, err := o.Handle(context.Background(), Request{Credential: "t", Question: "q"})
	var a *Abort
	if !errors.As(err, &a) {
		t.Fatalf("expected *Abort, got %v", err)
	}
	if a.Reason != ReasonRateLimited {
		t.Fatalf("reason = %q", a.Reason)
	}
	if a.RetryAfter != 17*time.Second {
		t.Fatalf("retry-after = %v", a.RetryAfter)
	}
	if ret.calls != 0 || gen.calls != 0 || rec.calls != 0 {
		t.Fatalf("downstream work performed for rejected request: retrieve=%d generate=%d record=%d",
			ret.calls, gen.calls, rec.calls)
	}
}

func TestHandle_LimiterFailureFailsOpen(t *testing.T) {
	lim := &fakeLimiter{err: errors.New("redis down")}
	o := NewOrchestrator(okVerifier(), lim, &fakeRetriever{passages: threePassages},
		&fakeGenerator{answer: "a"}, &fakeRecorder{}, fastPolicy())

	if _, err := o.Handle(context.Background(), Request{Credential: "t", Question: "q"}); err != nil {
		t.Fatalf("expected fail-open success, got %v", err)
	}
}

func TestHandle_TransientRetrievalRetriedThenSucceeds(t *testing.T) {
	ret := &fakeRetriever{
		passages: threePassages,
		errs:     []error{&rag.Error{Transient: true, Err: errors.New("blip")}, nil},
	}
	o := NewOrchestrator(okVerifier(), allowAll(), ret, &fakeGenerator{answer: "a"}, &fakeRecorder{}, fastPolicy())

	resp, err := o.Handle(context.Background(), Request{Credential: "t", Question: "q"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if ret.calls != 2 {
		t.Fatalf("retriever called %d times, want 2", ret.calls)
	}
	if len(resp.Context) != 3 {
		t.Fatalf("context lost across retry")
	}
}

func TestHandle_RetrievalRetriesExhausted(t *testing.T) {
	transient := &rag.Error{Transient: true, Err: errors.New("still down")}
	ret := &fakeRetriever{errs: []error{transient, transient, transient}}
	gen := &fakeGenerator{}
	o := NewOrchestrator(okVerifier(), allowAll(), ret, gen, &fakeRecorder{}, fastPolicy())

	_, err := o.Handle(context.Background(), Request{Credential: "t", Question: "q"})
	var a *Abort
	if !errors.As(err, &a) || a.Reason != ReasonRetrievalUnavailable {
		t.Fatalf("got %v, want retrieval-unavailable abort", err)
	}
	if ret.calls != 3 {
		t.Fatalf("retriever called %d times, want 3 (1 + 2 retries)", ret.calls)
	}
	if gen.calls != 0 {
		t.Fatalf("generator called after retrieval failure")
	}
}

func TestHandle_NonTransientRetrievalNotRetried(t *testing.T) {
	ret := &fakeRetriever{errs: []error{&rag.Error{Transient: false, Err: errors.New("bad request")}}}
	o := NewOrchestrator(okVerifier(), allowAll(), ret, &fakeGenerator{}, &fakeRecorder{}, fastPolicy())

	_, err := o.Handle(context.Background(), Request{Credential: "t", Question: "q"})
	var a *Abort
	if !errors.As(err, &a) || a.Reason != ReasonRetrievalUnavailable {
		t.Fatalf("got %v", err)
	}
	if ret.calls != 1 {
		t.Fatalf("non-transient failure retried (%d calls)", ret.calls)
	}
}

func TestHandle_EmptyContextStillAnswers(t *testing.T) {
	ret := &fakeRetriever{passages: []rag.Passage{}}
	gen := &fakeGenerator{answer: "general knowledge answer"}
	rec := &fakeRecorder{}
	o := NewOrchestrator(okVerifier(), allowAll(), ret, gen, rec, fastPolicy())

	resp, err := o.Handle(context.Background(), Request{Credential: "t", Question: "q"})
	if err != nil {
		t.Fatalf("empty retrieval treated as failure: %v", err)
	}
	if resp.Answer != "general knowledge answer" {
		t.Fatalf("answer = %q", resp.Answer)
	}
	if len(resp.Context) != 0 {
		t.Fatalf("context should be empty")
	}
	persisted, _ := rec.last.Context()
	if len(persisted) != 0 {
		t.Fatalf("persisted context should be empty, got %d", len(persisted))
	}
}

func TestHandle_GenerationTimeoutsExhaustRetries(t *testing.T) {
	timeout := &ai.Error{Kind: ai.KindTimeout, Err: errors.New("deadline")}
	gen := &fakeGenerator{errs: []error{timeout, timeout}}
	rec := &fakeRecorder{}
	o := NewOrchestrator(okVerifier(), allowAll(), &fakeRetriever{passages: threePassages}, gen, rec, fastPolicy())

	_, err := o.Handle(context.Background(), Request{Credential: "t", Question: "q"})
	var a *Abort
	if !errors.As(err, &a) || a.Reason != ReasonGenerationUnavailable {
		t.Fatalf("got %v, want generation-unavailable abort", err)
	}
	if gen.calls != 2 {
		t.Fatalf("generator called %d times, want 2 (1 + 1 retry)", gen.calls)
	}
	if rec.calls != 0 {
		t.Fatalf("interaction recorded despite generation failure")
	}
}

func TestHandle_UpstreamRateLimitNotRetried(t *testing.T) {
	gen := &fakeGenerator{errs: []error{&ai.Error{Kind: ai.KindRateLimited, Err: errors.New("429")}}}
	o := NewOrchestrator(okVerifier(), allowAll(), &fakeRetriever{passages: threePassages}, gen, &fakeRecorder{}, fastPolicy())

	_, err := o.Handle(context.Background(), Request{Credential: "t", Question: "q"})
	var a *Abort
	if !errors.As(err, &a) || a.Reason != ReasonGenerationUnavailable {
		t.Fatalf("got %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("saturated upstream retried (%d calls)", gen.calls)
	}
}

func TestHandle_RecorderFailureDoesNotFailRequest(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db gone")}
	o := NewOrchestrator(okVerifier(), allowAll(), &fakeRetriever{passages: threePassages},
		&fakeGenerator{answer: "the answer"}, rec, fastPolicy())

	resp, err := o.Handle(context.Background(), Request{Credential: "t", Question: "q"})
	if err != nil {
		t.Fatalf("record failure propagated: %v", err)
	}
	if resp.Answer != "the answer" {
		t.Fatalf("answer changed by record failure: %q", resp.Answer)
	}
	if resp.Recorded {
		t.Fatalf("Recorded should be false after recorder failure")
	}
	if rec.calls != 1 {
		t.Fatalf("recorder called %d times", rec.calls)
	}
}

func TestStateMachine_Transitions(t *testing.T) {
	legal := [][2]State{
		{StateReceived, StateAuthenticated},
		{StateAuthenticated, StateAdmitted},
		{StateAdmitted, StateContextGathered},
		{StateContextGathered, StateAnswered},
		{StateAnswered, StateRecorded},
		{StateAnswered, StateCompleted},
		{StateRecorded, StateCompleted},
	}
	for _, tr := range legal {
		if !canTransition(tr[0], tr[1]) {
			t.Errorf("transition %s -> %s should be legal", tr[0], tr[1])
		}
	}
	illegal := [][2]State{
		{StateAuthenticated, StateReceived},
		{StateReceived, StateAnswered},
		{StateCompleted, StateReceived},
		{StateAdmitted, StateAnswered},
	}
	for _, tr := range illegal {
		if canTransition(tr[0], tr[1]) {
			t.Errorf("transition %s -> %s should be illegal", tr[0], tr[1])
		}
	}
}
