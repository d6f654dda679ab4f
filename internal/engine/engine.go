// Package engine drives a single quiz attempt from start through scored
// completion: it acquires the server-sampled question set, tracks answer
// selections, runs the countdown, and guarantees exactly-once submission
// whether triggered by the user or by timer expiry.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/uniquiz/quiz-client/internal/model"
)

// State is the attempt lifecycle state.
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateActive     State = "ACTIVE"
	StateSubmitting State = "SUBMITTING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
)

// Engine errors. Misuse fails loudly so UI bugs are observable.
var (
	// ErrAlreadyStarted means Start was called on an engine that already
	// drove an attempt. One engine drives exactly one attempt.
	ErrAlreadyStarted = errors.New("attempt already started")

	// ErrNotActive means the operation requires an active attempt.
	ErrNotActive = errors.New("attempt is not active")

	// ErrAttemptExpired means the countdown reached zero; answers are frozen.
	ErrAttemptExpired = errors.New("attempt time limit expired")

	// ErrSubmitInFlight means a submission is already on the wire. The call
	// is a no-op: no second network request is issued.
	ErrSubmitInFlight = errors.New("submission already in flight")

	// ErrUnknownQuestion means the question is not part of this attempt.
	ErrUnknownQuestion = errors.New("question is not part of this attempt")
)

// QuizService is the slice of the backend the engine needs. *api.Client
// satisfies it; tests substitute a fake.
type QuizService interface {
	StartQuiz(ctx context.Context, quizID string) (*model.StartedAttempt, error)
	SubmitAttempt(ctx context.Context, attemptID string, answers []model.Answer) (*model.AttemptResult, error)
}

// AutoSubmitResult is delivered on the AutoSubmitted channel when the
// countdown expires and the engine submits on the student's behalf.
type AutoSubmitResult struct {
	Result *model.AttemptResult
	Err    error
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the clock driving the countdown. Tests pass a mock so
// ticks are driven synchronously instead of by wall time.
func WithClock(clk clock.Clock) Option {
	return func(e *Engine) { e.clk = clk }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log.With().Str("component", "attempt_engine").Logger() }
}

// Engine is the attempt state machine. All state transitions happen under
// one mutex, and the transition into StateSubmitting is made in the same
// critical section that reads the current state — that synchronous
// check-and-set is the sole guard against double submission when a timer
// expiry races a user-initiated submit.
type Engine struct {
	svc QuizService
	clk clock.Clock
	log zerolog.Logger

	mu        sync.Mutex
	state     State
	starting  bool
	attempt   *model.StartedAttempt
	ledger    *Ledger
	questions map[string]struct{}
	remaining int
	timed     bool
	expired   bool
	result    *model.AttemptResult

	stopTick  chan struct{}
	stopOnce  sync.Once
	autoCh    chan AutoSubmitResult
	expiredCh chan struct{}
}

// New creates an engine in StateNotStarted.
func New(svc QuizService, opts ...Option) *Engine {
	e := &Engine{
		svc:       svc,
		clk:       clock.New(),
		log:       zerolog.Nop(),
		state:     StateNotStarted,
		stopTick:  make(chan struct{}),
		autoCh:    make(chan AutoSubmitResult, 1),
		expiredCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Attempt returns the started attempt, or nil before Start succeeds.
func (e *Engine) Attempt() *model.StartedAttempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempt
}

// Result returns the graded result once the attempt completed.
func (e *Engine) Result() *model.AttemptResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Remaining returns the seconds left on the countdown. ok is false for
// untimed attempts.
func (e *Engine) Remaining() (seconds int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remaining, e.timed
}

// Answered returns how many questions currently have a selection.
func (e *Engine) Answered() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ledger == nil {
		return 0
	}
	return e.ledger.Answered()
}

// AutoSubmitted delivers the outcome of a timer-triggered submission.
// At most one value is ever sent.
func (e *Engine) AutoSubmitted() <-chan AutoSubmitResult {
	return e.autoCh
}

// Expired is closed when the countdown reaches zero.
func (e *Engine) Expired() <-chan struct{} {
	return e.expiredCh
}

// Start requests a new attempt for the quiz. On server acceptance the
// engine becomes Active, the ledger is initialized, and the countdown
// begins if the quiz is timed. On rejection (not enrolled, unpublished,
// attempts exhausted) the engine becomes Failed and the reason is returned;
// it is never retried automatically.
func (e *Engine) Start(ctx context.Context, quizID string) (*model.StartedAttempt, error) {
	e.mu.Lock()
	if e.state != StateNotStarted || e.starting {
		e.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	e.starting = true
	e.mu.Unlock()

	attempt, err := e.svc.StartQuiz(ctx, quizID)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.starting = false

	if err != nil {
		e.state = StateFailed
		e.log.Warn().Err(err).Str("quiz_id", quizID).Msg("Cannot start attempt")
		return nil, fmt.Errorf("start quiz: %w", err)
	}

	e.attempt = attempt
	e.ledger = NewLedger()
	e.questions = make(map[string]struct{}, len(attempt.Questions))
	for _, q := range attempt.Questions {
		e.questions[q.ID] = struct{}{}
	}
	e.state = StateActive

	if attempt.TimeLimitMinutes != nil {
		e.timed = true
		e.remaining = *attempt.TimeLimitMinutes * 60
		go e.runCountdown()
	}

	e.log.Info().
		Str("attempt_id", attempt.AttemptID).
		Int("questions", len(attempt.Questions)).
		Bool("timed", e.timed).
		Msg("Attempt started")
	return attempt, nil
}

// SelectAnswer upserts a selection into the ledger. Valid only while the
// attempt is Active and the countdown has not expired.
func (e *Engine) SelectAnswer(questionID, optionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateActive {
		return ErrNotActive
	}
	if e.expired {
		// Expiry is a one-way gate: even if the auto-submission is still in
		// flight or failed, answers stay frozen.
		return ErrAttemptExpired
	}
	if _, ok := e.questions[questionID]; !ok {
		return ErrUnknownQuestion
	}

	e.ledger.Set(questionID, optionID)
	return nil
}

// Submit serializes the ledger and submits the attempt. It is idempotent at
// the engine level: while a submission is in flight it returns
// ErrSubmitInFlight without a second network call, and after completion it
// returns the cached result. On a network failure the state reverts to
// Active with all answers preserved so the student may retry.
func (e *Engine) Submit(ctx context.Context) (*model.AttemptResult, error) {
	return e.submit(ctx, "user")
}

func (e *Engine) submit(ctx context.Context, trigger string) (*model.AttemptResult, error) {
	e.mu.Lock()
	switch e.state {
	case StateSubmitting:
		e.mu.Unlock()
		return nil, ErrSubmitInFlight
	case StateCompleted:
		result := e.result
		e.mu.Unlock()
		return result, nil
	case StateActive:
		// Fall through to submit.
	default:
		e.mu.Unlock()
		return nil, ErrNotActive
	}

	// The transition into Submitting happens in the same critical section
	// that read the state. A racing submit now observes Submitting.
	e.state = StateSubmitting
	attemptID := e.attempt.AttemptID
	answers := e.ledger.Serialize(e.attempt.Questions)
	e.mu.Unlock()

	e.log.Info().
		Str("attempt_id", attemptID).
		Str("trigger", trigger).
		Int("answers", len(answers)).
		Msg("Submitting attempt")

	result, err := e.svc.SubmitAttempt(ctx, attemptID, answers)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		// Recoverable: revert to Active, keep every answer, allow a manual
		// retry. An expired countdown stays expired.
		e.state = StateActive
		e.log.Warn().Err(err).Str("attempt_id", attemptID).Msg("Submission failed")
		return nil, fmt.Errorf("submit attempt: %w", err)
	}

	e.state = StateCompleted
	e.result = result
	e.haltCountdown()
	e.log.Info().
		Str("attempt_id", attemptID).
		Float64("score", result.Score).
		Bool("passed", result.Passed).
		Msg("Attempt completed")
	return result, nil
}

// Abandon stops the countdown and detaches from the attempt, e.g. when the
// user navigates away. Any in-flight submission keeps running fire-and-forget:
// a request already sent must not be suppressed, since the server is the
// authority on whether the attempt was consumed.
func (e *Engine) Abandon() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.haltCountdown()
}

// runCountdown ticks once per second while the attempt is open. When the
// countdown reaches zero it marks expiry and invokes submit exactly once;
// the submit idempotency guard makes a racing manual submit harmless.
func (e *Engine) runCountdown() {
	ticker := e.clk.Ticker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopTick:
			return
		case <-ticker.C:
			e.mu.Lock()
			if e.state == StateCompleted || e.state == StateFailed {
				e.mu.Unlock()
				return
			}
			if e.remaining > 0 {
				e.remaining--
			}
			expired := e.remaining <= 0 && !e.expired
			if expired {
				e.expired = true
				close(e.expiredCh)
			}
			e.mu.Unlock()

			if expired {
				e.autoSubmit()
				return
			}
		}
	}
}

// autoSubmit performs the expiry-triggered submission and reports its
// outcome on the AutoSubmitted channel.
func (e *Engine) autoSubmit() {
	e.log.Info().Msg("Time limit reached, auto-submitting")

	result, err := e.submit(context.Background(), "timer")
	if errors.Is(err, ErrSubmitInFlight) {
		// A manual submit won the race; exactly one network call happened.
		return
	}
	e.autoCh <- AutoSubmitResult{Result: result, Err: err}
}

// haltCountdown stops the tick goroutine. Safe to call multiple times and
// with the engine mutex held.
func (e *Engine) haltCountdown() {
	e.stopOnce.Do(func() { close(e.stopTick) })
}
