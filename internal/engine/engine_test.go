package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/uniquiz/quiz-client/internal/model"
)

// fakeService is a controllable QuizService double. SubmitAttempt can be
// held in flight via block, and fails with the next queued error.
type fakeService struct {
	mu          sync.Mutex
	started     *model.StartedAttempt
	startErr    error
	result      *model.AttemptResult
	submitErrs  []error
	submitCalls int
	gotAnswers  [][]model.Answer
	block       chan struct{}
}

func (f *fakeService) StartQuiz(ctx context.Context, quizID string) (*model.StartedAttempt, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.started, nil
}

func (f *fakeService) SubmitAttempt(ctx context.Context, attemptID string, answers []model.Answer) (*model.AttemptResult, error) {
	f.mu.Lock()
	f.submitCalls++
	f.gotAnswers = append(f.gotAnswers, answers)
	var nextErr error
	if len(f.submitErrs) > 0 {
		nextErr = f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
	}
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if nextErr != nil {
		return nil, nextErr
	}
	return f.result, nil
}

func (f *fakeService) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls
}

func sampleAttempt(timeLimitMinutes *int) *model.StartedAttempt {
	options := []model.Option{{ID: "a", Text: "first"}, {ID: "b", Text: "second"}}
	return &model.StartedAttempt{
		AttemptID:        "attempt-1",
		QuizID:           "quiz-1",
		Title:            "Sample Quiz",
		TimeLimitMinutes: timeLimitMinutes,
		Questions: []model.Question{
			{ID: "q1", QuestionText: "one", Options: options},
			{ID: "q2", QuestionText: "two", Options: options},
			{ID: "q3", QuestionText: "three", Options: options},
		},
		StartedAt: time.Now(),
	}
}

func sampleResult() *model.AttemptResult {
	return &model.AttemptResult{AttemptID: "attempt-1", Score: 66.67, Passed: true}
}

// advance drives the mock clock one second at a time, yielding between
// ticks so the countdown goroutine keeps up.
func advance(mock *clock.Mock, seconds int) {
	for i := 0; i < seconds; i++ {
		mock.Add(time.Second)
		time.Sleep(time.Millisecond)
	}
}

func TestStartPopulatesAttemptAndCountdown(t *testing.T) {
	limit := 2
	svc := &fakeService{started: sampleAttempt(&limit)}
	eng := New(svc, WithClock(clock.NewMock()))

	attempt, err := eng.Start(context.Background(), "quiz-1")
	require.NoError(t, err)
	require.Equal(t, StateActive, eng.State())
	require.Len(t, attempt.Questions, 3)

	remaining, timed := eng.Remaining()
	require.True(t, timed)
	require.Equal(t, 120, remaining)
}

func TestStartTwiceRejected(t *testing.T) {
	svc := &fakeService{started: sampleAttempt(nil)}
	eng := New(svc)

	_, err := eng.Start(context.Background(), "quiz-1")
	require.NoError(t, err)

	_, err = eng.Start(context.Background(), "quiz-1")
	require.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestStartRejectionFailsAttempt(t *testing.T) {
	rejection := errors.New("attempts exhausted")
	svc := &fakeService{startErr: rejection}
	eng := New(svc)

	_, err := eng.Start(context.Background(), "quiz-1")
	require.ErrorIs(t, err, rejection)
	require.Equal(t, StateFailed, eng.State())
	require.Zero(t, eng.Answered())

	_, timed := eng.Remaining()
	require.False(t, timed)

	// A failed attempt accepts no answers and no submission.
	require.ErrorIs(t, eng.SelectAnswer("q1", "a"), ErrNotActive)
	_, err = eng.Submit(context.Background())
	require.ErrorIs(t, err, ErrNotActive)
}

func TestSelectAnswerBeforeStart(t *testing.T) {
	eng := New(&fakeService{})
	require.ErrorIs(t, eng.SelectAnswer("q1", "a"), ErrNotActive)
}

func TestSelectAnswerUnknownQuestion(t *testing.T) {
	svc := &fakeService{started: sampleAttempt(nil)}
	eng := New(svc)

	_, err := eng.Start(context.Background(), "quiz-1")
	require.NoError(t, err)

	require.ErrorIs(t, eng.SelectAnswer("nope", "a"), ErrUnknownQuestion)
}

func TestSubmitSerializesLedgerInQuestionOrder(t *testing.T) {
	svc := &fakeService{started: sampleAttempt(nil), result: sampleResult()}
	eng := New(svc)

	_, err := eng.Start(context.Background(), "quiz-1")
	require.NoError(t, err)

	require.NoError(t, eng.SelectAnswer("q3", "a"))
	require.NoError(t, eng.SelectAnswer("q1", "a"))
	require.NoError(t, eng.SelectAnswer("q1", "b")) // Re-selection replaces

	result, err := eng.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateCompleted, eng.State())
	require.Equal(t, sampleResult(), result)

	require.Len(t, svc.gotAnswers, 1)
	require.Equal(t, []model.Answer{
		{QuestionID: "q1", SelectedOptionID: "b"},
		{QuestionID: "q2", SelectedOptionID: ""},
		{QuestionID: "q3", SelectedOptionID: "a"},
	}, svc.gotAnswers[0])

	// Completed attempts accept no further mutation.
	require.ErrorIs(t, eng.SelectAnswer("q2", "a"), ErrNotActive)
}

func TestDoubleSubmitIssuesOneNetworkCall(t *testing.T) {
	svc := &fakeService{
		started: sampleAttempt(nil),
		result:  sampleResult(),
		block:   make(chan struct{}),
	}
	eng := New(svc)

	_, err := eng.Start(context.Background(), "quiz-1")
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() {
		_, err := eng.Submit(context.Background())
		firstDone <- err
	}()

	// Wait for the first submission to be on the wire.
	require.Eventually(t, func() bool { return svc.calls() == 1 }, time.Second, time.Millisecond)

	_, err = eng.Submit(context.Background())
	require.ErrorIs(t, err, ErrSubmitInFlight)

	close(svc.block)
	require.NoError(t, <-firstDone)
	require.Equal(t, 1, svc.calls())
}

func TestSubmitAfterCompletedReturnsCachedResult(t *testing.T) {
	svc := &fakeService{started: sampleAttempt(nil), result: sampleResult()}
	eng := New(svc)

	_, err := eng.Start(context.Background(), "quiz-1")
	require.NoError(t, err)

	first, err := eng.Submit(context.Background())
	require.NoError(t, err)

	second, err := eng.Submit(context.Background())
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 1, svc.calls())
}

func TestSubmitFailureRevertsToActiveAndRetrySucceeds(t *testing.T) {
	svc := &fakeService{
		started:    sampleAttempt(nil),
		result:     sampleResult(),
		submitErrs: []error{errors.New("connection reset")},
	}
	eng := New(svc)

	_, err := eng.Start(context.Background(), "quiz-1")
	require.NoError(t, err)
	require.NoError(t, eng.SelectAnswer("q1", "a"))

	_, err = eng.Submit(context.Background())
	require.Error(t, err)
	require.Equal(t, StateActive, eng.State())

	// Answers preserved; resubmission permitted.
	require.Equal(t, 1, eng.Answered())
	result, err := eng.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateCompleted, eng.State())
	require.NotNil(t, result)
	require.Equal(t, 2, svc.calls())
}

func TestCountdownExpiryAutoSubmitsOnceWithEmptySelections(t *testing.T) {
	limit := 1
	mock := clock.NewMock()
	svc := &fakeService{started: sampleAttempt(&limit), result: sampleResult()}
	eng := New(svc, WithClock(mock))

	_, err := eng.Start(context.Background(), "quiz-1")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond) // Let the countdown goroutine attach its ticker.

	advance(mock, 60)

	select {
	case outcome := <-eng.AutoSubmitted():
		require.NoError(t, outcome.Err)
		require.NotNil(t, outcome.Result)
	case <-time.After(2 * time.Second):
		t.Fatal("auto-submit never fired")
	}

	require.Equal(t, StateCompleted, eng.State())
	require.Equal(t, 1, svc.calls())
	for _, a := range svc.gotAnswers[0] {
		require.Empty(t, a.SelectedOptionID)
	}

	// No further ticking or submitting after expiry.
	advance(mock, 10)
	require.Equal(t, 1, svc.calls())
}

func TestExpiryRacingManualSubmitIssuesOneCall(t *testing.T) {
	limit := 1
	mock := clock.NewMock()
	svc := &fakeService{
		started: sampleAttempt(&limit),
		result:  sampleResult(),
		block:   make(chan struct{}),
	}
	eng := New(svc, WithClock(mock))

	_, err := eng.Start(context.Background(), "quiz-1")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	manualDone := make(chan error, 1)
	go func() {
		_, err := eng.Submit(context.Background())
		manualDone <- err
	}()
	require.Eventually(t, func() bool { return svc.calls() == 1 }, time.Second, time.Millisecond)

	// The countdown expires while the manual submission is in flight. The
	// idempotency guard must swallow the timer's submit.
	advance(mock, 60)

	close(svc.block)
	require.NoError(t, <-manualDone)
	require.Equal(t, StateCompleted, eng.State())
	require.Equal(t, 1, svc.calls())
}

func TestExpiryFreezesAnswersEvenIfAutoSubmitFails(t *testing.T) {
	limit := 1
	mock := clock.NewMock()
	svc := &fakeService{
		started:    sampleAttempt(&limit),
		result:     sampleResult(),
		submitErrs: []error{errors.New("gateway timeout")},
	}
	eng := New(svc, WithClock(mock))

	_, err := eng.Start(context.Background(), "quiz-1")
	require.NoError(t, err)
	require.NoError(t, eng.SelectAnswer("q1", "b"))
	time.Sleep(10 * time.Millisecond)

	advance(mock, 60)

	select {
	case outcome := <-eng.AutoSubmitted():
		require.Error(t, outcome.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("auto-submit never fired")
	}

	// Soft expiry: the attempt reverts to Active so a manual retry can run,
	// but answers stay frozen behind the expiry gate.
	require.Equal(t, StateActive, eng.State())
	require.ErrorIs(t, eng.SelectAnswer("q2", "a"), ErrAttemptExpired)

	result, err := eng.Submit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, StateCompleted, eng.State())
	require.Equal(t, 2, svc.calls())

	// Both submissions carried the same frozen answer sheet.
	require.Equal(t, svc.gotAnswers[0], svc.gotAnswers[1])
}

func TestUntimedAttemptHasNoCountdown(t *testing.T) {
	svc := &fakeService{started: sampleAttempt(nil), result: sampleResult()}
	eng := New(svc)

	_, err := eng.Start(context.Background(), "quiz-1")
	require.NoError(t, err)

	_, timed := eng.Remaining()
	require.False(t, timed)
}

func TestAbandonStopsCountdown(t *testing.T) {
	limit := 1
	mock := clock.NewMock()
	svc := &fakeService{started: sampleAttempt(&limit), result: sampleResult()}
	eng := New(svc, WithClock(mock))

	_, err := eng.Start(context.Background(), "quiz-1")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	eng.Abandon()
	advance(mock, 120)

	require.Equal(t, 0, svc.calls())
	select {
	case <-eng.AutoSubmitted():
		t.Fatal("abandoned attempt must not auto-submit")
	default:
	}
}
