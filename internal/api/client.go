// Package api exposes the student-facing operations of the quiz service as
// typed calls over an authenticated session.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/uniquiz/quiz-client/internal/model"
	"github.com/uniquiz/quiz-client/internal/session"
)

// Client wraps a session manager with the student REST endpoints.
type Client struct {
	session *session.Manager
}

// NewClient creates an API client over an authenticated session.
func NewClient(sess *session.Manager) *Client {
	return &Client{session: sess}
}

// GetProfile returns the authenticated student's profile.
func (c *Client) GetProfile(ctx context.Context) (*model.Profile, error) {
	var profile model.Profile
	err := c.session.Do(ctx, session.Request{
		Method: http.MethodGet,
		Path:   "/student/profile",
	}, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListClasses returns the classes the student is enrolled in.
func (c *Client) ListClasses(ctx context.Context) ([]model.Class, error) {
	var classes []model.Class
	err := c.session.Do(ctx, session.Request{
		Method: http.MethodGet,
		Path:   "/student/classes",
	}, &classes)
	if err != nil {
		return nil, err
	}
	return classes, nil
}

// ListClassQuizzes returns the quizzes of a class with availability overlay.
func (c *Client) ListClassQuizzes(ctx context.Context, classID string) ([]model.QuizSummary, error) {
	var quizzes []model.QuizSummary
	err := c.session.Do(ctx, session.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/student/classes/%s/quizzes", url.PathEscape(classID)),
	}, &quizzes)
	if err != nil {
		return nil, err
	}
	return quizzes, nil
}

// StartQuiz requests a new attempt. The server samples the question pool and
// owns the attempt identity; rejections (not enrolled, unpublished,
// attempts exhausted) surface as *session.APIError.
func (c *Client) StartQuiz(ctx context.Context, quizID string) (*model.StartedAttempt, error) {
	var attempt model.StartedAttempt
	err := c.session.Do(ctx, session.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/student/quizzes/%s/start", url.PathEscape(quizID)),
	}, &attempt)
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// SubmitAttempt submits the full answer sheet and returns the graded result.
func (c *Client) SubmitAttempt(ctx context.Context, attemptID string, answers []model.Answer) (*model.AttemptResult, error) {
	var result model.AttemptResult
	err := c.session.Do(ctx, session.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/student/attempts/%s/submit", url.PathEscape(attemptID)),
		Body:   model.SubmitRequest{Answers: answers},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetResults re-fetches the graded result of a completed attempt.
func (c *Client) GetResults(ctx context.Context, attemptID string) (*model.AttemptResult, error) {
	var result model.AttemptResult
	err := c.session.Do(ctx, session.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/student/attempts/%s/results", url.PathEscape(attemptID)),
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetHistory returns the student's past attempts, newest first.
func (c *Client) GetHistory(ctx context.Context) ([]model.AttemptSummary, error) {
	var history []model.AttemptSummary
	err := c.session.Do(ctx, session.Request{
		Method: http.MethodGet,
		Path:   "/student/history",
	}, &history)
	if err != nil {
		return nil, err
	}
	return history, nil
}
