package model

import "time"

// Option is one selectable choice of a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is a question as handed to a student during an attempt.
// Correct-answer data is withheld by the server while the attempt is open.
type Question struct {
	ID           string   `json:"id"`
	QuestionText string   `json:"question_text"`
	ImageURL     string   `json:"image_url,omitempty"`
	Points       int      `json:"points"`
	Options      []Option `json:"options"`
}

// StartedAttempt is the server response to starting a quiz attempt.
// The question sequence is a server-sampled pool and is immutable.
type StartedAttempt struct {
	AttemptID        string     `json:"attempt_id"`
	QuizID           string     `json:"quiz_id"`
	Title            string     `json:"title"`
	TimeLimitMinutes *int       `json:"time_limit_minutes,omitempty"`
	Questions        []Question `json:"questions"`
	StartedAt        time.Time  `json:"started_at"`
}

// Answer is one entry of the submission payload. Unanswered questions are
// submitted with an empty selected_option_id, never omitted.
type Answer struct {
	QuestionID       string `json:"question_id"`
	SelectedOptionID string `json:"selected_option_id"`
}

// SubmitRequest is the full-attempt submission payload.
type SubmitRequest struct {
	Answers []Answer `json:"answers" binding:"required"`
}

// QuestionResult is the graded detail for one question.
type QuestionResult struct {
	QuestionID       string `json:"question_id"`
	QuestionText     string `json:"question_text"`
	SelectedOptionID string `json:"selected_option_id"`
	CorrectOptionID  string `json:"correct_option_id"`
	IsCorrect        bool   `json:"is_correct"`
	Points           int    `json:"points"`
	PointsEarned     int    `json:"points_earned"`
	Explanation      string `json:"explanation,omitempty"`
}

// AttemptResult is the graded outcome of a submitted attempt.
type AttemptResult struct {
	AttemptID    string           `json:"attempt_id"`
	QuizID       string           `json:"quiz_id"`
	QuizTitle    string           `json:"quiz_title"`
	Score        float64          `json:"score"`
	EarnedPoints int              `json:"earned_points"`
	TotalPoints  int              `json:"total_points"`
	PassingScore int              `json:"passing_score"`
	Passed       bool             `json:"passed"`
	SubmittedAt  time.Time        `json:"submitted_at"`
	Questions    []QuestionResult `json:"questions,omitempty"`
}

// AttemptSummary is one row of the student's attempt history.
type AttemptSummary struct {
	AttemptID   string     `json:"attempt_id"`
	QuizID      string     `json:"quiz_id"`
	QuizTitle   string     `json:"quiz_title"`
	Score       *float64   `json:"score,omitempty"`
	Passed      bool       `json:"passed"`
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}
