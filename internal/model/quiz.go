package model

import "time"

// Class is a class the student is enrolled in.
type Class struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	InstructorName string    `json:"instructor_name"`
	EnrolledAt     time.Time `json:"enrolled_at"`
}

// QuizSummary is a quiz as listed in a class, with availability overlay.
type QuizSummary struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	QuestionCount    int    `json:"question_count"`
	TimeLimitMinutes *int   `json:"time_limit_minutes,omitempty"`
	MaxAttempts      int    `json:"max_attempts"`
	AttemptsUsed     int    `json:"attempts_used"`
	IsAvailable      bool   `json:"is_available"`
}
