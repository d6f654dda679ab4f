// Package stubserver is an in-memory rendition of the quiz service's student
// API. It exists so the client can be developed, demoed and integration
// tested without the production deployment; it holds no persistent state.
package stubserver

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/uniquiz/quiz-client/internal/model"
)

// Store errors, mapped to wire error codes by the handlers.
var (
	ErrInvalidLogin      = errors.New("invalid email or password")
	ErrNotEnrolled       = errors.New("student is not enrolled in this class")
	ErrQuizNotPublished  = errors.New("quiz is not published")
	ErrAttemptsExhausted = errors.New("no attempts remaining")
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrAlreadySubmitted  = errors.New("attempt already submitted")
	ErrNotSubmitted      = errors.New("attempt not submitted yet")
	ErrQuizNotFound      = errors.New("quiz not found")
	ErrClassNotFound     = errors.New("class not found")
)

// Student is a registered student account.
type Student struct {
	ID           string
	Email        string
	FullName     string
	StudentID    string
	PasswordHash []byte
}

// Class is an instructor-owned class.
type Class struct {
	ID             string
	Name           string
	Description    string
	InstructorName string
}

// Question is a bank question including grading data the real server would
// withhold from open attempts.
type Question struct {
	ID              string
	Text            string
	ImageURL        string
	Points          int
	Options         []model.Option
	CorrectOptionID string
	Explanation     string
}

// Quiz is an authored quiz over a class's question bank.
type Quiz struct {
	ID               string
	ClassID          string
	Title            string
	Description      string
	TimeLimitMinutes *int
	MaxAttempts      int
	PoolSize         int // Questions sampled per attempt; 0 means all
	PassingScore     int // Percent required to pass
	Published        bool
	RandomizeOptions bool
	QuestionIDs      []string
}

// Attempt is one student's run of a quiz.
type Attempt struct {
	ID          string
	QuizID      string
	StudentID   string
	QuestionIDs []string // The sampled pool, in presentation order
	StartedAt   time.Time
	Result      *model.AttemptResult
}

// Store holds all stub data behind one mutex.
type Store struct {
	mu          sync.Mutex
	rng         *rand.Rand
	students    map[string]*Student
	classes     map[string]*Class
	enrollments map[string]map[string]time.Time // studentID -> classID -> enrolledAt
	questions   map[string]*Question
	quizzes     map[string]*Quiz
	attempts    map[string]*Attempt
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		students:    make(map[string]*Student),
		classes:     make(map[string]*Class),
		enrollments: make(map[string]map[string]time.Time),
		questions:   make(map[string]*Question),
		quizzes:     make(map[string]*Quiz),
		attempts:    make(map[string]*Attempt),
	}
}

// AuthenticateStudent checks email/password and returns the account.
func (s *Store) AuthenticateStudent(email, password string) (*Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.students {
		if st.Email == email {
			if bcrypt.CompareHashAndPassword(st.PasswordHash, []byte(password)) != nil {
				return nil, ErrInvalidLogin
			}
			return st, nil
		}
	}
	return nil, ErrInvalidLogin
}

// StudentByID looks up a student account.
func (s *Store) StudentByID(id string) (*Student, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	return st, ok
}

// ClassesFor returns the classes a student is enrolled in.
func (s *Store) ClassesFor(studentID string) []model.Class {
	s.mu.Lock()
	defer s.mu.Unlock()

	var classes []model.Class
	for classID, enrolledAt := range s.enrollments[studentID] {
		c, ok := s.classes[classID]
		if !ok {
			continue
		}
		classes = append(classes, model.Class{
			ID:             c.ID,
			Name:           c.Name,
			Description:    c.Description,
			InstructorName: c.InstructorName,
			EnrolledAt:     enrolledAt,
		})
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	return classes
}

// QuizzesFor returns the published quizzes of a class with the student's
// availability overlay.
func (s *Store) QuizzesFor(studentID, classID string) ([]model.QuizSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.classes[classID]; !ok {
		return nil, ErrClassNotFound
	}
	if _, ok := s.enrollments[studentID][classID]; !ok {
		return nil, ErrNotEnrolled
	}

	var quizzes []model.QuizSummary
	for _, q := range s.quizzes {
		if q.ClassID != classID || !q.Published {
			continue
		}
		used := s.attemptsUsed(studentID, q.ID)
		quizzes = append(quizzes, model.QuizSummary{
			ID:               q.ID,
			Title:            q.Title,
			Description:      q.Description,
			QuestionCount:    q.questionsPerAttempt(),
			TimeLimitMinutes: q.TimeLimitMinutes,
			MaxAttempts:      q.MaxAttempts,
			AttemptsUsed:     used,
			IsAvailable:      used < q.MaxAttempts,
		})
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].Title < quizzes[j].Title })
	return quizzes, nil
}

// StartAttempt creates an attempt with a freshly sampled question pool.
func (s *Store) StartAttempt(studentID, quizID string) (*model.StartedAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quiz, ok := s.quizzes[quizID]
	if !ok {
		return nil, ErrQuizNotFound
	}
	if _, ok := s.enrollments[studentID][quiz.ClassID]; !ok {
		return nil, ErrNotEnrolled
	}
	if !quiz.Published {
		return nil, ErrQuizNotPublished
	}
	if s.attemptsUsed(studentID, quizID) >= quiz.MaxAttempts {
		return nil, ErrAttemptsExhausted
	}

	sampled := s.samplePool(quiz)
	attempt := &Attempt{
		ID:          uuid.New().String(),
		QuizID:      quizID,
		StudentID:   studentID,
		QuestionIDs: sampled,
		StartedAt:   time.Now().UTC(),
	}
	s.attempts[attempt.ID] = attempt

	started := &model.StartedAttempt{
		AttemptID:        attempt.ID,
		QuizID:           quizID,
		Title:            quiz.Title,
		TimeLimitMinutes: quiz.TimeLimitMinutes,
		Questions:        make([]model.Question, 0, len(sampled)),
		StartedAt:        attempt.StartedAt,
	}
	for _, qid := range sampled {
		q := s.questions[qid]
		options := make([]model.Option, len(q.Options))
		copy(options, q.Options)
		if quiz.RandomizeOptions {
			s.rng.Shuffle(len(options), func(i, j int) {
				options[i], options[j] = options[j], options[i]
			})
		}
		// Correct-answer data stays server-side while the attempt is open.
		started.Questions = append(started.Questions, model.Question{
			ID:           q.ID,
			QuestionText: q.Text,
			ImageURL:     q.ImageURL,
			Points:       q.Points,
			Options:      options,
		})
	}
	return started, nil
}

// SubmitAttempt grades the answer sheet and finalizes the attempt.
func (s *Store) SubmitAttempt(studentID, attemptID string, answers []model.Answer) (*model.AttemptResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[attemptID]
	if !ok || attempt.StudentID != studentID {
		return nil, ErrAttemptNotFound
	}
	if attempt.Result != nil {
		return nil, ErrAlreadySubmitted
	}

	quiz := s.quizzes[attempt.QuizID]
	selected := make(map[string]string, len(answers))
	for _, a := range answers {
		selected[a.QuestionID] = a.SelectedOptionID
	}

	var earned, total int
	details := make([]model.QuestionResult, 0, len(attempt.QuestionIDs))
	for _, qid := range attempt.QuestionIDs {
		q := s.questions[qid]
		total += q.Points

		choice := selected[qid]
		correct := choice != "" && choice == q.CorrectOptionID
		pointsEarned := 0
		if correct {
			pointsEarned = q.Points
			earned += q.Points
		}
		details = append(details, model.QuestionResult{
			QuestionID:       q.ID,
			QuestionText:     q.Text,
			SelectedOptionID: choice,
			CorrectOptionID:  q.CorrectOptionID,
			IsCorrect:        correct,
			Points:           q.Points,
			PointsEarned:     pointsEarned,
			Explanation:      q.Explanation,
		})
	}

	score := 0.0
	if total > 0 {
		score = math.Round(float64(earned)/float64(total)*10000) / 100
	}

	attempt.Result = &model.AttemptResult{
		AttemptID:    attempt.ID,
		QuizID:       quiz.ID,
		QuizTitle:    quiz.Title,
		Score:        score,
		EarnedPoints: earned,
		TotalPoints:  total,
		PassingScore: quiz.PassingScore,
		Passed:       score >= float64(quiz.PassingScore),
		SubmittedAt:  time.Now().UTC(),
		Questions:    details,
	}
	return attempt.Result, nil
}

// Results returns the graded result of a completed attempt.
func (s *Store) Results(studentID, attemptID string) (*model.AttemptResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[attemptID]
	if !ok || attempt.StudentID != studentID {
		return nil, ErrAttemptNotFound
	}
	if attempt.Result == nil {
		return nil, ErrNotSubmitted
	}
	return attempt.Result, nil
}

// History returns the student's attempts, newest first.
func (s *Store) History(studentID string) []model.AttemptSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	var history []model.AttemptSummary
	for _, a := range s.attempts {
		if a.StudentID != studentID {
			continue
		}
		quiz := s.quizzes[a.QuizID]
		item := model.AttemptSummary{
			AttemptID: a.ID,
			QuizID:    a.QuizID,
			QuizTitle: quiz.Title,
			StartedAt: a.StartedAt,
		}
		if a.Result != nil {
			score := a.Result.Score
			submittedAt := a.Result.SubmittedAt
			item.Score = &score
			item.Passed = a.Result.Passed
			item.SubmittedAt = &submittedAt
		}
		history = append(history, item)
	}
	sort.Slice(history, func(i, j int) bool { return history[i].StartedAt.After(history[j].StartedAt) })
	return history
}

// attemptsUsed counts a student's attempts for a quiz. Caller holds the lock.
func (s *Store) attemptsUsed(studentID, quizID string) int {
	used := 0
	for _, a := range s.attempts {
		if a.StudentID == studentID && a.QuizID == quizID {
			used++
		}
	}
	return used
}

// samplePool picks the attempt's question subset: a shuffled sample of
// PoolSize questions, or the full bank in authored order when PoolSize
// covers it. Caller holds the lock.
func (s *Store) samplePool(quiz *Quiz) []string {
	n := quiz.questionsPerAttempt()
	if n >= len(quiz.QuestionIDs) {
		return append([]string(nil), quiz.QuestionIDs...)
	}
	shuffled := append([]string(nil), quiz.QuestionIDs...)
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}

func (q *Quiz) questionsPerAttempt() int {
	if q.PoolSize <= 0 || q.PoolSize > len(q.QuestionIDs) {
		return len(q.QuestionIDs)
	}
	return q.PoolSize
}

// AddStudent registers a student with a bcrypt-hashed password.
func (s *Store) AddStudent(email, fullName, studentNumber, password string, bcryptCost int) (*Student, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := &Student{
		ID:           uuid.New().String(),
		Email:        email,
		FullName:     fullName,
		StudentID:    studentNumber,
		PasswordHash: hash,
	}
	s.students[st.ID] = st
	return st, nil
}

// AddClass registers a class.
func (s *Store) AddClass(name, description, instructorName string) *Class {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &Class{
		ID:             uuid.New().String(),
		Name:           name,
		Description:    description,
		InstructorName: instructorName,
	}
	s.classes[c.ID] = c
	return c
}

// Enroll enrolls a student in a class.
func (s *Store) Enroll(studentID, classID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enrollments[studentID] == nil {
		s.enrollments[studentID] = make(map[string]time.Time)
	}
	s.enrollments[studentID][classID] = time.Now().UTC()
}

// AddQuestion registers a bank question.
func (s *Store) AddQuestion(q *Question) *Question {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if q.Points == 0 {
		q.Points = 1
	}
	s.questions[q.ID] = q
	return q
}

// AddQuiz registers a quiz.
func (s *Store) AddQuiz(q *Quiz) *Quiz {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if q.MaxAttempts == 0 {
		q.MaxAttempts = 1
	}
	s.quizzes[q.ID] = q
	return q
}
