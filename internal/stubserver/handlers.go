package stubserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/uniquiz/quiz-client/internal/model"
	"github.com/uniquiz/quiz-client/internal/response"
	"github.com/uniquiz/quiz-client/internal/validator"
)

// Handler serves the stub's auth and student endpoints.
type Handler struct {
	store  *Store
	issuer *TokenIssuer
	log    zerolog.Logger
}

// NewHandler creates a Handler.
func NewHandler(store *Store, issuer *TokenIssuer, log zerolog.Logger) *Handler {
	return &Handler{
		store:  store,
		issuer: issuer,
		log:    log.With().Str("component", "stub_handler").Logger(),
	}
}

// Login godoc
// POST /api/v1/auth/login
// Exchanges email/password for a credential pair.
func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	student, err := h.store.AuthenticateStudent(req.Email, req.Password)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	creds, err := h.issuer.IssuePair(student)
	if err != nil {
		h.log.Error().Err(err).Msg("Token issue failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, creds)
}

// Refresh godoc
// POST /api/v1/auth/refresh
// Exchanges a refresh token for a new credential pair. Any failure is
// permanent from the client's point of view (logout).
func (h *Handler) Refresh(c *gin.Context) {
	var req model.RefreshRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	claims, err := h.issuer.Validate(req.RefreshToken, TokenTypeRefresh)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrRefreshInvalid)
		return
	}

	student, ok := h.store.StudentByID(claims.Subject)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrRefreshInvalid)
		return
	}

	creds, err := h.issuer.IssuePair(student)
	if err != nil {
		h.log.Error().Err(err).Msg("Token issue failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, creds)
}

// GetProfile godoc
// GET /api/v1/student/profile
func (h *Handler) GetProfile(c *gin.Context) {
	student := h.currentStudent(c)
	if student == nil {
		return
	}

	response.Success(c, http.StatusOK, model.Profile{
		ID:        student.ID,
		Email:     student.Email,
		FullName:  student.FullName,
		StudentID: student.StudentID,
	})
}

// ListClasses godoc
// GET /api/v1/student/classes
func (h *Handler) ListClasses(c *gin.Context) {
	student := h.currentStudent(c)
	if student == nil {
		return
	}

	classes := h.store.ClassesFor(student.ID)
	if classes == nil {
		classes = []model.Class{}
	}
	response.Success(c, http.StatusOK, classes)
}

// ListClassQuizzes godoc
// GET /api/v1/student/classes/:class_id/quizzes
func (h *Handler) ListClassQuizzes(c *gin.Context) {
	student := h.currentStudent(c)
	if student == nil {
		return
	}

	quizzes, err := h.store.QuizzesFor(student.ID, c.Param("class_id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrClassNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, ErrNotEnrolled):
			response.Fail(c, http.StatusForbidden, response.ErrNotEnrolled)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	if quizzes == nil {
		quizzes = []model.QuizSummary{}
	}
	response.Success(c, http.StatusOK, quizzes)
}

// StartQuiz godoc
// POST /api/v1/student/quizzes/:quiz_id/start
// Creates an attempt with a freshly sampled question pool.
func (h *Handler) StartQuiz(c *gin.Context) {
	student := h.currentStudent(c)
	if student == nil {
		return
	}

	started, err := h.store.StartAttempt(student.ID, c.Param("quiz_id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrQuizNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, ErrNotEnrolled):
			response.Fail(c, http.StatusForbidden, response.ErrNotEnrolled)
		case errors.Is(err, ErrQuizNotPublished):
			response.Fail(c, http.StatusBadRequest, response.ErrQuizNotPublished)
		case errors.Is(err, ErrAttemptsExhausted):
			response.Fail(c, http.StatusBadRequest, response.ErrAttemptsExhausted)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	h.log.Info().
		Str("student_id", student.ID).
		Str("attempt_id", started.AttemptID).
		Msg("Attempt started")
	response.Success(c, http.StatusOK, started)
}

// SubmitAttempt godoc
// POST /api/v1/student/attempts/:attempt_id/submit
func (h *Handler) SubmitAttempt(c *gin.Context) {
	student := h.currentStudent(c)
	if student == nil {
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.store.SubmitAttempt(student.ID, c.Param("attempt_id"), req.Answers)
	if err != nil {
		switch {
		case errors.Is(err, ErrAttemptNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, ErrAlreadySubmitted):
			response.Fail(c, http.StatusBadRequest, response.ErrAttemptSubmitted)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	h.log.Info().
		Str("attempt_id", result.AttemptID).
		Float64("score", result.Score).
		Msg("Attempt graded")
	response.Success(c, http.StatusOK, result)
}

// GetResults godoc
// GET /api/v1/student/attempts/:attempt_id/results
func (h *Handler) GetResults(c *gin.Context) {
	student := h.currentStudent(c)
	if student == nil {
		return
	}

	result, err := h.store.Results(student.ID, c.Param("attempt_id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrAttemptNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, ErrNotSubmitted):
			response.Fail(c, http.StatusBadRequest, response.ErrAttemptNotFinished)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetHistory godoc
// GET /api/v1/student/history
func (h *Handler) GetHistory(c *gin.Context) {
	student := h.currentStudent(c)
	if student == nil {
		return
	}

	history := h.store.History(student.ID)
	if history == nil {
		history = []model.AttemptSummary{}
	}
	response.Success(c, http.StatusOK, history)
}

// currentStudent resolves the authenticated student or writes an error
// response and returns nil.
func (h *Handler) currentStudent(c *gin.Context) *Student {
	claims := GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil
	}

	student, ok := h.store.StudentByID(claims.Subject)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return nil
	}
	return student
}
