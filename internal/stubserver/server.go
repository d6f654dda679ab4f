package stubserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/uniquiz/quiz-client/internal/config"
	"github.com/uniquiz/quiz-client/internal/response"
	"github.com/uniquiz/quiz-client/internal/validator"
)

// NewRouter wires the stub's route groups and middlewares.
func NewRouter(cfg *config.Config, store *Store, log zerolog.Logger) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	validator.Setup()

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "X-Telegram-Init-Data"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	issuer := NewTokenIssuer(cfg)
	h := NewHandler(store, issuer, log)

	v1 := router.Group("/api/v1")

	// ─── Public ────────────────────────────────────────────────────────
	auth := v1.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
	}

	// ─── Student (JWT) ─────────────────────────────────────────────────
	student := v1.Group("/student")
	student.Use(RequireStudentJWT(issuer))
	{
		student.GET("/profile", h.GetProfile)
		student.GET("/classes", h.ListClasses)
		student.GET("/classes/:class_id/quizzes", h.ListClassQuizzes)
		student.POST("/quizzes/:quiz_id/start", h.StartQuiz)
		student.POST("/attempts/:attempt_id/submit", h.SubmitAttempt)
		student.GET("/attempts/:attempt_id/results", h.GetResults)
		student.GET("/history", h.GetHistory)
	}

	return router
}
