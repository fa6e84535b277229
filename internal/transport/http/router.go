package http

import (
	"net/http"

	"async-quiz-service/internal/app"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires the REST API and the leaderboard stream onto a gin engine.
func NewRouter(service *app.QuizService, auth *Authenticator, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	h := NewHandler(service)
	ws := NewWSHandler(service, logger)

	api := r.Group("/api/v1", auth.Middleware())
	{
		api.POST("/quizzes", h.CreateQuiz)
		api.GET("/quizzes/:quizId", h.GetQuiz)
		api.POST("/quizzes/:quizId/start", h.StartQuiz)
		api.POST("/quizzes/:quizId/answers", h.SubmitAnswer)
		api.GET("/quizzes/:quizId/leaderboard", h.GetLeaderboard)
		api.GET("/quizzes/:quizId/attempt", h.GetMyAttempt)
		api.GET("/notes/:noteRef/quizzes", h.ListQuizzes)
		api.GET("/notes/:noteRef/attempts", h.ListMyAttempts)
	}
	r.GET("/ws/leaderboard", auth.Middleware(), ws.ServeLeaderboard)
	return r
}
