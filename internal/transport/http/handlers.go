package http

import (
	"errors"
	"strings"

	"async-quiz-service/internal/app"
	"async-quiz-service/internal/domain"
	"github.com/gin-gonic/gin"
)

// Handler serves the quiz REST API.
type Handler struct {
	service *app.QuizService
}

func NewHandler(service *app.QuizService) *Handler {
	return &Handler{service: service}
}

type startRequest struct {
	DisplayName string `json:"displayName"`
}

type answerRequest struct {
	OptionIdx *int `json:"optionIdx" binding:"required"`
}

func scopeOf(c *gin.Context) app.Scope {
	return app.Scope{
		Principal: principalOf(c),
		GroupRef:  strings.TrimSpace(c.Query("groupRef")),
	}
}

func (h *Handler) CreateQuiz(c *gin.Context) {
	var req app.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.GroupRef == "" {
		req.GroupRef = strings.TrimSpace(c.Query("groupRef"))
	}
	res, err := h.service.CreateQuiz(c.Request.Context(), principalOf(c), req)
	if err != nil {
		fail(c, err, nil)
		return
	}
	created(c, res)
}

func (h *Handler) ListQuizzes(c *gin.Context) {
	items, err := h.service.ListQuizzes(c.Request.Context(), scopeOf(c), c.Param("noteRef"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, gin.H{"items": items})
}

func (h *Handler) GetQuiz(c *gin.Context) {
	detail, err := h.service.GetQuizDetail(c.Request.Context(), scopeOf(c), c.Param("quizId"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, detail)
}

func (h *Handler) StartQuiz(c *gin.Context) {
	var req startRequest
	// the body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	idx, err := h.service.StartOrResume(c.Request.Context(), scopeOf(c), c.Param("quizId"), req.DisplayName)
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, gin.H{"currentIndex": idx})
}

func (h *Handler) SubmitAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "optionIdx is required")
		return
	}
	res, err := h.service.SubmitAnswer(c.Request.Context(), scopeOf(c), c.Param("quizId"), *req.OptionIdx)
	if err != nil {
		if errors.Is(err, domain.ErrFinishIncomplete) {
			fail(c, err, res)
			return
		}
		fail(c, err, nil)
		return
	}
	ok(c, res)
}

func (h *Handler) GetLeaderboard(c *gin.Context) {
	board, err := h.service.GetLeaderboard(c.Request.Context(), scopeOf(c), c.Param("quizId"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, gin.H{"items": board.Entries, "updatedAt": board.UpdatedAt})
}

func (h *Handler) GetMyAttempt(c *gin.Context) {
	attempt, err := h.service.GetMyAttempt(c.Request.Context(), scopeOf(c), c.Param("quizId"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, gin.H{"attempt": attempt})
}

func (h *Handler) ListMyAttempts(c *gin.Context) {
	attempts, err := h.service.ListMyAttempts(c.Request.Context(), scopeOf(c), c.Param("noteRef"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, gin.H{"attempts": attempts})
}
