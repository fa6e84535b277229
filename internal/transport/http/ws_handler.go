package http

import (
	"net/http"
	"strings"
	"time"

	"async-quiz-service/internal/app"
	"async-quiz-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteTimeout = 10 * time.Second

// WSHandler streams leaderboard updates over websockets.
type WSHandler struct {
	service  *app.QuizService
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type leaderboardPayload struct {
	QuizID    string                    `json:"quizId"`
	Items     []domain.LeaderboardEntry `json:"items"`
	UpdatedAt time.Time                 `json:"updatedAt"`
}

// ServeLeaderboard authorizes the caller before upgrading, then pushes the
// current leaderboard followed by every published update until the client leaves.
func (h *WSHandler) ServeLeaderboard(c *gin.Context) {
	quizID := strings.TrimSpace(c.Query("quizId"))
	if quizID == "" {
		badRequest(c, "missing quizId")
		return
	}

	updates, cancel, err := h.service.WatchLeaderboard(c.Request.Context(), scopeOf(c), quizID)
	if err != nil {
		fail(c, err, nil)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.String("quiz_id", quizID), zap.Error(err))
		return
	}
	defer conn.Close()

	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for {
			select {
			case board, ok := <-updates:
				if !ok {
					return
				}
				msg := outboundMessage[leaderboardPayload]{Type: "leaderboard", Payload: payloadOf(board)}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(msg); err != nil {
					h.logger.Debug("ws write failed", zap.String("quiz_id", quizID), zap.Error(err))
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// Inbound frames carry nothing; reading only detects the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(closeSignals)
	<-writerDone
}

func payloadOf(board domain.Leaderboard) leaderboardPayload {
	items := board.Entries
	if items == nil {
		items = []domain.LeaderboardEntry{}
	}
	return leaderboardPayload{QuizID: board.QuizID, Items: items, UpdatedAt: board.UpdatedAt}
}
