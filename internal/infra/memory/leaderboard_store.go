package memory

import (
	"context"
	"sync"

	"async-quiz-service/internal/domain"
)

// LeaderboardStore holds published leaderboards in memory.
type LeaderboardStore struct {
	mu     sync.RWMutex
	boards map[string]domain.Leaderboard
}

func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{boards: make(map[string]domain.Leaderboard)}
}

func (s *LeaderboardStore) Publish(_ context.Context, board domain.Leaderboard) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.boards[board.QuizID]; ok && current.Version > board.Version {
		return false, nil
	}
	entries := make([]domain.LeaderboardEntry, len(board.Entries))
	copy(entries, board.Entries)
	board.Entries = entries
	s.boards[board.QuizID] = board
	return true, nil
}

func (s *LeaderboardStore) Get(_ context.Context, quizID string) (domain.Leaderboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	board, ok := s.boards[quizID]
	if !ok {
		return domain.Leaderboard{QuizID: quizID, Entries: []domain.LeaderboardEntry{}}, nil
	}
	entries := make([]domain.LeaderboardEntry, len(board.Entries))
	copy(entries, board.Entries)
	board.Entries = entries
	return board, nil
}
