package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"async-quiz-service/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const nameLookupConcurrency = 8

// Aggregator rebuilds the published leaderboard from the attempt archive.
type Aggregator struct {
	archive AttemptArchive
	views   LeaderboardStore
	names   ProfileResolver
	hub     *Hub
	now     func() time.Time
	logger  *zap.Logger
}

func NewAggregator(archive AttemptArchive, views LeaderboardStore, names ProfileResolver, hub *Hub, logger *zap.Logger) *Aggregator {
	return NewAggregatorWithClock(archive, views, names, hub, logger, time.Now)
}

// NewAggregatorWithClock allows deterministic timestamps in tests.
func NewAggregatorWithClock(archive AttemptArchive, views LeaderboardStore, names ProfileResolver, hub *Hub, logger *zap.Logger, now func() time.Time) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{archive: archive, views: views, names: names, hub: hub, now: now, logger: logger}
}

// Recompute reads every snapshot of the quiz, ranks them and overwrites the
// published view. Safe to call redundantly; a recompute computed from an older
// archive version never replaces a newer one.
func (a *Aggregator) Recompute(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	snapshots, version, err := a.archive.List(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, domain.Internal("recompute leaderboard", fmt.Errorf("list attempts for %s: %w", quizID, err))
	}

	if err := a.fillNames(ctx, snapshots); err != nil {
		return domain.Leaderboard{}, err
	}

	board := domain.Leaderboard{
		QuizID:    quizID,
		Entries:   domain.Rank(snapshots),
		UpdatedAt: a.now(),
		Version:   version,
	}
	applied, err := a.views.Publish(ctx, board)
	if err != nil {
		return domain.Leaderboard{}, domain.Internal("recompute leaderboard", fmt.Errorf("publish %s: %w", quizID, err))
	}
	if !applied {
		a.logger.Debug("stale leaderboard skipped", zap.String("quiz_id", quizID), zap.Int64("version", version))
		return a.views.Get(ctx, quizID)
	}
	if a.hub != nil {
		a.hub.Broadcast(board)
	}
	return board, nil
}

// RecomputeAll sweeps every quiz with archived attempts. It returns the number
// of quizzes recomputed and the first error encountered.
func (a *Aggregator) RecomputeAll(ctx context.Context) (int, error) {
	ids, err := a.archive.QuizIDs(ctx)
	if err != nil {
		return 0, domain.Internal("recompute all", err)
	}
	var firstErr error
	done := 0
	for _, id := range ids {
		if _, err := a.Recompute(ctx, id); err != nil {
			a.logger.Error("leaderboard sweep failed", zap.String("quiz_id", id), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		done++
	}
	return done, firstErr
}

func (a *Aggregator) fillNames(ctx context.Context, snapshots []domain.AttemptSnapshot) error {
	if a.names == nil {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(nameLookupConcurrency)
	for i := range snapshots {
		if snapshots[i].Name != "" && snapshots[i].Name != snapshots[i].UID {
			continue
		}
		i := i
		g.Go(func() error {
			snapshots[i].Name = a.names.DisplayNameFor(gctx, snapshots[i].UID)
			return nil
		})
	}
	return g.Wait()
}

// Hub fans published leaderboards out to live subscribers of each quiz.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.Leaderboard]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[chan domain.Leaderboard]struct{})}
}

// Subscribe registers a channel for quizID, primed with initial.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(quizID string, initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	h.mu.Lock()
	subs, ok := h.subscribers[quizID]
	if !ok {
		subs = make(map[chan domain.Leaderboard]struct{})
		h.subscribers[quizID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[quizID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.subscribers, quizID)
		}
	}
	return ch, cancel
}

// Broadcast delivers board to every subscriber of its quiz. A full subscriber
// loses its oldest pending board instead of blocking the publisher.
func (h *Hub) Broadcast(board domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[board.QuizID] {
		select {
		case ch <- board:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- board
		}
	}
}

// SubscriberCount reports live subscribers for quizID.
func (h *Hub) SubscriberCount(quizID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[quizID])
}
