package app

import (
	"context"

	"async-quiz-service/internal/domain"
)

// UpdateFunc computes the next document from the current one. current is nil when
// the document does not exist. Returning a nil document means "no change".
// It may run several times under contention and must not have side effects.
type UpdateFunc func(current *domain.Quiz) (*domain.Quiz, error)

// DocumentStore persists quiz documents with an optimistic read-modify-write primitive.
type DocumentStore interface {
	// Get returns domain.ErrQuizNotFound when the document is absent.
	Get(ctx context.Context, quizID string) (*domain.Quiz, error)
	// Transact applies fn with compare-and-swap semantics, retrying on conflict.
	// It returns the final document and whether fn's result was written.
	Transact(ctx context.Context, quizID string, fn UpdateFunc) (*domain.Quiz, bool, error)
}

// QuizIndex stores the lightweight listing records.
type QuizIndex interface {
	Put(ctx context.Context, entry domain.QuizIndexEntry) error
	ListByNote(ctx context.Context, noteRef, groupRef string) ([]domain.QuizIndexEntry, error)
}

// AttemptArchive stores one finished-attempt snapshot per (quiz, participant).
// Every write bumps a per-quiz version which List reports alongside the snapshots.
type AttemptArchive interface {
	Save(ctx context.Context, snapshot domain.AttemptSnapshot) (int64, error)
	List(ctx context.Context, quizID string) ([]domain.AttemptSnapshot, int64, error)
	QuizIDs(ctx context.Context) ([]string, error)
}

// LeaderboardStore holds the published leaderboard views.
type LeaderboardStore interface {
	// Publish overwrites the view unless a newer archive version is already published.
	Publish(ctx context.Context, board domain.Leaderboard) (bool, error)
	// Get returns an empty leaderboard when none has been published yet.
	Get(ctx context.Context, quizID string) (domain.Leaderboard, error)
}

// DetailRepository serves quiz details (questions + metadata), typically cached.
type DetailRepository interface {
	GetDetail(ctx context.Context, quizID string) (domain.QuizDetail, error)
}

// MembershipValidator confirms a principal belongs to a group.
type MembershipValidator interface {
	IsMember(ctx context.Context, groupRef, principal string) (bool, error)
}

// NameSource is one place a display name may be found. An empty name means "not here".
type NameSource interface {
	LookupName(ctx context.Context, uid string) (string, error)
}

// ProfileResolver maps a principal to a display name and never fails.
type ProfileResolver interface {
	DisplayNameFor(ctx context.Context, uid string) string
}
