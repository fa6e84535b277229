package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"async-quiz-service/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const attemptFetchConcurrency = 8

// CreateRequest carries a new quiz. GroupRef is empty for personal quizzes.
type CreateRequest struct {
	GroupRef            string               `json:"groupRef,omitempty"`
	NoteRef             string               `json:"noteRef"`
	Title               string               `json:"title,omitempty"`
	QuestionDurationSec int                  `json:"questionDurationSec"`
	Questions           []domain.RawQuestion `json:"questions"`
}

// CreateResult identifies the created quiz.
type CreateResult struct {
	QuizID string          `json:"quizId"`
	Type   domain.QuizType `json:"type"`
}

// SubmitResult is returned for every submission. Score fields are set only when
// the submission finished the attempt.
type SubmitResult struct {
	Accepted       bool `json:"accepted"`
	FinishedNow    bool `json:"finishedNow"`
	CurrentIndex   int  `json:"currentIndex"`
	Score          *int `json:"score,omitempty"`
	CorrectCount   *int `json:"correctCount,omitempty"`
	TotalQuestions *int `json:"totalQuestions,omitempty"`
}

// Scope identifies the caller and the group, if any, the call is made in.
type Scope struct {
	Principal string
	GroupRef  string
}

// Deps groups the collaborators of QuizService.
type Deps struct {
	Documents  DocumentStore
	Index      QuizIndex
	Archive    AttemptArchive
	Views      LeaderboardStore
	Details    DetailRepository
	Membership MembershipValidator
	Profiles   ProfileResolver
	Hub        *Hub
	Logger     *zap.Logger
	Now        func() time.Time
	NewID      func() string
}

// QuizService contains the async quiz use cases.
type QuizService struct {
	docs       DocumentStore
	index      QuizIndex
	archive    AttemptArchive
	views      LeaderboardStore
	details    DetailRepository
	membership MembershipValidator
	profiles   ProfileResolver
	aggregator *Aggregator
	hub        *Hub
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

func NewQuizService(deps Deps) *QuizService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Hub == nil {
		deps.Hub = NewHub()
	}
	if deps.Details == nil {
		deps.Details = NewDetailLoader(deps.Documents)
	}
	if deps.Profiles == nil {
		deps.Profiles = NewNameChain(deps.Logger)
	}
	return &QuizService{
		docs:       deps.Documents,
		index:      deps.Index,
		archive:    deps.Archive,
		views:      deps.Views,
		details:    deps.Details,
		membership: deps.Membership,
		profiles:   deps.Profiles,
		aggregator: NewAggregatorWithClock(deps.Archive, deps.Views, deps.Profiles, deps.Hub, deps.Logger, deps.Now),
		hub:        deps.Hub,
		logger:     deps.Logger,
		now:        deps.Now,
		newID:      deps.NewID,
	}
}

// Aggregator exposes the leaderboard aggregator for maintenance sweeps.
func (s *QuizService) Aggregator() *Aggregator {
	return s.aggregator
}

// CreateQuiz dispatches to the group or personal entry point based on req.GroupRef.
func (s *QuizService) CreateQuiz(ctx context.Context, principal string, req CreateRequest) (CreateResult, error) {
	if strings.TrimSpace(req.GroupRef) != "" {
		return s.CreateGroupQuiz(ctx, principal, req)
	}
	return s.CreatePersonalQuiz(ctx, principal, req)
}

// CreateGroupQuiz creates an org-async quiz shared within req.GroupRef.
func (s *QuizService) CreateGroupQuiz(ctx context.Context, principal string, req CreateRequest) (CreateResult, error) {
	if strings.TrimSpace(req.GroupRef) == "" {
		return CreateResult{}, domain.Invalid("create group quiz", "groupRef is required")
	}
	return s.createQuiz(ctx, Scope{Principal: principal, GroupRef: strings.TrimSpace(req.GroupRef)}, domain.QuizTypeOrgAsync, req)
}

// CreatePersonalQuiz creates a single-user quiz owned by principal.
func (s *QuizService) CreatePersonalQuiz(ctx context.Context, principal string, req CreateRequest) (CreateResult, error) {
	return s.createQuiz(ctx, Scope{Principal: principal}, domain.QuizTypePersonalAsync, req)
}

func (s *QuizService) createQuiz(ctx context.Context, scope Scope, quizType domain.QuizType, req CreateRequest) (CreateResult, error) {
	const op = "create quiz"
	if err := s.authorize(ctx, scope); err != nil {
		return CreateResult{}, err
	}
	noteRef := strings.TrimSpace(req.NoteRef)
	if noteRef == "" {
		return CreateResult{}, domain.Invalid(op, "noteRef is required")
	}
	if req.QuestionDurationSec < 0 {
		return CreateResult{}, domain.Invalid(op, "questionDurationSec must not be negative")
	}
	questions, err := domain.NormalizeQuestions(req.Questions)
	if err != nil {
		return CreateResult{}, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = fmt.Sprintf("Quiz (%d questions)", len(questions))
	}
	quiz := &domain.Quiz{
		ID:                  s.newID(),
		Type:                quizType,
		Title:               title,
		NoteRef:             noteRef,
		GroupRef:            scope.GroupRef,
		CreatorID:           scope.Principal,
		CreatedAt:           s.now(),
		QuestionDurationSec: req.QuestionDurationSec,
		State:               domain.QuizStateActive,
		Questions:           questions,
		Participants:        map[string]*domain.Participant{},
	}

	_, applied, err := s.docs.Transact(ctx, quiz.ID, func(current *domain.Quiz) (*domain.Quiz, error) {
		if current != nil {
			return nil, domain.NewError(domain.KindInternal, op, "quiz id already in use", nil)
		}
		return quiz, nil
	})
	if err != nil {
		return CreateResult{}, domain.Internal(op, err)
	}
	if !applied {
		return CreateResult{}, domain.NewError(domain.KindInternal, op, "quiz was not persisted", nil)
	}
	if err := s.index.Put(ctx, quiz.IndexEntry()); err != nil {
		s.logger.Error("index quiz failed", zap.String("quiz_id", quiz.ID), zap.Error(err))
		return CreateResult{}, domain.Internal(op, err)
	}

	s.logger.Info("quiz created",
		zap.String("quiz_id", quiz.ID),
		zap.String("type", string(quizType)),
		zap.Int("questions", len(questions)),
	)
	return CreateResult{QuizID: quiz.ID, Type: quizType}, nil
}

// ListQuizzes lists the quizzes created for a note within the caller's scope.
func (s *QuizService) ListQuizzes(ctx context.Context, scope Scope, noteRef string) ([]domain.QuizIndexEntry, error) {
	if err := s.authorize(ctx, scope); err != nil {
		return nil, err
	}
	noteRef = strings.TrimSpace(noteRef)
	if noteRef == "" {
		return nil, domain.Invalid("list quizzes", "noteRef is required")
	}
	entries, err := s.index.ListByNote(ctx, noteRef, scope.GroupRef)
	if err != nil {
		return nil, domain.Internal("list quizzes", err)
	}
	out := make([]domain.QuizIndexEntry, 0, len(entries))
	for _, e := range entries {
		if scopeAllows(scope, e.Type, e.GroupRef, e.CreatorID) == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetQuizDetail returns questions and metadata without participant data.
func (s *QuizService) GetQuizDetail(ctx context.Context, scope Scope, quizID string) (domain.QuizDetail, error) {
	return s.accessibleDetail(ctx, scope, quizID)
}

// StartOrResume joins the participant or resumes an existing attempt and
// returns the index of the question to show.
func (s *QuizService) StartOrResume(ctx context.Context, scope Scope, quizID, displayNameHint string) (int, error) {
	if _, err := s.accessibleDetail(ctx, scope, quizID); err != nil {
		return 0, err
	}

	name := strings.TrimSpace(displayNameHint)
	if name == "" {
		name = s.profiles.DisplayNameFor(ctx, scope.Principal)
	}
	now := s.now()

	doc, _, err := s.docs.Transact(ctx, quizID, func(current *domain.Quiz) (*domain.Quiz, error) {
		if current == nil {
			return nil, domain.ErrQuizNotFound
		}
		if !domain.JoinParticipant(current, scope.Principal, name, now) {
			return nil, nil
		}
		return current, nil
	})
	if err != nil {
		return 0, classify("start quiz", err)
	}
	p := doc.Participants[scope.Principal]
	if p == nil {
		return 0, domain.NewError(domain.KindInternal, "start quiz", "participant missing after join", nil)
	}
	return p.CurrentIndex, nil
}

// SubmitAnswer records the answer to the participant's current question.
// Duplicate or late submissions are accepted as no-ops.
func (s *QuizService) SubmitAnswer(ctx context.Context, scope Scope, quizID string, optionIdx int) (SubmitResult, error) {
	const op = "submit answer"
	if _, err := s.accessibleDetail(ctx, scope, quizID); err != nil {
		return SubmitResult{}, err
	}
	if optionIdx < domain.NoAnswer || optionIdx >= domain.OptionsPerQuestion {
		return SubmitResult{}, domain.Invalid(op, "optionIdx %d out of range", optionIdx)
	}
	now := s.now()

	var outcome domain.SubmitOutcome
	doc, _, err := s.docs.Transact(ctx, quizID, func(current *domain.Quiz) (*domain.Quiz, error) {
		outcome = domain.SubmitOutcome{}
		if current == nil {
			return nil, domain.ErrQuizNotFound
		}
		outcome = domain.ApplyAnswer(current, scope.Principal, optionIdx, now)
		if !outcome.Accepted {
			return nil, nil
		}
		return current, nil
	})
	if err != nil {
		return SubmitResult{}, classify(op, err)
	}

	p := doc.Participants[scope.Principal]
	if p == nil {
		return SubmitResult{}, domain.NewError(domain.KindNotFound, op, "participant has not joined this quiz", nil)
	}
	result := SubmitResult{Accepted: outcome.Accepted, FinishedNow: outcome.FinishedNow, CurrentIndex: p.CurrentIndex}
	if !outcome.FinishedNow {
		return result, nil
	}

	stats := domain.Stats(p.Answers)
	score, correct, total := p.Score, stats.CorrectCount, len(doc.Questions)
	result.Score, result.CorrectCount, result.TotalQuestions = &score, &correct, &total

	if err := s.archiveFinish(ctx, doc, scope.Principal, p, stats); err != nil {
		s.logger.Error("finish aggregation failed",
			zap.String("quiz_id", quizID),
			zap.String("uid", scope.Principal),
			zap.Error(err),
		)
		return result, fmt.Errorf("%w: %v", domain.ErrFinishIncomplete, err)
	}
	return result, nil
}

// archiveFinish runs after the finish has committed; failures leave the
// participant finished and only the archive or leaderboard stale.
func (s *QuizService) archiveFinish(ctx context.Context, doc *domain.Quiz, uid string, p *domain.Participant, stats domain.AttemptStats) error {
	name := p.DisplayName
	if name == "" {
		name = s.profiles.DisplayNameFor(ctx, uid)
	}
	finishedAt := s.now()
	if p.FinishedAt != nil {
		finishedAt = *p.FinishedAt
	}
	snapshot := domain.AttemptSnapshot{
		QuizID:         doc.ID,
		UID:            uid,
		Name:           name,
		Score:          p.Score,
		CorrectCount:   stats.CorrectCount,
		AvgTimeMs:      stats.AvgTimeMs,
		TotalQuestions: len(doc.Questions),
		FinishedAt:     finishedAt,
	}
	if _, err := s.archive.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("archive attempt: %w", err)
	}
	if _, err := s.aggregator.Recompute(ctx, doc.ID); err != nil {
		return fmt.Errorf("recompute leaderboard: %w", err)
	}
	return nil
}

// GetLeaderboard returns the published leaderboard of a quiz.
func (s *QuizService) GetLeaderboard(ctx context.Context, scope Scope, quizID string) (domain.Leaderboard, error) {
	if _, err := s.accessibleDetail(ctx, scope, quizID); err != nil {
		return domain.Leaderboard{}, err
	}
	board, err := s.views.Get(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, domain.Internal("get leaderboard", err)
	}
	if board.Entries == nil {
		board.Entries = []domain.LeaderboardEntry{}
	}
	return board, nil
}

// WatchLeaderboard subscribes to live leaderboard updates of a quiz.
// The caller must invoke the returned cancel function.
func (s *QuizService) WatchLeaderboard(ctx context.Context, scope Scope, quizID string) (<-chan domain.Leaderboard, func(), error) {
	board, err := s.GetLeaderboard(ctx, scope, quizID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Subscribe(quizID, board)
	return ch, cancel, nil
}

// GetMyAttempt returns the caller's own attempt, or nil when they never joined.
func (s *QuizService) GetMyAttempt(ctx context.Context, scope Scope, quizID string) (*domain.AttemptReview, error) {
	if _, err := s.accessibleDetail(ctx, scope, quizID); err != nil {
		return nil, err
	}
	doc, err := s.docs.Get(ctx, quizID)
	if err != nil {
		return nil, classify("get attempt", err)
	}
	p, ok := doc.Participants[scope.Principal]
	if !ok || p == nil {
		return nil, nil
	}
	review := p.Review()
	return &review, nil
}

// ListMyAttempts lists the caller's attempts across every quiz of a note.
func (s *QuizService) ListMyAttempts(ctx context.Context, scope Scope, noteRef string) ([]domain.AttemptSummary, error) {
	entries, err := s.ListQuizzes(ctx, scope, noteRef)
	if err != nil {
		return nil, err
	}

	found := make([]*domain.AttemptSummary, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(attemptFetchConcurrency)
	for i, entry := range entries {
		i, quizID := i, entry.ID
		g.Go(func() error {
			doc, err := s.docs.Get(gctx, quizID)
			if errors.Is(err, domain.ErrQuizNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			p, ok := doc.Participants[scope.Principal]
			if !ok || p == nil {
				return nil
			}
			found[i] = &domain.AttemptSummary{QuizID: quizID, Finished: p.Finished, FinishedAt: p.FinishedAt, Score: p.Score}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.Internal("list attempts", err)
	}

	attempts := make([]domain.AttemptSummary, 0, len(found))
	for _, a := range found {
		if a != nil {
			attempts = append(attempts, *a)
		}
	}
	return attempts, nil
}

func (s *QuizService) accessibleDetail(ctx context.Context, scope Scope, quizID string) (domain.QuizDetail, error) {
	if err := s.authorize(ctx, scope); err != nil {
		return domain.QuizDetail{}, err
	}
	if strings.TrimSpace(quizID) == "" {
		return domain.QuizDetail{}, domain.Invalid("load quiz", "quizId is required")
	}
	detail, err := s.details.GetDetail(ctx, quizID)
	if err != nil {
		return domain.QuizDetail{}, classify("load quiz", err)
	}
	if err := scopeAllows(scope, detail.Type, detail.GroupRef, detail.CreatorID); err != nil {
		return domain.QuizDetail{}, err
	}
	return detail, nil
}

func (s *QuizService) authorize(ctx context.Context, scope Scope) error {
	if strings.TrimSpace(scope.Principal) == "" {
		return domain.ErrUnauthenticated
	}
	if scope.GroupRef == "" {
		return nil
	}
	if s.membership == nil {
		return domain.NewError(domain.KindInternal, "authorize", "membership validator not configured", nil)
	}
	ok, err := s.membership.IsMember(ctx, scope.GroupRef, scope.Principal)
	if err != nil {
		return domain.Internal("authorize", err)
	}
	if !ok {
		return domain.ErrNotMember
	}
	return nil
}

func scopeAllows(scope Scope, quizType domain.QuizType, groupRef, creatorID string) error {
	if scope.GroupRef != "" {
		if quizType != domain.QuizTypeOrgAsync || groupRef != scope.GroupRef {
			return domain.ErrWrongQuizType
		}
		return nil
	}
	if quizType != domain.QuizTypePersonalAsync {
		return domain.ErrWrongQuizType
	}
	if creatorID != scope.Principal {
		return domain.ErrNotOwner
	}
	return nil
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return domain.Internal(op, err)
}
