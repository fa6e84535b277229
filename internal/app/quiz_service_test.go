package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"async-quiz-service/internal/app"
	"async-quiz-service/internal/domain"
	"async-quiz-service/internal/infra/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	service *app.QuizService
	docs    *memory.DocumentStore
	archive *memory.AttemptArchive
	views   *memory.LeaderboardStore
	clock   *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)}
	membership := memory.NewMembership()
	for _, uid := range []string{"a", "b", "owner"} {
		membership.Add("g1", uid)
	}
	docs := memory.NewDocumentStore(0)
	archive := memory.NewAttemptArchive()
	views := memory.NewLeaderboardStore()
	ids := 0
	service := app.NewQuizService(app.Deps{
		Documents:  docs,
		Index:      memory.NewQuizIndex(),
		Archive:    archive,
		Views:      views,
		Membership: membership,
		Profiles:   app.NewNameChain(nil, memory.StaticNames{"a": "Alice", "b": "Bob"}),
		Now:        clock.Now,
		NewID: func() string {
			ids++
			return fmt.Sprintf("quiz-%d", ids)
		},
	})
	return &fixture{service: service, docs: docs, archive: archive, views: views, clock: clock}
}

func intPtr(v int) *int { return &v }

// threeQuestions has correct indices 0, 1 and 2.
func threeQuestions() []domain.RawQuestion {
	out := make([]domain.RawQuestion, 3)
	for i := range out {
		out[i] = domain.RawQuestion{
			Question:     fmt.Sprintf("Question %d?", i),
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: intPtr(i),
		}
	}
	return out
}

func groupScope(uid string) app.Scope { return app.Scope{Principal: uid, GroupRef: "g1"} }

func (f *fixture) createGroupQuiz(t *testing.T) string {
	t.Helper()
	res, err := f.service.CreateQuiz(context.Background(), "owner", app.CreateRequest{
		GroupRef:            "g1",
		NoteRef:             "note-1",
		QuestionDurationSec: 30,
		Questions:           threeQuestions(),
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	if res.Type != domain.QuizTypeOrgAsync {
		t.Fatalf("expected org quiz, got %s", res.Type)
	}
	return res.QuizID
}

// play starts uid's attempt and answers each question after the given delay.
func (f *fixture) play(t *testing.T, quizID, uid string, options []int, delays []time.Duration) app.SubmitResult {
	t.Helper()
	ctx := context.Background()
	if _, err := f.service.StartOrResume(ctx, groupScope(uid), quizID, ""); err != nil {
		t.Fatalf("start %s: %v", uid, err)
	}
	var last app.SubmitResult
	for i, opt := range options {
		f.clock.Advance(delays[i])
		res, err := f.service.SubmitAnswer(ctx, groupScope(uid), quizID, opt)
		if err != nil {
			t.Fatalf("submit %s #%d: %v", uid, i, err)
		}
		if !res.Accepted {
			t.Fatalf("submit %s #%d not accepted", uid, i)
		}
		last = res
	}
	return last
}

func TestScoringAndLeaderboardOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quizID := f.createGroupQuiz(t)

	resA := f.play(t, quizID, "a", []int{0, 1, 3}, []time.Duration{2 * time.Second, 3 * time.Second, 4 * time.Second})
	if !resA.FinishedNow || *resA.Score != 2 || *resA.CorrectCount != 2 || *resA.TotalQuestions != 3 {
		t.Fatalf("unexpected result for A: %+v", resA)
	}
	resB := f.play(t, quizID, "b", []int{0, 1, 2}, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second})
	if *resB.Score != 3 {
		t.Fatalf("expected B to score 3, got %d", *resB.Score)
	}

	attempt, err := f.service.GetMyAttempt(ctx, groupScope("a"), quizID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if !attempt.Finished || attempt.Stats.AvgTimeMs != 3000 {
		t.Fatalf("unexpected attempt for A: %+v", attempt)
	}

	board, err := f.service.GetLeaderboard(ctx, groupScope("owner"), quizID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(board.Entries))
	}
	if board.Entries[0].UID != "b" || board.Entries[0].Position != 1 || board.Entries[0].AvgTimeMs != 5000 {
		t.Fatalf("expected B first, got %+v", board.Entries[0])
	}
	if board.Entries[1].UID != "a" || board.Entries[1].Name != "Alice" {
		t.Fatalf("expected Alice second, got %+v", board.Entries[1])
	}
}

func TestSubmitIsWriteOnceAndFinishIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quizID := f.createGroupQuiz(t)

	f.play(t, quizID, "a", []int{0, 1, 2}, []time.Duration{time.Second, time.Second, time.Second})
	before, _ := f.docs.Get(ctx, quizID)
	version := f.docs.Version(quizID)

	res, err := f.service.SubmitAnswer(ctx, groupScope("a"), quizID, 3)
	if err != nil {
		t.Fatalf("late submit: %v", err)
	}
	if res.Accepted || res.FinishedNow || res.Score != nil {
		t.Fatalf("expected no-op after finish, got %+v", res)
	}
	if f.docs.Version(quizID) != version {
		t.Fatalf("late submission wrote the document")
	}
	after, _ := f.docs.Get(ctx, quizID)
	if after.Participants["a"].Score != before.Participants["a"].Score {
		t.Fatalf("score changed after finish")
	}
}

func TestResumeKeepsProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quizID := f.createGroupQuiz(t)

	if _, err := f.service.StartOrResume(ctx, groupScope("a"), quizID, "Al"); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(time.Second)
	if _, err := f.service.SubmitAnswer(ctx, groupScope("a"), quizID, 0); err != nil {
		t.Fatalf("submit: %v", err)
	}

	idx, err := f.service.StartOrResume(ctx, groupScope("a"), quizID, "")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if idx != 1 {
		t.Fatalf("expected resume at index 1, got %d", idx)
	}
	doc, _ := f.docs.Get(ctx, quizID)
	p := doc.Participants["a"]
	if p.Score != 1 || p.DisplayName != "Al" {
		t.Fatalf("resume reset participant: %+v", p)
	}
}

func TestSubmitRejectsOutOfRangeOption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quizID := f.createGroupQuiz(t)
	f.service.StartOrResume(ctx, groupScope("a"), quizID, "")

	for _, opt := range []int{-2, 4} {
		if _, err := f.service.SubmitAnswer(ctx, groupScope("a"), quizID, opt); !domain.IsKind(err, domain.KindInvalidArgument) {
			t.Fatalf("option %d: expected invalid argument, got %v", opt, err)
		}
	}
	res, err := f.service.SubmitAnswer(ctx, groupScope("a"), quizID, domain.NoAnswer)
	if err != nil || !res.Accepted || res.CurrentIndex != 1 {
		t.Fatalf("expected skipped answer to advance, got %+v %v", res, err)
	}
}

func TestSubmitBeforeJoinIsNotFound(t *testing.T) {
	f := newFixture(t)
	quizID := f.createGroupQuiz(t)
	_, err := f.service.SubmitAnswer(context.Background(), groupScope("a"), quizID, 0)
	if !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateRejectsInvalidQuestionSet(t *testing.T) {
	f := newFixture(t)
	questions := threeQuestions()
	questions[2].Options = []string{"a", "b", "c"}
	_, err := f.service.CreateQuiz(context.Background(), "owner", app.CreateRequest{GroupRef: "g1", NoteRef: "note-1", Questions: questions})
	if !domain.IsKind(err, domain.KindInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	items, err := f.service.ListQuizzes(context.Background(), groupScope("owner"), "note-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no quiz created, got %d", len(items))
	}
}

func TestCreateDefaultsTitle(t *testing.T) {
	f := newFixture(t)
	quizID := f.createGroupQuiz(t)
	detail, err := f.service.GetQuizDetail(context.Background(), groupScope("a"), quizID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.Title != "Quiz (3 questions)" || detail.NumQuestions != 3 || detail.QuestionDurationSec != 30 {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if len(detail.Questions) != 3 || detail.Questions[2].ID != "2" {
		t.Fatalf("questions not ordered: %+v", detail.Questions)
	}
}

func TestAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quizID := f.createGroupQuiz(t)

	personal, err := f.service.CreateQuiz(ctx, "a", app.CreateRequest{NoteRef: "note-1", Questions: threeQuestions()})
	if err != nil {
		t.Fatalf("create personal: %v", err)
	}
	if personal.Type != domain.QuizTypePersonalAsync {
		t.Fatalf("expected personal quiz, got %s", personal.Type)
	}

	cases := []struct {
		name   string
		scope  app.Scope
		quizID string
		kind   domain.Kind
	}{
		{"anonymous", app.Scope{GroupRef: "g1"}, quizID, domain.KindUnauthenticated},
		{"non member", app.Scope{Principal: "stranger", GroupRef: "g1"}, quizID, domain.KindPermissionDenied},
		{"group quiz without group", app.Scope{Principal: "a"}, quizID, domain.KindInvalidArgument},
		{"personal quiz in group", groupScope("a"), personal.QuizID, domain.KindInvalidArgument},
		{"someone else's personal quiz", app.Scope{Principal: "b"}, personal.QuizID, domain.KindPermissionDenied},
		{"unknown quiz", groupScope("a"), "missing", domain.KindNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.GetQuizDetail(ctx, tc.scope, tc.quizID)
			if got := domain.KindOf(err); got != tc.kind {
				t.Fatalf("expected %s, got %s (%v)", tc.kind, got, err)
			}
		})
	}

	if _, err := f.service.GetQuizDetail(ctx, app.Scope{Principal: "a"}, personal.QuizID); err != nil {
		t.Fatalf("creator should read own quiz: %v", err)
	}
}

func TestListQuizzesAndAttemptsByScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	groupQuiz := f.createGroupQuiz(t)
	if _, err := f.service.CreateQuiz(ctx, "a", app.CreateRequest{NoteRef: "note-1", Questions: threeQuestions()}); err != nil {
		t.Fatalf("create personal: %v", err)
	}

	groupItems, err := f.service.ListQuizzes(ctx, groupScope("a"), "note-1")
	if err != nil {
		t.Fatalf("list group: %v", err)
	}
	if len(groupItems) != 1 || groupItems[0].ID != groupQuiz {
		t.Fatalf("unexpected group listing %+v", groupItems)
	}
	personalItems, err := f.service.ListQuizzes(ctx, app.Scope{Principal: "a"}, "note-1")
	if err != nil {
		t.Fatalf("list personal: %v", err)
	}
	if len(personalItems) != 1 || personalItems[0].Type != domain.QuizTypePersonalAsync {
		t.Fatalf("unexpected personal listing %+v", personalItems)
	}
	if others, _ := f.service.ListQuizzes(ctx, app.Scope{Principal: "b"}, "note-1"); len(others) != 0 {
		t.Fatalf("personal quiz leaked to another user: %+v", others)
	}

	f.play(t, groupQuiz, "a", []int{0, 0, 0}, []time.Duration{time.Second, time.Second, time.Second})
	attempts, err := f.service.ListMyAttempts(ctx, groupScope("a"), "note-1")
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 1 || !attempts[0].Finished || attempts[0].Score != 1 {
		t.Fatalf("unexpected attempts %+v", attempts)
	}
	none, err := f.service.ListMyAttempts(ctx, groupScope("b"), "note-1")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no attempts for b, got %+v %v", none, err)
	}
	if attempt, err := f.service.GetMyAttempt(ctx, groupScope("b"), groupQuiz); err != nil || attempt != nil {
		t.Fatalf("expected nil attempt for b, got %+v %v", attempt, err)
	}
}

func TestConcurrentFinishesConverge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quizID := f.createGroupQuiz(t)

	uids := []string{"a", "b", "owner"}
	for _, uid := range uids {
		if _, err := f.service.StartOrResume(ctx, groupScope(uid), quizID, ""); err != nil {
			t.Fatalf("start %s: %v", uid, err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(uids))
	for _, uid := range uids {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			for i := 0; i < 3; i++ {
				if _, err := f.service.SubmitAnswer(ctx, groupScope(uid), quizID, i); err != nil {
					errs <- err
					return
				}
			}
		}(uid)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("submit: %v", err)
	}

	doc, _ := f.docs.Get(ctx, quizID)
	for _, uid := range uids {
		p := doc.Participants[uid]
		if p == nil || !p.Finished || p.Score != 3 {
			t.Fatalf("participant %s not finished correctly: %+v", uid, p)
		}
	}
	board, err := f.service.GetLeaderboard(ctx, groupScope("a"), quizID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board.Entries) != len(uids) {
		t.Fatalf("expected %d entries after concurrent finishes, got %d", len(uids), len(board.Entries))
	}
}

type failingArchive struct {
	app.AttemptArchive
}

func (failingArchive) Save(context.Context, domain.AttemptSnapshot) (int64, error) {
	return 0, errors.New("archive down")
}

func TestFinishReportsAggregationFailure(t *testing.T) {
	membership := memory.NewMembership()
	membership.Add("g1", "a")
	docs := memory.NewDocumentStore(0)
	service := app.NewQuizService(app.Deps{
		Documents:  docs,
		Index:      memory.NewQuizIndex(),
		Archive:    failingArchive{memory.NewAttemptArchive()},
		Views:      memory.NewLeaderboardStore(),
		Membership: membership,
	})
	ctx := context.Background()
	q := []domain.RawQuestion{threeQuestions()[0]}
	created, err := service.CreateQuiz(ctx, "a", app.CreateRequest{GroupRef: "g1", NoteRef: "n", Questions: q})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.StartOrResume(ctx, groupScope("a"), created.QuizID, ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	res, err := service.SubmitAnswer(ctx, groupScope("a"), created.QuizID, 0)
	if !errors.Is(err, domain.ErrFinishIncomplete) || domain.KindOf(err) != domain.KindInternal {
		t.Fatalf("expected finish-incomplete internal error, got %v", err)
	}
	if !res.FinishedNow || res.Score == nil || *res.Score != 1 {
		t.Fatalf("expected result alongside the error, got %+v", res)
	}
	doc, _ := docs.Get(ctx, created.QuizID)
	if !doc.Participants["a"].Finished {
		t.Fatalf("finish must stay committed")
	}
}
