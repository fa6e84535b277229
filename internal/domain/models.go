package domain

import (
	"sort"
	"strconv"
	"time"
)

// QuizType distinguishes group-scoped from single-user quizzes. Immutable after creation.
type QuizType string

const (
	QuizTypeOrgAsync      QuizType = "org_async"
	QuizTypePersonalAsync QuizType = "personal_async"
)

// QuizStateActive is the only lifecycle state an async quiz has.
const QuizStateActive = "active"

// OptionsPerQuestion is the fixed number of answer options.
const OptionsPerQuestion = 4

// NoAnswer is the option index a client submits when a question was skipped.
const NoAnswer = -1

// QuizQuestion is an MCQ question with exactly four options. Never mutated after creation.
type QuizQuestion struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation,omitempty"`
}

// Answer is a recorded, write-once response to one question.
type Answer struct {
	OptionIdx int   `json:"optionIdx"`
	TimeMs    int64 `json:"timeMs"`
	Correct   bool  `json:"correct"`
}

// Participant is one principal's progress within a quiz.
type Participant struct {
	JoinedAt        time.Time         `json:"joinedAt"`
	DisplayName     string            `json:"displayName,omitempty"`
	Connected       bool              `json:"connected"`
	CurrentIndex    int               `json:"currentIndex"`
	QuestionStartAt *time.Time        `json:"questionStartAt,omitempty"`
	Score           int               `json:"score"`
	Answers         map[string]Answer `json:"answers,omitempty"`
	Finished        bool              `json:"finished"`
	FinishedAt      *time.Time        `json:"finishedAt,omitempty"`
}

// Quiz is the document mutated through the document store's transact primitive.
type Quiz struct {
	ID                  string                  `json:"id"`
	Type                QuizType                `json:"type"`
	Title               string                  `json:"title"`
	NoteRef             string                  `json:"noteRef"`
	GroupRef            string                  `json:"groupRef,omitempty"`
	CreatorID           string                  `json:"creatorId"`
	CreatedAt           time.Time               `json:"createdAt"`
	QuestionDurationSec int                     `json:"questionDurationSec"`
	State               string                  `json:"state"`
	Questions           map[string]QuizQuestion `json:"questions"`
	Participants        map[string]*Participant `json:"participants,omitempty"`
}

// OrderedQuestions returns the questions sorted by their numeric id.
func (q *Quiz) OrderedQuestions() []QuizQuestion {
	out := make([]QuizQuestion, 0, len(q.Questions))
	for _, question := range q.Questions {
		out = append(out, question)
	}
	sort.Slice(out, func(i, j int) bool {
		return questionOrdinal(out[i].ID) < questionOrdinal(out[j].ID)
	})
	return out
}

// QuestionAt returns the question at the given ordinal position.
func (q *Quiz) QuestionAt(i int) (QuizQuestion, bool) {
	if i < 0 || i >= len(q.Questions) {
		return QuizQuestion{}, false
	}
	ordered := q.OrderedQuestions()
	return ordered[i], true
}

// Detail projects the quiz without participant data.
func (q *Quiz) Detail() QuizDetail {
	return QuizDetail{
		ID:                  q.ID,
		Type:                q.Type,
		Title:               q.Title,
		NoteRef:             q.NoteRef,
		GroupRef:            q.GroupRef,
		CreatorID:           q.CreatorID,
		NumQuestions:        len(q.Questions),
		QuestionDurationSec: q.QuestionDurationSec,
		CreatedAt:           q.CreatedAt,
		Questions:           q.OrderedQuestions(),
	}
}

// IndexEntry projects the lightweight listing record.
func (q *Quiz) IndexEntry() QuizIndexEntry {
	return QuizIndexEntry{
		ID:                  q.ID,
		Type:                q.Type,
		Title:               q.Title,
		NoteRef:             q.NoteRef,
		GroupRef:            q.GroupRef,
		CreatorID:           q.CreatorID,
		NumQuestions:        len(q.Questions),
		QuestionDurationSec: q.QuestionDurationSec,
		CreatedAt:           q.CreatedAt,
	}
}

func questionOrdinal(id string) int {
	n, err := strconv.Atoi(id)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

// QuizIndexEntry lists a quiz without loading question bodies.
type QuizIndexEntry struct {
	ID                  string    `json:"id"`
	Type                QuizType  `json:"type"`
	Title               string    `json:"title"`
	NoteRef             string    `json:"noteRef"`
	GroupRef            string    `json:"groupRef,omitempty"`
	CreatorID           string    `json:"creatorId"`
	NumQuestions        int       `json:"numQuestions"`
	QuestionDurationSec int       `json:"questionDurationSec"`
	CreatedAt           time.Time `json:"createdAt"`
}

// QuizDetail carries questions and metadata for attempt and review screens.
type QuizDetail struct {
	ID                  string         `json:"id"`
	Type                QuizType       `json:"type"`
	Title               string         `json:"title"`
	NoteRef             string         `json:"noteRef"`
	GroupRef            string         `json:"groupRef,omitempty"`
	CreatorID           string         `json:"creatorId"`
	NumQuestions        int            `json:"numQuestions"`
	QuestionDurationSec int            `json:"questionDurationSec"`
	CreatedAt           time.Time      `json:"createdAt"`
	Questions           []QuizQuestion `json:"questions"`
}

// AttemptSnapshot is the archived summary of a finished attempt.
type AttemptSnapshot struct {
	QuizID         string    `json:"quizId"`
	UID            string    `json:"uid"`
	Name           string    `json:"name"`
	Score          int       `json:"score"`
	CorrectCount   int       `json:"correctCount"`
	AvgTimeMs      int64     `json:"avgTimeMs"`
	TotalQuestions int       `json:"totalQuestions"`
	FinishedAt     time.Time `json:"finishedAt"`
}

// LeaderboardEntry is one ranked row of the published leaderboard.
type LeaderboardEntry struct {
	Position       int       `json:"position"`
	UID            string    `json:"uid"`
	Name           string    `json:"name"`
	Score          int       `json:"score"`
	CorrectCount   int       `json:"correctCount"`
	AvgTimeMs      int64     `json:"avgTimeMs"`
	TotalQuestions int       `json:"totalQuestions"`
	FinishedAt     time.Time `json:"finishedAt"`
}

// Leaderboard is the materialized ranking of a quiz. Version is the archive
// version the ranking was computed from.
type Leaderboard struct {
	QuizID    string             `json:"quizId"`
	Entries   []LeaderboardEntry `json:"items"`
	UpdatedAt time.Time          `json:"updatedAt"`
	Version   int64              `json:"version"`
}

// AttemptStats are derived from a participant's answers.
type AttemptStats struct {
	AvgTimeMs    int64 `json:"avgTimeMs"`
	CorrectCount int   `json:"correctCount"`
}

// AnswerReview is one answer as shown on the review screen.
type AnswerReview struct {
	QuestionIndex int   `json:"questionIndex"`
	OptionIdx     int   `json:"optionIdx"`
	TimeMs        int64 `json:"timeMs"`
	Correct       bool  `json:"correct"`
}

// AttemptReview is a participant's own attempt.
type AttemptReview struct {
	Score      int            `json:"score"`
	Finished   bool           `json:"finished"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
	Answers    []AnswerReview `json:"answers"`
	Stats      AttemptStats   `json:"stats"`
}

// AttemptSummary is the light record used to list a participant's attempts.
type AttemptSummary struct {
	QuizID     string     `json:"quizId"`
	Finished   bool       `json:"finished"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Score      int        `json:"score"`
}
