package domain

import (
	"sort"
	"strconv"
	"time"
)

// JoinParticipant creates or resumes a participant slot. Progress of an existing
// slot is never reset. It reports whether the document changed.
func JoinParticipant(q *Quiz, uid, displayName string, now time.Time) bool {
	if q.Participants == nil {
		q.Participants = make(map[string]*Participant)
	}

	p, ok := q.Participants[uid]
	if !ok {
		start := now
		q.Participants[uid] = &Participant{
			JoinedAt:        now,
			DisplayName:     displayName,
			Connected:       true,
			CurrentIndex:    0,
			QuestionStartAt: &start,
			Score:           0,
			Answers:         make(map[string]Answer),
		}
		return true
	}

	changed := false
	if !p.Connected {
		p.Connected = true
		changed = true
	}
	if p.DisplayName == "" && displayName != "" {
		p.DisplayName = displayName
		changed = true
	}
	if p.QuestionStartAt == nil && !p.Finished {
		start := now
		p.QuestionStartAt = &start
		changed = true
	}
	return changed
}

// SubmitOutcome describes what an answer submission did to the document.
type SubmitOutcome struct {
	Accepted       bool
	FinishedNow    bool
	Index          int
	Correct        bool
	Score          int
	TotalQuestions int
}

// ApplyAnswer runs one step of the participant state machine in place.
// Duplicate, late and out-of-range submissions are rejected without mutation.
func ApplyAnswer(q *Quiz, uid string, optionIdx int, now time.Time) SubmitOutcome {
	p, ok := q.Participants[uid]
	if !ok || p == nil || p.Finished {
		return SubmitOutcome{}
	}

	i := p.CurrentIndex
	question, ok := q.QuestionAt(i)
	if !ok {
		return SubmitOutcome{}
	}
	key := strconv.Itoa(i)
	if _, answered := p.Answers[key]; answered {
		return SubmitOutcome{}
	}

	var elapsed int64
	if p.QuestionStartAt != nil {
		elapsed = now.Sub(*p.QuestionStartAt).Milliseconds()
	}
	if elapsed < 0 {
		elapsed = 0
	}

	correct := optionIdx == question.CorrectIndex
	if p.Answers == nil {
		p.Answers = make(map[string]Answer)
	}
	p.Answers[key] = Answer{OptionIdx: optionIdx, TimeMs: elapsed, Correct: correct}
	if correct {
		p.Score++
	}

	total := len(q.Questions)
	out := SubmitOutcome{Accepted: true, Index: i, Correct: correct, TotalQuestions: total}
	if i+1 >= total {
		finishedAt := now
		p.Finished = true
		p.FinishedAt = &finishedAt
		p.QuestionStartAt = nil
		out.FinishedNow = true
	} else {
		start := now
		p.CurrentIndex = i + 1
		p.QuestionStartAt = &start
	}
	out.Score = p.Score
	return out
}

// Stats recomputes correct count and mean answer time from the answers map.
func Stats(answers map[string]Answer) AttemptStats {
	if len(answers) == 0 {
		return AttemptStats{}
	}
	var total int64
	correct := 0
	for _, a := range answers {
		total += a.TimeMs
		if a.Correct {
			correct++
		}
	}
	n := int64(len(answers))
	return AttemptStats{
		AvgTimeMs:    (total + n/2) / n,
		CorrectCount: correct,
	}
}

// Review lists a participant's answers in question order.
func (p *Participant) Review() AttemptReview {
	answers := make([]AnswerReview, 0, len(p.Answers))
	for key, a := range p.Answers {
		idx, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		answers = append(answers, AnswerReview{QuestionIndex: idx, OptionIdx: a.OptionIdx, TimeMs: a.TimeMs, Correct: a.Correct})
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionIndex < answers[j].QuestionIndex })
	return AttemptReview{
		Score:      p.Score,
		Finished:   p.Finished,
		FinishedAt: p.FinishedAt,
		Answers:    answers,
		Stats:      Stats(p.Answers),
	}
}

// Rank orders snapshots by score descending, then average time ascending, and assigns 1-based positions.
func Rank(snapshots []AttemptSnapshot) []LeaderboardEntry {
	sorted := make([]AttemptSnapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.AvgTimeMs != b.AvgTimeMs {
			return a.AvgTimeMs < b.AvgTimeMs
		}
		if !a.FinishedAt.Equal(b.FinishedAt) {
			return a.FinishedAt.Before(b.FinishedAt)
		}
		return a.UID < b.UID
	})

	entries := make([]LeaderboardEntry, len(sorted))
	for i, s := range sorted {
		entries[i] = LeaderboardEntry{
			Position:       i + 1,
			UID:            s.UID,
			Name:           s.Name,
			Score:          s.Score,
			CorrectCount:   s.CorrectCount,
			AvgTimeMs:      s.AvgTimeMs,
			TotalQuestions: s.TotalQuestions,
			FinishedAt:     s.FinishedAt,
		}
	}
	return entries
}
