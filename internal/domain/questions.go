package domain

import (
	"strconv"
	"strings"
)

// RawQuestion is an unvalidated candidate question as submitted by a client or generator.
// The correct option may arrive under either CorrectIndex or the legacy AnswerIndex field.
type RawQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correctIndex,omitempty"`
	AnswerIndex  *int     `json:"answerIndex,omitempty"`
	Explanation  string   `json:"explanation,omitempty"`
}

// NormalizeQuestions validates a candidate list and assigns ordinal ids "0".."n-1".
// Any malformed entry rejects the whole set.
func NormalizeQuestions(raw []RawQuestion) (map[string]QuizQuestion, error) {
	const op = "normalize questions"
	if len(raw) == 0 {
		return nil, Invalid(op, "question list is empty")
	}

	out := make(map[string]QuizQuestion, len(raw))
	for i, item := range raw {
		text := strings.TrimSpace(item.Question)
		if text == "" {
			return nil, Invalid(op, "question %d: text is empty", i)
		}
		// Extra options are rejected, not truncated, so a correct option past the fourth is never dropped.
		if len(item.Options) != OptionsPerQuestion {
			return nil, Invalid(op, "question %d: expected %d options, got %d", i, OptionsPerQuestion, len(item.Options))
		}
		options := make([]string, OptionsPerQuestion)
		for j, opt := range item.Options {
			opt = strings.TrimSpace(opt)
			if opt == "" {
				return nil, Invalid(op, "question %d: option %d is empty", i, j)
			}
			options[j] = opt
		}

		correct, ok := correctIndexOf(item)
		if !ok {
			return nil, Invalid(op, "question %d: missing or out-of-range correct index", i)
		}

		id := strconv.Itoa(i)
		out[id] = QuizQuestion{
			ID:           id,
			Question:     text,
			Options:      options,
			CorrectIndex: correct,
			Explanation:  strings.TrimSpace(item.Explanation),
		}
	}
	return out, nil
}

func correctIndexOf(item RawQuestion) (int, bool) {
	idx := item.CorrectIndex
	if idx == nil {
		idx = item.AnswerIndex
	}
	if idx == nil || *idx < 0 || *idx >= OptionsPerQuestion {
		return 0, false
	}
	return *idx, true
}
