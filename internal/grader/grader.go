// Package grader scores homework submissions deterministically. Only mcq and
// input homework can be auto-graded; interactive and coding submissions wait
// for a teacher.
package grader

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"liveclass/pkg/types"
)

// DefaultTolerance is the absolute tolerance for numeric input questions
// that do not set their own.
const DefaultTolerance = 0.01

// AutoGradable reports whether a homework type is scored without review.
func AutoGradable(homeworkType string) bool {
	return homeworkType == types.HomeworkTypeMCQ || homeworkType == types.HomeworkTypeInput
}

// Score computes an integer percentage in [0,100] for a submission against
// its homework's answer key. The second return is false when the homework
// type requires manual grading, in which case the score is 0.
//
// Scoring is point-weighted with no partial credit per question: a question
// is either fully earned or worth nothing. A homework whose questions sum to
// zero points scores 0.
func Score(hw types.Homework, sub types.Submission) (int, bool) {
	if !AutoGradable(hw.Type) {
		return 0, false
	}

	answers := make(map[string]any, len(sub.Answers))
	for _, a := range sub.Answers {
		answers[a.QuestionID] = a.Value
	}

	total, earned := 0, 0
	for _, q := range hw.Questions {
		total += q.Points
		ans, ok := answers[q.ID]
		if !ok {
			continue
		}
		if questionCorrect(hw.Type, q, ans) {
			earned += q.Points
		}
	}

	if total == 0 {
		return 0, true
	}
	return int(math.Round(100 * float64(earned) / float64(total))), true
}

func questionCorrect(homeworkType string, q types.Question, ans any) bool {
	switch homeworkType {
	case types.HomeworkTypeMCQ:
		return mcqCorrect(q, ans)
	case types.HomeworkTypeInput:
		if q.Expected != nil {
			return numericCorrect(q, ans)
		}
		return textCorrect(q, ans)
	}
	return false
}

func mcqCorrect(q types.Question, ans any) bool {
	if q.CorrectAnswer == nil {
		return false
	}
	idx, ok := asInt(ans)
	return ok && idx == *q.CorrectAnswer
}

func numericCorrect(q types.Question, ans any) bool {
	v, ok := asFloat(ans)
	if !ok {
		return false
	}
	tol := DefaultTolerance
	if q.Tolerance != nil {
		tol = *q.Tolerance
	}
	return math.Abs(v-*q.Expected) <= tol
}

// textCorrect matches against the question's regex when one is set, falling
// back to case-insensitive trimmed equality. A regex that fails to compile
// also falls back to equality rather than failing the student.
func textCorrect(q types.Question, ans any) bool {
	s, ok := ans.(string)
	if !ok {
		return false
	}
	if q.Pattern != "" {
		if re, err := regexp.Compile(q.Pattern); err == nil {
			return re.MatchString(s)
		}
	}
	return strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(q.ExpectedText))
}

// asInt accepts the numeric shapes JSON decoding can produce for an option
// index, plus numeric strings from loosely typed clients.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
