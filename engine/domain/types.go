// Package domain defines core domain types, constants, and validation for the
// ScentMatch recommendation pipeline. It acts as the validation gate at
// pipeline entry points.
package domain

import (
	"fmt"
	"strconv"
	"time"
)

// QuestionnaireAnswers holds a user's identity and their ten freeform
// questionnaire answers. Immutable once received; lives for one request.
type QuestionnaireAnswers struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Q1    string `json:"q1"`
	Q2    string `json:"q2"`
	Q3    string `json:"q3"`
	Q4    string `json:"q4"`
	Q5    string `json:"q5"`
	Q6    string `json:"q6"`
	Q7    string `json:"q7"`
	Q8    string `json:"q8"`
	Q9    string `json:"q9"`
	Q10   string `json:"q10"`
}

// Answers returns the ten answers in question order.
func (a QuestionnaireAnswers) Answers() []string {
	return []string{a.Q1, a.Q2, a.Q3, a.Q4, a.Q5, a.Q6, a.Q7, a.Q8, a.Q9, a.Q10}
}

// Insight is the generated interpretation of a questionnaire: a personality
// summary, an ideal-scent description, a one-word persona label, and the
// derived vector-search query.
type Insight struct {
	Characteristics string `json:"characteristics"`
	IdealScent      string `json:"ideal_scent"`
	Persona         string `json:"persona"`
	Query           string `json:"query"`
}

// PerfumeRecord is a full perfume row fetched from the relational store.
// The schema is owned by the store, so the record stays opaque here.
type PerfumeRecord map[string]any

// ID returns the record's id column as a string, or "" if absent.
func (r PerfumeRecord) ID() string {
	return stringify(r["id"])
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// JSON decoding yields float64 for numeric columns; fmt.Sprint
		// would switch to scientific notation for large ids.
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// TopK is the fixed cardinality bound on similarity matches per request.
const TopK = 5

// ResponseRecorded is the event published after a user response row has been
// persisted. Consumers use it for analytics; delivery is best-effort.
type ResponseRecorded struct {
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Persona    string    `json:"persona"`
	Query      string    `json:"query"`
	MatchIDs   []string  `json:"match_ids"`
	RecordedAt time.Time `json:"recorded_at"`
}
