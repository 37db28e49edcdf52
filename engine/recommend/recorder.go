package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/scentmatch/scentmatch/engine/domain"
)

// insertResponseSQL persists one questionnaire interaction. Positional
// params: name, email, the ten answers, the four insight fields, and the
// match IDs serialized as a JSON array string.
const insertResponseSQL = `INSERT INTO user_responses (name, email, q1, q2, q3, q4, q5, q6, q7, q8, q9, q10, characteristics, ideal_scent, persona, query, recommendations)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Execer abstracts write execution against the relational store.
type Execer interface {
	Exec(ctx context.Context, sql string, params []any) error
}

// PublishFunc emits a recorded-response event. Best-effort; may be nil.
type PublishFunc func(ctx context.Context, ev domain.ResponseRecorded) error

// Recorder persists questionnaire interactions.
type Recorder struct {
	store   Execer
	publish PublishFunc
	logger  *slog.Logger
	now     func() time.Time
}

// NewRecorder creates a Recorder. publish may be nil.
func NewRecorder(store Execer, publish PublishFunc, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, publish: publish, logger: logger, now: time.Now}
}

// Record validates identity, then inserts one row. A ValidationError means
// nothing was persisted and the request must fail with a client error; any
// other error means the insert itself failed. Every call inserts a fresh
// row: there is no dedup key, duplicate submissions produce duplicate rows.
func (r *Recorder) Record(ctx context.Context, answers domain.QuestionnaireAnswers, in domain.Insight, matchIDs []string) error {
	if err := domain.ValidateIdentity(answers); err != nil {
		return err
	}

	matchJSON, err := json.Marshal(matchIDs)
	if err != nil {
		return fmt.Errorf("record: marshal match ids: %w", err)
	}

	params := make([]any, 0, 17)
	params = append(params, answers.Name, answers.Email)
	for _, a := range answers.Answers() {
		params = append(params, a)
	}
	params = append(params, in.Characteristics, in.IdealScent, in.Persona, in.Query, string(matchJSON))

	if err := r.store.Exec(ctx, insertResponseSQL, params); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	r.logger.Info("user response recorded", "email", answers.Email, "matches", len(matchIDs))

	if r.publish != nil {
		ev := domain.ResponseRecorded{
			Name:       answers.Name,
			Email:      answers.Email,
			Persona:    in.Persona,
			Query:      in.Query,
			MatchIDs:   matchIDs,
			RecordedAt: r.now(),
		}
		if err := r.publish(ctx, ev); err != nil {
			r.logger.Warn("publish recorded event failed", "err", err)
		}
	}
	return nil
}
