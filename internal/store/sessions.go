package store

import (
	"context"
	"time"

	"eeg-action-service/internal/eeg"
	"eeg-action-service/internal/service/session"
)

// SessionSummary is a stored session without its predictions.
type SessionSummary struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"startedAt"`
	EndedAt       time.Time `json:"endedAt"`
	Outcome       string    `json:"outcome"`
	Accuracy      float64   `json:"accuracy"`
	ExactAccuracy float64   `json:"exactAccuracy"`
	Error         string    `json:"error,omitempty"`
}

// SaveSession stores a finished session and its prediction records.
func (s *Store) SaveSession(ctx context.Context, sess *session.Session) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, ended_at, outcome, accuracy, exact_accuracy, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.StartedAt.UTC().Format(time.RFC3339Nano),
		sess.EndedAt.UTC().Format(time.RFC3339Nano),
		string(sess.Outcome),
		sess.Accuracy(),
		sess.ExactAccuracy(),
		sess.Error,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO session_predictions (session_id, step, capture_id, expected, predicted, confidence, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, rec := range sess.Records {
		if _, err = stmt.ExecContext(ctx, sess.ID, i, rec.CaptureID, int(rec.Expected), int(rec.Predicted),
			rec.Confidence, rec.CapturedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentSessions returns up to limit sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at, outcome, accuracy, exact_accuracy, error
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			sum            SessionSummary
			started, ended string
			errText        *string
		)
		if err := rows.Scan(&sum.ID, &started, &ended, &sum.Outcome, &sum.Accuracy, &sum.ExactAccuracy, &errText); err != nil {
			return nil, err
		}
		sum.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		sum.EndedAt, _ = time.Parse(time.RFC3339Nano, ended)
		if errText != nil {
			sum.Error = *errText
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// SessionRecords returns the prediction records of a stored session in step
// order.
func (s *Store) SessionRecords(ctx context.Context, sessionId string) ([]eeg.PredictionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT capture_id, expected, predicted, confidence, captured_at
		 FROM session_predictions WHERE session_id = ? ORDER BY step`, sessionId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []eeg.PredictionRecord
	for rows.Next() {
		var (
			rec                 eeg.PredictionRecord
			expected, predicted int
			captured            string
		)
		if err := rows.Scan(&rec.CaptureID, &expected, &predicted, &rec.Confidence, &captured); err != nil {
			return nil, err
		}
		rec.Expected = eeg.Action(expected)
		rec.Predicted = eeg.Action(predicted)
		rec.CapturedAt, _ = time.Parse(time.RFC3339Nano, captured)
		out = append(out, rec)
	}
	return out, rows.Err()
}
