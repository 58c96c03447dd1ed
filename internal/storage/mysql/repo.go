// Package mysql keeps the import journal: one row per import run and one per
// skipped input row.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"realty_catalog/internal/domain"
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Skip is one journaled input row that could not be imported.
type Skip struct {
	Row        int    `json:"row"`
	ExternalID string `json:"externalId,omitempty"`
	Reason     string `json:"reason"`
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) StartRun(ctx context.Context, run domain.ImportRun) error {
	_, err := r.db.ExecContext(ctx, insertRunSQL, run.ID, run.Source, run.StartedAt.UTC())
	return err
}

func (r *Repo) RecordSkip(ctx context.Context, runID string, row int, externalID, reason string) error {
	if len(reason) > 512 {
		reason = reason[:512]
	}
	_, err := r.db.ExecContext(ctx, insertSkipSQL, runID, row, valStr(externalID), reason)
	return err
}

func (r *Repo) FinishRun(ctx context.Context, run domain.ImportRun) error {
	res, err := r.db.ExecContext(ctx, finishRunSQL,
		run.FinishedAt.UTC(), run.Created, run.Updated, run.Skipped, run.ID)
	if err != nil {
		return err
	}
	// MySQL reports 0 affected rows when nothing changed, so confirm the run exists.
	if n, _ := res.RowsAffected(); n == 0 {
		_, err = r.GetRun(ctx, run.ID)
		return err
	}
	return nil
}

type scanner interface{ Scan(dest ...any) error }

func scanRun(s scanner) (domain.ImportRun, error) {
	var run domain.ImportRun
	var finished sql.NullTime
	if err := s.Scan(&run.ID, &run.Source, &run.StartedAt, &finished,
		&run.Created, &run.Updated, &run.Skipped); err != nil {
		return domain.ImportRun{}, err
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return run, nil
}

func (r *Repo) GetRun(ctx context.Context, id string) (domain.ImportRun, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, getRunSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ImportRun{}, fmt.Errorf("import run %s: %w", id, domain.ErrNotFound)
	}
	return run, err
}

// ListRuns returns the most recent runs first.
func (r *Repo) ListRuns(ctx context.Context, limit int) ([]domain.ImportRun, error) {
	rows, err := r.db.QueryContext(ctx, listRunsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ImportRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *Repo) Skips(ctx context.Context, runID string) ([]Skip, error) {
	rows, err := r.db.QueryContext(ctx, listSkipsSQL, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Skip
	for rows.Next() {
		var s Skip
		var ext sql.NullString
		if err := rows.Scan(&s.Row, &ext, &s.Reason); err != nil {
			return nil, err
		}
		if ext.Valid {
			s.ExternalID = ext.String
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

var _ domain.ImportJournal = (*Repo)(nil)
