package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prperemyshlev/datahub-healthcheck/internal/domain"
	"github.com/prperemyshlev/datahub-healthcheck/pkg/database"
)

// MaxListLimit caps how many runs List returns
const MaxListLimit = 100

// runRepository implements RunRepository interface
type runRepository struct {
	db *database.Postgres
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *database.Postgres) RunRepository {
	return &runRepository{db: db}
}

// Save stores a completed run
func (r *runRepository) Save(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO runs (id, started_at, finished_at, success, total, failed, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	report, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = r.db.DB.ExecContext(ctx, query,
		run.ID,
		run.StartedAt,
		run.FinishedAt,
		run.Success,
		run.Total,
		run.Failed,
		report,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return fmt.Errorf("run %s: %w", run.ID, ErrDuplicateRun)
		}
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// Latest returns the most recently started run
func (r *runRepository) Latest(ctx context.Context) (*domain.Run, error) {
	query := `
		SELECT id, started_at, finished_at, success, total, failed, report
		FROM runs
		ORDER BY started_at DESC
		LIMIT 1
	`

	run, err := scanRun(r.db.DB.QueryRowContext(ctx, query))
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// GetByID retrieves a run by its id
func (r *runRepository) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	query := `
		SELECT id, started_at, finished_at, success, total, failed, report
		FROM runs
		WHERE id = $1
	`

	run, err := scanRun(r.db.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// List returns up to limit runs, newest first
func (r *runRepository) List(ctx context.Context, limit int) ([]*domain.Run, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `
		SELECT id, started_at, finished_at, success, total, failed, report
		FROM runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.db.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	run := &domain.Run{Report: domain.NewReport()}
	var report []byte

	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Success,
		&run.Total,
		&run.Failed,
		&report,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(report, run.Report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}

	return run, nil
}
