package service

import (
	"context"
	"time"

	"github.com/prperemyshlev/datahub-healthcheck/internal/domain"
)

// RecordObserver is notified of every record the runner produces
type RecordObserver interface {
	ObserveRecord(ctx context.Context, group string, rec domain.Record)
	ObserveRun(ctx context.Context, run *domain.Run, elapsed time.Duration)
}

// ReportStore persists completed runs
type ReportStore interface {
	Save(ctx context.Context, run *domain.Run) error
	Latest(ctx context.Context) (*domain.Run, error)
}
