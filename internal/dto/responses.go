package dto

import (
	"time"

	"github.com/prperemyshlev/datahub-healthcheck/internal/domain"
)

// RunResponse represents a completed run with its full report
type RunResponse struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Success    bool           `json:"success"`
	Total      int            `json:"total"`
	Failed     int            `json:"failed"`
	Report     *domain.Report `json:"report"`
}

// RunSummary represents a run without its records
type RunSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Success    bool      `json:"success"`
	Total      int       `json:"total"`
	Failed     int       `json:"failed"`
}

// RunListResponse represents a page of run history
type RunListResponse struct {
	Runs []RunSummary `json:"runs"`
}

// GroupResponse represents the records of a single check group
type GroupResponse struct {
	Group   string          `json:"group"`
	Records []domain.Record `json:"records"`
}

// RunAcceptedResponse is returned when a run has been started
type RunAcceptedResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// NewRunResponse converts a run for the API
func NewRunResponse(run *domain.Run) RunResponse {
	return RunResponse{
		RunID:      run.ID,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Success:    run.Success,
		Total:      run.Total,
		Failed:     run.Failed,
		Report:     run.Report,
	}
}

// NewRunSummary converts a run for listings
func NewRunSummary(run *domain.Run) RunSummary {
	return RunSummary{
		RunID:      run.ID,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Success:    run.Success,
		Total:      run.Total,
		Failed:     run.Failed,
	}
}
