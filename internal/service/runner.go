package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prperemyshlev/datahub-healthcheck/internal/assertion"
	"github.com/prperemyshlev/datahub-healthcheck/internal/client"
	"github.com/prperemyshlev/datahub-healthcheck/internal/domain"
	"github.com/prperemyshlev/datahub-healthcheck/internal/fixture"
	"github.com/prperemyshlev/datahub-healthcheck/internal/waiter"
	"go.uber.org/zap"
)

// RunnerOptions holds everything a Runner needs
type RunnerOptions struct {
	Identity    domain.Identity
	FlowManager *client.FlowManager
	Auth        *client.Auth
	Content     fixture.Content
	DatasetID   string
	Clock       waiter.Clock
	Wait        waiter.Policy
	Logger      *zap.Logger
	Observer    RecordObserver
}

// Runner drives the flow manager and auth check sequences and collects their
// records. A Runner performs a single run and is discarded afterwards.
type Runner struct {
	identity    domain.Identity
	flowManager *client.FlowManager
	auth        *client.Auth
	tokens      *TokenSource
	content     fixture.Content
	datasetID   string
	clock       waiter.Clock
	wait        waiter.Policy
	logger      *zap.Logger
	observer    RecordObserver
	report      *domain.Report
}

// NewRunner creates a runner with an empty report
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.FlowManager == nil || opts.Auth == nil {
		return nil, fmt.Errorf("flow manager and auth clients are required")
	}
	if opts.Content == nil {
		return nil, fmt.Errorf("fixture content is required")
	}
	if opts.DatasetID == "" {
		opts.DatasetID = opts.Content.Dataset()
	}
	if opts.Clock == nil {
		opts.Clock = waiter.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Runner{
		identity:    opts.Identity,
		flowManager: opts.FlowManager,
		auth:        opts.Auth,
		tokens:      NewTokenSource(opts.Auth, opts.Identity.Token),
		content:     opts.Content,
		datasetID:   opts.DatasetID,
		clock:       opts.Clock,
		wait:        opts.Wait,
		logger:      opts.Logger,
		observer:    opts.Observer,
		report:      domain.NewReport(),
	}, nil
}

// Report returns the records collected so far
func (r *Runner) Report() *domain.Report {
	return r.report
}

// Run executes the flow manager checks followed by the auth checks.
// The returned run is never nil; err is only set when ctx ends the run early.
func (r *Runner) Run(ctx context.Context) (*domain.Run, error) {
	run := &domain.Run{
		ID:        uuid.New().String(),
		StartedAt: r.clock.Now(),
		Report:    r.report,
	}
	r.logger.Info("Health check started", zap.String("run_id", run.ID))

	err := r.CheckFlowManager(ctx)
	if err == nil {
		err = r.CheckAuth(ctx)
	}

	run.FinishedAt = r.clock.Now()
	run.Total, run.Failed = r.report.Summary()
	run.Success = err == nil && run.Failed == 0

	elapsed := run.FinishedAt.Sub(run.StartedAt)
	if r.observer != nil {
		r.observer.ObserveRun(ctx, run, elapsed)
	}

	fields := []zap.Field{
		zap.String("run_id", run.ID),
		zap.Int("total", run.Total),
		zap.Int("failed", run.Failed),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		r.logger.Warn("Health check aborted", append(fields, zap.Error(err))...)
		return run, err
	}
	if !run.Success {
		fields = append(fields, zap.Strings("failed_checks", failedNames(run.Report)))
	}
	r.logger.Info("Health check finished", append(fields, zap.Bool("success", run.Success))...)

	return run, nil
}

func failedNames(report *domain.Report) []string {
	failures := report.Failures()
	names := make([]string, len(failures))
	for i, rec := range failures {
		names[i] = rec.Name
	}
	return names
}

func (r *Runner) record(ctx context.Context, group string, recs ...domain.Record) {
	r.report.Append(group, recs...)
	for _, rec := range recs {
		if rec.Success {
			r.logger.Debug("Check passed", zap.String("group", group), zap.String("name", rec.Name))
		} else {
			r.logger.Warn("Check failed",
				zap.String("group", group),
				zap.String("name", rec.Name),
				zap.String("error", rec.Error()),
			)
		}
		if r.observer != nil {
			r.observer.ObserveRecord(ctx, group, rec)
		}
	}
}

// failAll records the same error under every name
func (r *Runner) failAll(ctx context.Context, group string, err error, names ...string) {
	for _, name := range names {
		r.record(ctx, group, assertion.Failed(name, err))
	}
}

// bodyChecks evaluates checks against a decoded body, or fails all of them
// when the body could not be decoded.
func (r *Runner) bodyChecks(ctx context.Context, group string, resp *client.Response, checks ...bodyCheck) {
	body, err := resp.JSON()
	for _, c := range checks {
		if err != nil {
			r.record(ctx, group, assertion.Failed(c.name, err))
			continue
		}
		r.record(ctx, group, c.eval(body))
	}
}

type bodyCheck struct {
	name string
	eval func(body map[string]any) domain.Record
}

func expectField(name, key string, expected any) bodyCheck {
	return bodyCheck{name: name, eval: func(body map[string]any) domain.Record {
		return assertion.Body(name, body, key, expected)
	}}
}

func expectMessage(name, key, expected string) bodyCheck {
	return bodyCheck{name: name, eval: func(body map[string]any) domain.Record {
		return assertion.Message(name, messageOf(body, key), expected)
	}}
}

// messageOf returns the error string under key. For "errors" that is the
// first element of the array.
func messageOf(body map[string]any, key string) string {
	switch v := body[key].(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			s, _ := v[0].(string)
			return s
		}
	}
	return ""
}
