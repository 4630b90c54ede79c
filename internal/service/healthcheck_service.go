package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prperemyshlev/datahub-healthcheck/internal/domain"
	"go.uber.org/zap"
)

var (
	// ErrRunInProgress is returned when a run is requested while another is still going
	ErrRunInProgress = errors.New("a health check run is already in progress")

	// ErrHistoryDisabled is returned when no run history store is configured
	ErrHistoryDisabled = errors.New("run history is not enabled")
)

// RunnerFactory builds a fresh runner for every run
type RunnerFactory func(ctx context.Context) (*Runner, error)

// RunHistory lists past runs, newest first, and looks them up by id
type RunHistory interface {
	List(ctx context.Context, limit int) ([]*domain.Run, error)
	GetByID(ctx context.Context, id string) (*domain.Run, error)
}

// HealthCheckService defines the operations exposed by the report API
type HealthCheckService interface {
	Run(ctx context.Context) (*domain.Run, error)
	Trigger(ctx context.Context) error
	Latest(ctx context.Context) (*domain.Run, error)
	History(ctx context.Context, limit int) ([]*domain.Run, error)
	Get(ctx context.Context, id string) (*domain.Run, error)
	Shutdown(ctx context.Context) error
}

// healthCheckService runs the checks one at a time and keeps the latest result
type healthCheckService struct {
	newRunner RunnerFactory
	stores    []ReportStore
	history   RunHistory
	logger    *zap.Logger

	mu      sync.Mutex
	running bool
	latest  *domain.Run

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHealthCheckService creates the service. Completed runs are saved to
// every store; the first store is also the fallback for Latest. history may be nil.
func NewHealthCheckService(newRunner RunnerFactory, history RunHistory, logger *zap.Logger, stores ...ReportStore) HealthCheckService {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &healthCheckService{
		newRunner: newRunner,
		stores:    stores,
		history:   history,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *healthCheckService) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *healthCheckService) release(run *domain.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if run != nil {
		s.latest = run
	}
}

// Run performs a run synchronously
func (s *healthCheckService) Run(ctx context.Context) (*domain.Run, error) {
	if !s.acquire() {
		return nil, ErrRunInProgress
	}
	return s.run(ctx)
}

// Trigger starts a run in the background. The run outlives ctx and is only
// stopped by Shutdown.
func (s *healthCheckService) Trigger(ctx context.Context) error {
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("service is shutting down: %w", err)
	}
	if !s.acquire() {
		return ErrRunInProgress
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.run(s.ctx); err != nil {
			s.logger.Warn("Triggered run did not complete", zap.Error(err))
		}
	}()
	return nil
}

// run expects the running flag to be held
func (s *healthCheckService) run(ctx context.Context) (*domain.Run, error) {
	runner, err := s.newRunner(ctx)
	if err != nil {
		s.release(nil)
		return nil, fmt.Errorf("failed to prepare run: %w", err)
	}

	run, err := runner.Run(ctx)
	if err != nil {
		s.release(nil)
		return run, err
	}

	s.save(ctx, run)
	s.release(run)
	return run, nil
}

func (s *healthCheckService) save(ctx context.Context, run *domain.Run) {
	for _, store := range s.stores {
		if err := store.Save(ctx, run); err != nil {
			s.logger.Error("Failed to store run", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
}

// Latest returns the last completed run, falling back to the first store
func (s *healthCheckService) Latest(ctx context.Context) (*domain.Run, error) {
	s.mu.Lock()
	latest := s.latest
	s.mu.Unlock()

	if latest != nil {
		return latest, nil
	}
	if len(s.stores) == 0 {
		return nil, ErrNoReport
	}

	run, err := s.stores[0].Latest(ctx)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// History lists past runs
func (s *healthCheckService) History(ctx context.Context, limit int) ([]*domain.Run, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.List(ctx, limit)
}

// Get returns a stored run by id
func (s *healthCheckService) Get(ctx context.Context, id string) (*domain.Run, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.GetByID(ctx, id)
}

// Shutdown cancels a triggered run and waits for it to return
func (s *healthCheckService) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
