package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prperemyshlev/datahub-healthcheck/internal/domain"
)

type memoryStore struct {
	mu   sync.Mutex
	runs []*domain.Run
	err  error
}

func (m *memoryStore) Save(_ context.Context, run *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryStore) Latest(_ context.Context) (*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runs) == 0 {
		return nil, ErrNoReport
	}
	return m.runs[len(m.runs)-1], nil
}

func (m *memoryStore) List(_ context.Context, limit int) ([]*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Run
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

func (m *memoryStore) GetByID(_ context.Context, id string) (*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, ErrNoReport
}

func (s *RunnerSuite) newService(stores ...ReportStore) HealthCheckService {
	factory := func(context.Context) (*Runner, error) {
		return s.newRunner(s.DataHub.URL(), defaultPolicy()), nil
	}
	svc := NewHealthCheckService(factory, nil, nil, stores...)
	s.T().Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc
}

func (s *RunnerSuite) TestService_RunSavesToEveryStore() {
	cache, history := &memoryStore{}, &memoryStore{}
	svc := s.newService(cache, history)

	run, err := svc.Run(context.Background())
	s.Require().NoError(err)

	s.Require().Len(cache.runs, 1)
	s.Require().Len(history.runs, 1)
	s.Equal(run.ID, cache.runs[0].ID)

	latest, err := svc.Latest(context.Background())
	s.Require().NoError(err)
	s.Equal(run.ID, latest.ID)
}

func (s *RunnerSuite) TestService_StoreFailureKeepsRun() {
	svc := s.newService(&memoryStore{err: errors.New("redis down")})

	run, err := svc.Run(context.Background())
	s.Require().NoError(err)

	latest, err := svc.Latest(context.Background())
	s.Require().NoError(err)
	s.Equal(run.ID, latest.ID)
}

func (s *RunnerSuite) TestService_LatestFallsBackToStore() {
	stored := &domain.Run{ID: "stored", Report: domain.NewReport()}
	svc := s.newService(&memoryStore{runs: []*domain.Run{stored}})

	latest, err := svc.Latest(context.Background())
	s.Require().NoError(err)
	s.Equal("stored", latest.ID)
}

func (s *RunnerSuite) TestService_NoReportYet() {
	svc := s.newService()

	_, err := svc.Latest(context.Background())
	s.ErrorIs(err, ErrNoReport)
}

func (s *RunnerSuite) TestService_HistoryDisabled() {
	svc := s.newService()

	_, err := svc.History(context.Background(), 10)
	s.ErrorIs(err, ErrHistoryDisabled)

	_, err = svc.Get(context.Background(), "run-1")
	s.ErrorIs(err, ErrHistoryDisabled)
}

func (s *RunnerSuite) TestService_GetFromHistory() {
	history := &memoryStore{}
	svc := NewHealthCheckService(func(context.Context) (*Runner, error) {
		return s.newRunner(s.DataHub.URL(), defaultPolicy()), nil
	}, history, nil, history)
	s.T().Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	run, err := svc.Run(context.Background())
	s.Require().NoError(err)

	got, err := svc.Get(context.Background(), run.ID)
	s.Require().NoError(err)
	s.Equal(run.ID, got.ID)

	_, err = svc.Get(context.Background(), "missing")
	s.ErrorIs(err, ErrNoReport)
}

func (s *RunnerSuite) TestService_RunsNeverOverlap() {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	s.Clock.OnSleep(func(time.Time) {
		once.Do(func() {
			close(entered)
			<-release
		})
	})

	store := &memoryStore{}
	svc := s.newService(store)

	s.Require().NoError(svc.Trigger(context.Background()))
	<-entered

	_, err := svc.Run(context.Background())
	s.ErrorIs(err, ErrRunInProgress)
	s.ErrorIs(svc.Trigger(context.Background()), ErrRunInProgress)

	close(release)
	s.Eventually(func() bool {
		_, err := svc.Run(context.Background())
		return !errors.Is(err, ErrRunInProgress)
	}, 5*time.Second, 10*time.Millisecond)

	runs, err := store.List(context.Background(), 10)
	s.Require().NoError(err)
	s.Len(runs, 2)
}

func (s *RunnerSuite) TestService_FactoryError() {
	svc := NewHealthCheckService(func(context.Context) (*Runner, error) {
		return nil, errors.New("no identity")
	}, nil, nil)

	_, err := svc.Run(context.Background())
	s.Require().Error(err)
	s.Contains(err.Error(), "no identity")

	// the failed attempt must not leave the service locked
	_, err = svc.Run(context.Background())
	s.NotErrorIs(err, ErrRunInProgress)
}
