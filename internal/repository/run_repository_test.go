package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/datahub-healthcheck/internal/domain"
	"github.com/prperemyshlev/datahub-healthcheck/pkg/database"
	"github.com/stretchr/testify/suite"
)

type RunRepositorySuite struct {
	suite.Suite
	Postgres *database.Postgres
	Repo     RunRepository
}

// TestRunRepositorySuite needs a disposable database in TEST_POSTGRES_DSN
func TestRunRepositorySuite(t *testing.T) {
	if os.Getenv("TEST_POSTGRES_DSN") == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	suite.Run(t, new(RunRepositorySuite))
}

func (s *RunRepositorySuite) SetupSuite() {
	pg, err := database.NewPostgres(context.Background(), os.Getenv("TEST_POSTGRES_DSN"))
	s.Require().NoError(err)
	s.Require().NoError(pg.Migrate())

	s.Postgres = pg
	s.Repo = NewRunRepository(pg)
}

func (s *RunRepositorySuite) TearDownSuite() {
	if s.Postgres != nil {
		_ = s.Postgres.Close()
	}
}

func (s *RunRepositorySuite) SetupTest() {
	_, err := s.Postgres.DB.Exec(`TRUNCATE runs`)
	s.Require().NoError(err)
}

func newRun(startedAt time.Time, success bool) *domain.Run {
	report := domain.NewReport()
	report.Append(domain.GroupFlowManager, domain.Pass("Latest revision: status 200"))
	if !success {
		report.Append(domain.GroupAuth, domain.Fail("Auth public key: status 200", "Unexpected status code: Expected %d, but Received %d", 200, 500))
	}
	total, failed := report.Summary()
	return &domain.Run{
		ID:         uuid.New().String(),
		StartedAt:  startedAt.UTC(),
		FinishedAt: startedAt.Add(2 * time.Minute).UTC(),
		Success:    success,
		Total:      total,
		Failed:     failed,
		Report:     report,
	}
}

func (s *RunRepositorySuite) TestSaveAndGet() {
	ctx := context.Background()
	run := newRun(time.Now().Truncate(time.Second), false)
	s.Require().NoError(s.Repo.Save(ctx, run))

	got, err := s.Repo.GetByID(ctx, run.ID)
	s.Require().NoError(err)
	s.Equal(run.ID, got.ID)
	s.Equal(2, got.Total)
	s.Equal(1, got.Failed)
	s.True(run.StartedAt.Equal(got.StartedAt))
	s.Equal([]string{domain.GroupFlowManager, domain.GroupAuth}, got.Report.Groups())
}

func (s *RunRepositorySuite) TestSaveDuplicate() {
	ctx := context.Background()
	run := newRun(time.Now(), true)
	s.Require().NoError(s.Repo.Save(ctx, run))

	s.ErrorIs(s.Repo.Save(ctx, run), ErrDuplicateRun)
}

func (s *RunRepositorySuite) TestLatestAndList() {
	ctx := context.Background()
	_, err := s.Repo.Latest(ctx)
	s.ErrorIs(err, ErrNotFound)

	base := time.Now().Truncate(time.Second)
	older, newer := newRun(base.Add(-time.Hour), true), newRun(base, false)
	s.Require().NoError(s.Repo.Save(ctx, older))
	s.Require().NoError(s.Repo.Save(ctx, newer))

	latest, err := s.Repo.Latest(ctx)
	s.Require().NoError(err)
	s.Equal(newer.ID, latest.ID)

	runs, err := s.Repo.List(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(runs, 2)
	s.Equal(newer.ID, runs[0].ID)
	s.Equal(older.ID, runs[1].ID)

	runs, err = s.Repo.List(ctx, 1)
	s.Require().NoError(err)
	s.Len(runs, 1)
}

func (s *RunRepositorySuite) TestGetByID_NotFound() {
	_, err := s.Repo.GetByID(context.Background(), uuid.New().String())
	s.ErrorIs(err, ErrNotFound)

	_, err = s.Repo.GetByID(context.Background(), "not-a-uuid")
	s.ErrorIs(err, ErrNotFound)
}
