package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/auth"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/jobs"
	"github.com/straye-as/travel-crm-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubAgencies struct {
	agencies []domain.Agency
	err      error
}

func (s *stubAgencies) ListActive(ctx context.Context) ([]domain.Agency, error) {
	return s.agencies, s.err
}

type recordingReminder struct {
	mu      sync.Mutex
	seen    []uuid.UUID
	failFor uuid.UUID
}

func (r *recordingReminder) RemindStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	agencyID, _ := auth.EffectiveAgencyID(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, agencyID)
	if agencyID == r.failFor {
		return 0, errors.New("boom")
	}
	return 2, nil
}

func agency(name string) domain.Agency {
	a := domain.Agency{Name: name, Slug: name}
	a.ID = uuid.New()
	return a
}

type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.run(ctx) }

func noop(name string) funcJob {
	return funcJob{name: name, run: func(context.Context) error { return nil }}
}

func TestScheduler_RegisterAndRemove(t *testing.T) {
	s := jobs.NewScheduler(time.Minute, zap.NewNop())

	require.NoError(t, s.Register(noop("b"), "@every 1h"))
	require.NoError(t, s.Register(noop("a"), "0 0 3 * * *"))
	assert.Equal(t, []string{"a", "b"}, s.Names())

	assert.ErrorContains(t, s.Register(noop("a"), "@daily"), "already exists")
	assert.Error(t, s.Register(noop("bad"), "not a cron"))

	require.NoError(t, s.Remove("a"))
	assert.Equal(t, []string{"b"}, s.Names())
	assert.Error(t, s.Remove("a"))
}

func TestScheduler_RunNowAppliesTimeout(t *testing.T) {
	s := jobs.NewScheduler(20*time.Millisecond, zap.NewNop())
	slow := funcJob{name: "slow", run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	err := s.RunNow(context.Background(), slow)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	status, ok := s.LastRun("slow")
	require.True(t, ok)
	assert.ErrorIs(t, status.Err, context.DeadlineExceeded)
	assert.False(t, status.StartedAt.IsZero())

	_, ok = s.LastRun("never")
	assert.False(t, ok)
}

func TestStaleBookingsJob_ScopesEachAgency(t *testing.T) {
	first, second, third := agency("first"), agency("second"), agency("third")
	reminder := &recordingReminder{failFor: second.ID}
	job := jobs.NewStaleBookingsJob(
		&stubAgencies{agencies: []domain.Agency{first, second, third}},
		reminder, 72*time.Hour, zap.NewNop(),
	)

	total, err := job.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID, third.ID}, reminder.seen)
}

func TestStaleBookingsJob_ListFailure(t *testing.T) {
	reminder := &recordingReminder{}
	job := jobs.NewStaleBookingsJob(&stubAgencies{err: errors.New("db down")}, reminder, time.Hour, zap.NewNop())

	assert.Error(t, job.Run(context.Background()))
	assert.Empty(t, reminder.seen)
}

type stubSyncer struct {
	calls int
	err   error
}

func (s *stubSyncer) SyncAll(ctx context.Context) (*service.SyncResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &service.SyncResult{Agencies: 1, Fetched: 3, Upserted: 3}, nil
}

func TestOperatorSyncJob_Run(t *testing.T) {
	s := jobs.NewScheduler(time.Minute, zap.NewNop())

	syncer := &stubSyncer{}
	require.NoError(t, s.RunNow(context.Background(), jobs.NewOperatorSyncJob(syncer, zap.NewNop())))
	assert.Equal(t, 1, syncer.calls)

	failing := &stubSyncer{err: service.ErrServiceUnavailable}
	err := s.RunNow(context.Background(), jobs.NewOperatorSyncJob(failing, zap.NewNop()))
	assert.ErrorIs(t, err, service.ErrServiceUnavailable)
	assert.Equal(t, 1, failing.calls)

	status, ok := s.LastRun(jobs.OperatorSyncJobName)
	require.True(t, ok)
	assert.ErrorIs(t, status.Err, service.ErrServiceUnavailable)
}

func TestRegisterJobs(t *testing.T) {
	s := jobs.NewScheduler(time.Minute, zap.NewNop())
	stale := jobs.NewStaleBookingsJob(&stubAgencies{}, &recordingReminder{}, time.Hour, zap.NewNop())
	sync := jobs.NewOperatorSyncJob(&stubSyncer{}, zap.NewNop())

	require.NoError(t, s.Register(stale, "0 0 8 * * *"))
	require.NoError(t, s.Register(sync, "0 30 2 * * *"))
	assert.Equal(t, []string{jobs.OperatorSyncJobName, jobs.StaleBookingsJobName}, s.Names())
}
