package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gatekeeper.backend/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweeperStub struct {
	calls  atomic.Int32
	err    error
	report entities.SweepReport
}

func (s *sweeperStub) Sweep(_ context.Context) (*entities.SweepReport, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	report := s.report
	return &report, nil
}

func TestNewMembershipSweepJob_DefaultsInterval(t *testing.T) {
	job := NewMembershipSweepJob(&sweeperStub{}, 0)
	assert.Equal(t, DefaultSweepInterval, job.interval)

	job = NewMembershipSweepJob(&sweeperStub{}, time.Minute)
	assert.Equal(t, time.Minute, job.interval)
}

func TestRunSweep_LogsReportAndErrors(t *testing.T) {
	ok := &sweeperStub{report: entities.SweepReport{Verified: 3, Kicked: 1}}
	NewMembershipSweepJob(ok, time.Minute).runSweep(context.Background())
	require.Equal(t, int32(1), ok.calls.Load())

	failing := &sweeperStub{err: errors.New("redis down")}
	NewMembershipSweepJob(failing, time.Minute).runSweep(context.Background())
	require.Equal(t, int32(1), failing.calls.Load())
}

func TestStart_SweepsOnEveryTick(t *testing.T) {
	stub := &sweeperStub{}
	job := NewMembershipSweepJob(stub, time.Millisecond)

	done := make(chan struct{})
	go func() {
		job.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return stub.calls.Load() >= 2 }, time.Second, time.Millisecond)
	job.Stop()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("job did not stop on Stop()")
	}
}

func TestStartStop_StopsByContext(t *testing.T) {
	job := NewMembershipSweepJob(&sweeperStub{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("job did not stop on context cancel")
	}
}

func TestStop_IsIdempotent(t *testing.T) {
	job := NewMembershipSweepJob(&sweeperStub{}, time.Hour)
	job.Stop()
	assert.NotPanics(t, job.Stop)
}
