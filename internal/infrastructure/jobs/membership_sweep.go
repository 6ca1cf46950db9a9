package jobs

import (
	"context"
	"sync"
	"time"

	"gatekeeper.backend/internal/domain/entities"
	"gatekeeper.backend/pkg/logger"
	"go.uber.org/zap"
)

const DefaultSweepInterval = 15 * time.Minute

type memberSweeper interface {
	Sweep(ctx context.Context) (*entities.SweepReport, error)
}

// MembershipSweepJob periodically re-verifies every gated member
type MembershipSweepJob struct {
	sweeper  memberSweeper
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func NewMembershipSweepJob(sweeper memberSweeper, interval time.Duration) *MembershipSweepJob {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &MembershipSweepJob{
		sweeper:  sweeper,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start blocks until ctx is cancelled or Stop is called.
func (j *MembershipSweepJob) Start(ctx context.Context) {
	ctx = logger.WithComponent(ctx, "membership_sweep")
	logger.Info(ctx, "Starting membership sweep job", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Membership sweep job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "Membership sweep job stopped")
			return
		case <-ticker.C:
			j.runSweep(ctx)
		}
	}
}

func (j *MembershipSweepJob) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
}

func (j *MembershipSweepJob) runSweep(ctx context.Context) {
	report, err := j.sweeper.Sweep(ctx)
	if err != nil {
		logger.Error(ctx, "Membership sweep failed", zap.Error(err))
		return
	}

	logger.Info(ctx, "Membership sweep finished",
		zap.Int("portals", report.Portals),
		zap.Int("verified", report.Verified),
		zap.Int("kicked", report.Kicked),
		zap.Int("failed_kick", report.FailedKick),
		zap.Int("failed_lookup", report.FailedLookup),
		zap.Duration("duration", report.Duration),
	)
}
