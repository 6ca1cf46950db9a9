package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"gatekeeper.backend/internal/domain/entities"
	domainerrors "gatekeeper.backend/internal/domain/errors"
	"gatekeeper.backend/internal/domain/repositories"
	"gatekeeper.backend/pkg/logger"
	"gatekeeper.backend/pkg/metrics"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSweepConcurrency = 8

	EvictionNotice = "You have been removed from the group as you no longer meet the token requirements."
)

// ReconcileUsecase re-verifies members of gated chats and evicts those who
// no longer meet the requirement
type ReconcileUsecase struct {
	portals     *PortalUsecase
	memberRepo  repositories.MemberRepository
	eventRepo   repositories.MembershipEventRepository
	checker     BalanceChecker
	platform    ChatPlatform
	concurrency int
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewReconcileUsecase creates a new reconcile usecase. eventRepo may be nil.
func NewReconcileUsecase(
	portals *PortalUsecase,
	memberRepo repositories.MemberRepository,
	eventRepo repositories.MembershipEventRepository,
	checker BalanceChecker,
	platform ChatPlatform,
	concurrency int,
	m *metrics.Metrics,
) *ReconcileUsecase {
	if concurrency <= 0 {
		concurrency = DefaultSweepConcurrency
	}
	return &ReconcileUsecase{
		portals:     portals,
		memberRepo:  memberRepo,
		eventRepo:   eventRepo,
		checker:     checker,
		platform:    platform,
		concurrency: concurrency,
		metrics:     m,
		now:         time.Now,
	}
}

// Sweep checks every member of every gated chat once. A failure for one member
// is counted in the report and never stops the sweep; only a failure to list
// the portals is returned as an error.
func (u *ReconcileUsecase) Sweep(ctx context.Context) (*entities.SweepReport, error) {
	ctx = logger.WithComponent(ctx, "reconciler")
	start := u.now()

	portals, err := u.portals.ListGated(ctx)
	if err != nil {
		return nil, err
	}

	report := &entities.SweepReport{Portals: len(portals)}
	for _, portal := range portals {
		report.Add(u.sweepPortal(ctx, portal))
	}
	report.Duration = u.now().Sub(start)

	u.metrics.ObserveSweep(*report)
	logger.Info(ctx, "Membership sweep finished",
		zap.Int("portals", report.Portals),
		zap.Int("verified", report.Verified),
		zap.Int("kicked", report.Kicked),
		zap.Int("failed_kick", report.FailedKick),
		zap.Int("failed_lookup", report.FailedLookup),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (u *ReconcileUsecase) sweepPortal(ctx context.Context, portal *entities.PortalConfig) entities.SweepReport {
	chatID := portal.BoundChatID.Int64
	members, err := u.memberRepo.ListByChat(ctx, chatID)
	if err != nil {
		logger.Error(ctx, "Failed to list members", zap.Int64("chat_id", chatID), zap.Error(err))
		return entities.SweepReport{}
	}
	if len(members) == 0 {
		return entities.SweepReport{}
	}

	// A misconfigured asset says nothing about the members; leave them alone.
	if err := u.checker.ValidateAsset(ctx, portal.RequiredAsset.String); err != nil {
		logger.Error(ctx, "Skipping chat, asset cannot be resolved",
			zap.Int64("chat_id", chatID),
			zap.String("asset", portal.RequiredAsset.String),
			zap.Error(err),
		)
		return entities.SweepReport{FailedLookup: len(members)}
	}

	var (
		mu     sync.Mutex
		report entities.SweepReport
	)
	requirement := portal.Requirement()

	var g errgroup.Group
	g.SetLimit(u.concurrency)
	for _, member := range members {
		g.Go(func() error {
			outcome := u.checkMember(ctx, requirement, member)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case memberVerified:
				report.Verified++
			case memberKicked:
				report.Kicked++
			case memberKickFailed:
				report.FailedKick++
			case memberLookupFailed:
				report.FailedLookup++
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}

type memberOutcome int

const (
	memberVerified memberOutcome = iota
	memberKicked
	memberKickFailed
	memberLookupFailed
)

func (u *ReconcileUsecase) checkMember(ctx context.Context, requirement entities.AssetRequirement, member *entities.MemberRecord) memberOutcome {
	if ctx.Err() != nil {
		return memberLookupFailed
	}

	ok, err := u.checker.Compliant(ctx, requirement, member.WalletAddress)
	if err != nil {
		level := logger.Warn
		if errors.Is(err, domainerrors.ErrAssetInvalid) {
			level = logger.Error
		}
		level(ctx, "Balance lookup failed",
			zap.Int64("chat_id", member.ChatID),
			zap.Int64("user_id", member.UserID),
			zap.Error(err),
		)
		return memberLookupFailed
	}
	if ok {
		return memberVerified
	}
	return u.evict(ctx, member)
}

func (u *ReconcileUsecase) evict(ctx context.Context, member *entities.MemberRecord) memberOutcome {
	if err := u.platform.RemoveMember(ctx, member.ChatID, member.UserID); err != nil {
		logger.Warn(ctx, "Failed to remove member",
			zap.Int64("chat_id", member.ChatID),
			zap.Int64("user_id", member.UserID),
			zap.Error(err),
		)
		recordEvent(ctx, u.eventRepo, &entities.MembershipEvent{
			ChatID:        member.ChatID,
			UserID:        member.UserID,
			WalletAddress: member.WalletAddress,
			EventType:     entities.MembershipEventEvictFailed,
			Reason:        null.StringFrom(err.Error()),
		})
		return memberKickFailed
	}

	// Removal is a ban; lift it so the user can come back through a new invitation.
	if err := u.platform.ReinstateMember(ctx, member.ChatID, member.UserID); err != nil {
		logger.Warn(ctx, "Failed to lift ban after removal",
			zap.Int64("chat_id", member.ChatID),
			zap.Int64("user_id", member.UserID),
			zap.Error(err),
		)
	}
	if err := u.memberRepo.Delete(ctx, member.ChatID, member.UserID); err != nil {
		logger.Error(ctx, "Failed to delete member record",
			zap.Int64("chat_id", member.ChatID),
			zap.Int64("user_id", member.UserID),
			zap.Error(err),
		)
	}
	if err := u.platform.NotifyUser(ctx, member.UserID, EvictionNotice); err != nil {
		logger.Debug(ctx, "Could not notify evicted member", zap.Int64("user_id", member.UserID), zap.Error(err))
	}

	recordEvent(ctx, u.eventRepo, &entities.MembershipEvent{
		ChatID:        member.ChatID,
		UserID:        member.UserID,
		WalletAddress: member.WalletAddress,
		EventType:     entities.MembershipEventEvicted,
		Reason:        null.StringFrom("holding below requirement"),
	})
	logger.Info(ctx, "Member evicted",
		zap.Int64("chat_id", member.ChatID),
		zap.Int64("user_id", member.UserID),
		zap.String("wallet", member.WalletAddress),
	)
	return memberKicked
}
