package usecases

import (
	"context"
	"errors"
	"strings"

	"gatekeeper.backend/internal/domain/entities"
	domainerrors "gatekeeper.backend/internal/domain/errors"
	"gatekeeper.backend/internal/domain/repositories"
	"gatekeeper.backend/pkg/logger"
	"gatekeeper.backend/pkg/metrics"
	"go.uber.org/zap"
)

// AdmissionUsecase turns join requests on minted invitations into memberships
type AdmissionUsecase struct {
	invitationRepo repositories.InvitationRepository
	memberRepo     repositories.MemberRepository
	eventRepo      repositories.MembershipEventRepository
	platform       ChatPlatform
	metrics        *metrics.Metrics
}

// NewAdmissionUsecase creates a new admission usecase. eventRepo may be nil.
func NewAdmissionUsecase(
	invitationRepo repositories.InvitationRepository,
	memberRepo repositories.MemberRepository,
	eventRepo repositories.MembershipEventRepository,
	platform ChatPlatform,
	m *metrics.Metrics,
) *AdmissionUsecase {
	return &AdmissionUsecase{
		invitationRepo: invitationRepo,
		memberRepo:     memberRepo,
		eventRepo:      eventRepo,
		platform:       platform,
		metrics:        m,
	}
}

// IsMintedInvitation reports whether req came through an invitation this
// service created.
func IsMintedInvitation(req entities.JoinRequest) bool {
	return strings.HasPrefix(req.InviteName, entities.InvitationNamePrefix) &&
		req.CreatorIsBot &&
		req.CreatesJoinRequest
}

// Admit consumes the invitation behind req and records the member. Requests
// through foreign, unknown or already used links are ignored without error.
// Approving the request and revoking the link are best effort; their failures
// are reported in the result and never undo the membership.
func (u *AdmissionUsecase) Admit(ctx context.Context, req entities.JoinRequest) (*entities.AdmissionResult, error) {
	if !IsMintedInvitation(req) {
		u.metrics.ObserveAdmission(metrics.AdmissionIgnored)
		return &entities.AdmissionResult{}, nil
	}

	invitation, err := u.invitationRepo.Consume(ctx, req.InviteName)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			logger.Info(ctx, "Ignoring join request for unknown or used invitation",
				zap.String("invitation", req.InviteName),
				zap.Int64("user_id", req.UserID),
			)
			u.metrics.ObserveAdmission(metrics.AdmissionIgnored)
			return &entities.AdmissionResult{}, nil
		}
		return nil, err
	}
	if invitation.ChatID != 0 && invitation.ChatID != req.ChatID {
		logger.Warn(ctx, "Ignoring join request for invitation minted for another chat",
			zap.Int64("chat_id", req.ChatID),
			zap.Int64("invitation_chat_id", invitation.ChatID),
		)
		u.metrics.ObserveAdmission(metrics.AdmissionIgnored)
		return &entities.AdmissionResult{}, nil
	}

	member := &entities.MemberRecord{
		ChatID:        req.ChatID,
		UserID:        req.UserID,
		WalletAddress: invitation.WalletAddress,
	}
	if err := u.memberRepo.Upsert(ctx, member); err != nil {
		return nil, err
	}

	result := &entities.AdmissionResult{Admitted: true, Member: member}
	result.SideEffects = append(result.SideEffects,
		bestEffort(ctx, "approve", func() error {
			return u.platform.ApproveJoinRequest(ctx, req.ChatID, req.UserID)
		}),
	)
	if req.InviteLink != "" {
		result.SideEffects = append(result.SideEffects,
			bestEffort(ctx, "revoke", func() error {
				return u.platform.RevokeInvitation(ctx, req.ChatID, req.InviteLink)
			}),
		)
	} else {
		result.SideEffects = append(result.SideEffects, entities.SideEffect{Action: "revoke", Outcome: entities.SideEffectSkipped})
	}

	recordEvent(ctx, u.eventRepo, &entities.MembershipEvent{
		ChatID:        member.ChatID,
		UserID:        member.UserID,
		WalletAddress: member.WalletAddress,
		EventType:     entities.MembershipEventAdmitted,
	})
	u.metrics.ObserveAdmission(metrics.AdmissionAdmitted)
	logger.Info(ctx, "Member admitted",
		zap.Int64("chat_id", member.ChatID),
		zap.Int64("user_id", member.UserID),
		zap.String("wallet", member.WalletAddress),
	)
	return result, nil
}

func bestEffort(ctx context.Context, action string, fn func() error) entities.SideEffect {
	if err := fn(); err != nil {
		logger.Warn(ctx, "Best-effort platform action failed", zap.String("action", action), zap.Error(err))
		return entities.SideEffect{Action: action, Outcome: entities.SideEffectIgnored, Err: err}
	}
	return entities.SideEffect{Action: action, Outcome: entities.SideEffectDone}
}

func recordEvent(ctx context.Context, repo repositories.MembershipEventRepository, event *entities.MembershipEvent) {
	if repo == nil {
		return
	}
	if err := repo.Create(ctx, event); err != nil {
		logger.Warn(ctx, "Failed to record membership event",
			zap.String("event_type", string(event.EventType)),
			zap.Error(err),
		)
	}
}
