package usecases_test

import (
	"context"
	"errors"
	"testing"

	"gatekeeper.backend/internal/domain/entities"
	domainerrors "gatekeeper.backend/internal/domain/errors"
	"gatekeeper.backend/internal/usecases"
	"gatekeeper.backend/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

type sweepFixture struct {
	stores    *testStores
	portals   *usecases.PortalUsecase
	checker   *MockBalanceChecker
	platform  *fakePlatform
	events    *fakeEventLog
	reconcile *usecases.ReconcileUsecase
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()
	stores := newTestStores(t)
	portals := usecases.NewPortalUsecase(stores.portals)
	checker := new(MockBalanceChecker)
	platform := newFakePlatform()
	events := &fakeEventLog{}
	return &sweepFixture{
		stores:    stores,
		portals:   portals,
		checker:   checker,
		platform:  platform,
		events:    events,
		reconcile: usecases.NewReconcileUsecase(portals, stores.members, events, checker, platform, 4, metrics.New()),
	}
}

func (f *sweepFixture) gatedPortal(t *testing.T, communityID, chatID int64, asset string) {
	t.Helper()
	ctx := context.Background()
	p, err := f.portals.GetOrCreate(ctx, communityID)
	require.NoError(t, err)
	_, err = f.portals.SetAsset(ctx, communityID, null.StringFrom(asset))
	require.NoError(t, err)
	_, err = f.portals.SetAmount(ctx, communityID, null.Int64From(10))
	require.NoError(t, err)
	_, err = f.portals.BindChat(ctx, p.Nonce, chatID)
	require.NoError(t, err)
}

func (f *sweepFixture) member(t *testing.T, chatID, userID int64, wallet string) {
	t.Helper()
	require.NoError(t, f.stores.members.Upsert(context.Background(), &entities.MemberRecord{
		ChatID: chatID, UserID: userID, WalletAddress: wallet,
	}))
}

func TestReconcile_EvictsOnlyNonCompliantMembers(t *testing.T) {
	f := newSweepFixture(t)
	f.gatedPortal(t, -1, -10, tokenAddr)
	f.member(t, -10, 1, "0xrich")
	f.member(t, -10, 2, "0xpoor")
	f.member(t, -10, 3, "0xrich2")

	f.checker.On("ValidateAsset", mock.Anything, tokenAddr).Return(nil)
	f.checker.On("Compliant", mock.Anything, mock.Anything, "0xrich").Return(true, nil)
	f.checker.On("Compliant", mock.Anything, mock.Anything, "0xrich2").Return(true, nil)
	f.checker.On("Compliant", mock.Anything, mock.Anything, "0xpoor").Return(false, nil)

	report, err := f.reconcile.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Verified)
	assert.Equal(t, 1, report.Kicked)
	assert.Zero(t, report.FailedKick)
	assert.Zero(t, report.FailedLookup)
	assert.Equal(t, 1, report.Portals)

	assert.Equal(t, []int64{2}, f.platform.removed)
	assert.Equal(t, 1, f.platform.count("ReinstateMember"))
	assert.Equal(t, []int64{2}, f.platform.notified)

	_, err = f.stores.members.Get(context.Background(), -10, 2)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	_, err = f.stores.members.Get(context.Background(), -10, 1)
	assert.NoError(t, err)
	assert.Equal(t, 1, f.events.countType(entities.MembershipEventEvicted))
}

func TestReconcile_RemovalFailureKeepsRecord(t *testing.T) {
	f := newSweepFixture(t)
	f.gatedPortal(t, -1, -10, tokenAddr)
	f.member(t, -10, 2, "0xpoor")
	f.checker.On("ValidateAsset", mock.Anything, tokenAddr).Return(nil)
	f.checker.On("Compliant", mock.Anything, mock.Anything, "0xpoor").Return(false, nil)
	f.platform.fail("RemoveMember", domainerrors.ErrPlatform)

	report, err := f.reconcile.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.FailedKick)
	assert.Zero(t, report.Kicked)

	_, err = f.stores.members.Get(context.Background(), -10, 2)
	assert.NoError(t, err)
	assert.Equal(t, 1, f.events.countType(entities.MembershipEventEvictFailed))
	assert.Zero(t, f.platform.count("NotifyUser"))
}

func TestReconcile_NotificationFailureStillDeletesRecord(t *testing.T) {
	f := newSweepFixture(t)
	f.gatedPortal(t, -1, -10, tokenAddr)
	f.member(t, -10, 2, "0xpoor")
	f.checker.On("ValidateAsset", mock.Anything, tokenAddr).Return(nil)
	f.checker.On("Compliant", mock.Anything, mock.Anything, "0xpoor").Return(false, nil)
	f.platform.fail("NotifyUser", errors.New("bot was blocked by the user"))
	f.platform.fail("ReinstateMember", errors.New("flaky"))

	report, err := f.reconcile.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Kicked)

	_, err = f.stores.members.Get(context.Background(), -10, 2)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestReconcile_LookupFailureNeverEvicts(t *testing.T) {
	f := newSweepFixture(t)
	f.gatedPortal(t, -1, -10, tokenAddr)
	f.member(t, -10, 1, "0xflaky")
	f.member(t, -10, 2, "0xrich")
	f.checker.On("ValidateAsset", mock.Anything, tokenAddr).Return(nil)
	f.checker.On("Compliant", mock.Anything, mock.Anything, "0xflaky").Return(false, domainerrors.ErrNetwork)
	f.checker.On("Compliant", mock.Anything, mock.Anything, "0xrich").Return(true, nil)

	report, err := f.reconcile.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.FailedLookup)
	assert.Equal(t, 1, report.Verified)
	assert.Zero(t, f.platform.count("RemoveMember"))
}

func TestReconcile_MisconfiguredAssetCountsEveryMemberAsFailedLookup(t *testing.T) {
	f := newSweepFixture(t)
	f.gatedPortal(t, -1, -10, "0xbroken")
	f.gatedPortal(t, -2, -20, tokenAddr)
	f.member(t, -10, 1, "0xa")
	f.member(t, -10, 2, "0xb")
	f.member(t, -20, 3, "0xc")

	f.checker.On("ValidateAsset", mock.Anything, "0xbroken").Return(domainerrors.ErrAssetInvalid)
	f.checker.On("ValidateAsset", mock.Anything, tokenAddr).Return(nil)
	f.checker.On("Compliant", mock.Anything, mock.Anything, "0xc").Return(true, nil)

	report, err := f.reconcile.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.FailedLookup)
	assert.Equal(t, 1, report.Verified)
	assert.Zero(t, f.platform.count("RemoveMember"))
	f.checker.AssertNotCalled(t, "Compliant", mock.Anything, mock.Anything, "0xa")
}

func TestReconcile_SkipsUngatedAndUnboundPortals(t *testing.T) {
	f := newSweepFixture(t)
	ctx := context.Background()

	open, err := f.portals.GetOrCreate(ctx, -1)
	require.NoError(t, err)
	_, err = f.portals.BindChat(ctx, open.Nonce, -10)
	require.NoError(t, err)
	f.member(t, -10, 1, "0xa")

	report, err := f.reconcile.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.SweepReport{Duration: report.Duration}, *report)
	f.checker.AssertNotCalled(t, "Compliant", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_ManyMembersBoundedPool(t *testing.T) {
	f := newSweepFixture(t)
	f.gatedPortal(t, -1, -10, tokenAddr)
	for i := int64(1); i <= 40; i++ {
		f.member(t, -10, i, "0xrich")
	}
	f.checker.On("ValidateAsset", mock.Anything, tokenAddr).Return(nil)
	f.checker.On("Compliant", mock.Anything, mock.Anything, "0xrich").Return(true, nil)

	report, err := f.reconcile.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40, report.Verified)
}
