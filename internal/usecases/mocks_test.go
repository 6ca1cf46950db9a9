package usecases_test

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"gatekeeper.backend/internal/domain/entities"
	"gatekeeper.backend/internal/infrastructure/repositories"
	"gatekeeper.backend/internal/usecases"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

// Mock TokenLedger
type MockTokenLedger struct {
	mock.Mock
}

func (m *MockTokenLedger) TokenDecimals(ctx context.Context, token string) (uint8, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(uint8), args.Error(1)
}

func (m *MockTokenLedger) GetTokenBalance(ctx context.Context, token, owner string) (*big.Int, error) {
	args := m.Called(ctx, token, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

// Mock BalanceChecker
type MockBalanceChecker struct {
	mock.Mock
}

func (m *MockBalanceChecker) ValidateAsset(ctx context.Context, asset string) error {
	args := m.Called(ctx, asset)
	return args.Error(0)
}

func (m *MockBalanceChecker) Compliant(ctx context.Context, requirement entities.AssetRequirement, wallet string) (bool, error) {
	args := m.Called(ctx, requirement, wallet)
	return args.Bool(0), args.Error(1)
}

// fakePlatform records platform calls. Errors are injected per method name.
type fakePlatform struct {
	mu sync.Mutex

	errs      map[string]error
	admins    map[string]bool // "chat:user"
	botAdmins map[int64]bool
	seq       int

	invitations []entities.Invitation
	calls       []string
	messages    map[int64][]entities.BotMessage
	edits       []entities.BotMessage
	answers     []string
	notified    []int64
	removed     []int64
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		errs:      map[string]error{},
		admins:    map[string]bool{},
		botAdmins: map[int64]bool{},
		messages:  map[int64][]entities.BotMessage{},
	}
}

func (f *fakePlatform) setAdmin(chatID, userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admins[fmt.Sprintf("%d:%d", chatID, userID)] = true
}

func (f *fakePlatform) setBotAdmin(chatID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.botAdmins[chatID] = true
}

func (f *fakePlatform) fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = err
}

func (f *fakePlatform) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	return f.errs[method]
}

func (f *fakePlatform) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *fakePlatform) lastMessage(chatID int64) entities.BotMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[chatID]
	if len(msgs) == 0 {
		return entities.BotMessage{}
	}
	return msgs[len(msgs)-1]
}

func (f *fakePlatform) CreateSingleUseInvitation(ctx context.Context, chatID int64, name string, expiresAt time.Time) (*entities.Invitation, error) {
	if err := f.record("CreateSingleUseInvitation"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	inv := entities.Invitation{Name: name, Link: fmt.Sprintf("https://t.me/+link%d", f.seq)}
	f.invitations = append(f.invitations, inv)
	return &inv, nil
}

func (f *fakePlatform) RevokeInvitation(ctx context.Context, chatID int64, link string) error {
	return f.record("RevokeInvitation")
}

func (f *fakePlatform) ApproveJoinRequest(ctx context.Context, chatID, userID int64) error {
	return f.record("ApproveJoinRequest")
}

func (f *fakePlatform) RemoveMember(ctx context.Context, chatID, userID int64) error {
	if err := f.record("RemoveMember"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, userID)
	return nil
}

func (f *fakePlatform) ReinstateMember(ctx context.Context, chatID, userID int64) error {
	return f.record("ReinstateMember")
}

func (f *fakePlatform) NotifyUser(ctx context.Context, userID int64, text string) error {
	if err := f.record("NotifyUser"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, userID)
	return nil
}

func (f *fakePlatform) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	if err := f.record("IsAdmin"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admins[fmt.Sprintf("%d:%d", chatID, userID)], nil
}

func (f *fakePlatform) IsBotAdmin(ctx context.Context, chatID int64) (bool, error) {
	if err := f.record("IsBotAdmin"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.botAdmins[chatID], nil
}

func (f *fakePlatform) SendMessage(ctx context.Context, chatID int64, msg entities.BotMessage) error {
	if err := f.record("SendMessage"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[chatID] = append(f.messages[chatID], msg)
	return nil
}

func (f *fakePlatform) EditMessage(ctx context.Context, chatID, messageID int64, msg entities.BotMessage) error {
	if err := f.record("EditMessage"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, msg)
	return nil
}

func (f *fakePlatform) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	if err := f.record("AnswerCallback"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

var _ usecases.ChatPlatform = (*fakePlatform)(nil)

// fakeEventLog is an in-memory membership audit log
type fakeEventLog struct {
	mu     sync.Mutex
	events []*entities.MembershipEvent
}

func (l *fakeEventLog) Create(ctx context.Context, event *entities.MembershipEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *fakeEventLog) ListByChat(ctx context.Context, chatID int64, limit int) ([]*entities.MembershipEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*entities.MembershipEvent
	for _, e := range l.events {
		if e.ChatID == chatID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *fakeEventLog) countType(t entities.MembershipEventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.EventType == t {
			n++
		}
	}
	return n
}

// testStores wires the Redis repositories against an in-memory server.
type testStores struct {
	srv         *miniredis.Miniredis
	portals     *repositories.PortalRepository
	invitations *repositories.InvitationRepository
	members     *repositories.MemberRepository
	inputs      *repositories.InputStateRepository
}

func newTestStores(t *testing.T) *testStores {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("skip: miniredis unavailable in this environment: %v", err)
	}
	t.Cleanup(srv.Close)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &testStores{
		srv:         srv,
		portals:     repositories.NewPortalRepository(client),
		invitations: repositories.NewInvitationRepository(client),
		members:     repositories.NewMemberRepository(client),
		inputs:      repositories.NewInputStateRepository(client),
	}
}
