package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmpush/internal/backend"
	"crmpush/internal/common/logger"
	"crmpush/internal/common/storage"
	"crmpush/internal/models"
	"crmpush/internal/push/feed"
	"crmpush/internal/push/provider"
	"crmpush/internal/push/registration"
	"crmpush/internal/push/token"
	"crmpush/internal/session"
)

// ==========================
// Fakes
// ==========================

// fakeProvider simulates the platform push capability with hand-driven
// event emission.
type fakeProvider struct {
	mu            sync.Mutex
	permission    bool
	token         string
	deleteCalls   int
	msgHandler    provider.Handler
	openedHandler provider.Handler
	tokenHandler  provider.TokenHandler
	initial       *provider.Message
}

func (f *fakeProvider) RequestPermission(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permission, nil
}

func (f *fakeProvider) HasPermission(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permission, nil
}

func (f *fakeProvider) GetToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, nil
}

func (f *fakeProvider) DeleteToken(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	f.token = ""
	return nil
}

func (f *fakeProvider) OnMessage(h provider.Handler) provider.Unsubscribe {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgHandler = h
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.msgHandler = nil
	}
}

func (f *fakeProvider) OnNotificationOpenedApp(h provider.Handler) provider.Unsubscribe {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openedHandler = h
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.openedHandler = nil
	}
}

func (f *fakeProvider) GetInitialNotification(ctx context.Context) (*provider.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := f.initial
	f.initial = nil
	return msg, nil
}

func (f *fakeProvider) OnTokenRefresh(h provider.TokenHandler) provider.Unsubscribe {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenHandler = h
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.tokenHandler = nil
	}
}

func (f *fakeProvider) SetBackgroundMessageHandler(h provider.Handler) {}

func (f *fakeProvider) rotateToken(tok string) {
	f.mu.Lock()
	f.token = tok
	h := f.tokenHandler
	f.mu.Unlock()
	if h != nil {
		h(tok)
	}
}

func (f *fakeProvider) emitMessage(msg *provider.Message) bool {
	f.mu.Lock()
	h := f.msgHandler
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(msg)
	return true
}

// fakeBackend counts calls across both backend interfaces.
type fakeBackend struct {
	mu        sync.Mutex
	registers []models.DeviceRegistration
	removes   []string
	fetches   int
}

func (f *fakeBackend) RegisterDevice(ctx context.Context, reg models.DeviceRegistration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers = append(f.registers, reg)
	return nil
}

func (f *fakeBackend) RemoveDevice(ctx context.Context, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes = append(f.removes, deviceID)
	return nil
}

func (f *fakeBackend) ToggleNotifications(ctx context.Context, enabled bool) error {
	return nil
}

func (f *fakeBackend) FetchNotifications(ctx context.Context, limit int) (*backend.FeedPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return &backend.FeedPage{}, nil
}

func (f *fakeBackend) MarkRead(ctx context.Context, id string) error { return nil }
func (f *fakeBackend) MarkAllRead(ctx context.Context) error         { return nil }

func (f *fakeBackend) registerCalls() []models.DeviceRegistration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.DeviceRegistration, len(f.registers))
	copy(out, f.registers)
	return out
}

// ==========================
// Test Harness
// ==========================

type harness struct {
	provider   *fakeProvider
	backend    *fakeBackend
	controller *Controller
	reconciler *feed.Reconciler
}

func newHarness(t *testing.T) *harness {
	fake := &fakeProvider{permission: true, token: "tok-1"}
	fb := &fakeBackend{}
	sess := session.NewStatic("bearer")
	log := logger.NewTestLogger(t)

	tokens := token.NewManager("android", fake, storage.NewMemory(), log)
	coordinator := registration.NewCoordinator("android", "Pixel 8", fb, sess, log)
	reconciler := feed.NewReconciler(fb, sess, nil, log)

	controller := NewController(tokens, coordinator, reconciler, fake, 50, nil, log)
	controller.Start(context.Background())
	t.Cleanup(controller.Stop)

	return &harness{provider: fake, backend: fb, controller: controller, reconciler: reconciler}
}

func (h *harness) waitState(t *testing.T, want State) {
	require.Eventually(t, func() bool {
		return h.controller.State() == want
	}, 2*time.Second, 10*time.Millisecond, "expected state %s", want)
}

func leadMessage(id string) *provider.Message {
	return &provider.Message{
		Notification: &provider.Notification{Title: "New Lead", Body: "Jane Doe"},
		Data:         map[string]string{"notificationId": id, "type": "lead", "priority": "high"},
	}
}

// ==========================
// Lifecycle Tests
// ==========================

func TestInitialize_IdempotentRegistration(t *testing.T) {
	h := newHarness(t)

	h.controller.SetAuthenticated(true)
	h.controller.SetAuthenticated(true)
	h.waitState(t, StateReady)

	// A second trigger once Ready must not register again.
	require.Eventually(t, func() bool {
		return len(h.backend.registerCalls()) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	calls := h.backend.registerCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "tok-1", calls[0].Token)
	assert.Equal(t, "android", calls[0].Platform)
}

func TestTokenRefresh_ReRegistersExactlyOnce(t *testing.T) {
	h := newHarness(t)

	h.controller.SetAuthenticated(true)
	h.waitState(t, StateReady)

	h.provider.rotateToken("tok-2")
	require.Eventually(t, func() bool {
		calls := h.backend.registerCalls()
		return len(calls) == 2 && calls[1].Token == "tok-2"
	}, 2*time.Second, 10*time.Millisecond)

	// Two foreground triggers with the same token must not register again.
	h.controller.AppActive()
	h.controller.AppActive()
	time.Sleep(200 * time.Millisecond)

	calls := h.backend.registerCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "tok-2", calls[1].Token)
}

func TestForeground_TriggersFeedFetch(t *testing.T) {
	h := newHarness(t)

	h.controller.SetAuthenticated(true)
	h.waitState(t, StateReady)

	h.backend.mu.Lock()
	fetchesAfterInit := h.backend.fetches
	h.backend.mu.Unlock()

	h.controller.AppActive()
	require.Eventually(t, func() bool {
		h.backend.mu.Lock()
		defer h.backend.mu.Unlock()
		return h.backend.fetches > fetchesAfterInit
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPermissionDenied_FeedStillWorks(t *testing.T) {
	h := newHarness(t)
	h.provider.mu.Lock()
	h.provider.permission = false
	h.provider.mu.Unlock()

	h.controller.SetAuthenticated(true)
	h.waitState(t, StateReady)

	assert.Empty(t, h.backend.registerCalls(), "no registration without a token")
	h.backend.mu.Lock()
	fetches := h.backend.fetches
	h.backend.mu.Unlock()
	assert.GreaterOrEqual(t, fetches, 1, "feed fetch is independent of push permission")
}

func TestPushDelivery_ReachesFeed(t *testing.T) {
	h := newHarness(t)

	h.controller.SetAuthenticated(true)
	h.waitState(t, StateReady)

	require.True(t, h.provider.emitMessage(leadMessage("n1")))

	require.Eventually(t, func() bool {
		return h.reconciler.UnreadCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	items := h.reconciler.Snapshot()
	require.Len(t, items, 1)
	assert.Equal(t, "n1", items[0].ID)
}

func TestTeardown_ClearsEverything(t *testing.T) {
	h := newHarness(t)

	h.controller.SetAuthenticated(true)
	h.waitState(t, StateReady)

	require.True(t, h.provider.emitMessage(leadMessage("n1")))
	require.Eventually(t, func() bool {
		return h.reconciler.UnreadCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	h.controller.Logout()
	h.waitState(t, StateTornDown)

	assert.Empty(t, h.reconciler.Snapshot())
	assert.Equal(t, 0, h.reconciler.UnreadCount())

	h.provider.mu.Lock()
	deletes := h.provider.deleteCalls
	h.provider.mu.Unlock()
	assert.Equal(t, 1, deletes)

	h.backend.mu.Lock()
	removed := len(h.backend.removes)
	h.backend.mu.Unlock()
	assert.Equal(t, 1, removed)

	// Subsequent push events must produce no state change.
	assert.False(t, h.provider.emitMessage(leadMessage("n2")), "subscriptions must be detached")
	assert.Equal(t, 0, h.reconciler.UnreadCount())
}

func TestReinitializeAfterTeardown(t *testing.T) {
	h := newHarness(t)

	h.controller.SetAuthenticated(true)
	h.waitState(t, StateReady)

	h.controller.Logout()
	h.waitState(t, StateTornDown)

	// Token was deleted on teardown; the provider issues a fresh one on
	// the next login.
	h.provider.mu.Lock()
	h.provider.token = "tok-next"
	h.provider.mu.Unlock()

	h.controller.SetAuthenticated(true)
	h.waitState(t, StateReady)

	require.Eventually(t, func() bool {
		calls := h.backend.registerCalls()
		return len(calls) == 2 && calls[1].Token == "tok-next"
	}, 2*time.Second, 10*time.Millisecond)
}
