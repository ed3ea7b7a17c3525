// internal/push/lifecycle/controller.go
package lifecycle

import (
	"context"
	"sync"

	"crmpush/internal/common/logger"
	"crmpush/internal/push/delivery"
	"crmpush/internal/push/feed"
	"crmpush/internal/push/provider"
	"crmpush/internal/push/registration"
	"crmpush/internal/push/token"
)

// State is the controller's lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateRefreshing
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateRefreshing:
		return "refreshing"
	case StateTornDown:
		return "torn_down"
	}
	return "unknown"
}

type eventKind int

const (
	eventAuthChanged eventKind = iota
	eventAppActive
	eventTokenRefreshed
	eventLogout
	eventStop
)

// event is a message consumed by the controller's loop. OS lifecycle
// signals and provider callbacks all arrive this way, so state
// transitions stay serial and testable.
type event struct {
	kind          eventKind
	authenticated bool
	token         string
}

// OpenedCallback forwards NotificationOpened to the navigation layer.
type OpenedCallback func(t string, entityID string)

// Controller drives the push subsystem's state transitions from
// authentication state and app foreground/background transitions, and
// owns teardown on logout.
type Controller struct {
	tokens    *token.Manager
	reg       *registration.Coordinator
	feed      *feed.Reconciler
	provider  provider.Provider
	logger    logger.Logger
	feedLimit int
	onOpened  OpenedCallback

	mux        *delivery.Multiplexer
	tokenUnsub provider.Unsubscribe

	events chan event
	done   chan struct{}

	mu    sync.Mutex
	state State
}

func NewController(
	tokens *token.Manager,
	reg *registration.Coordinator,
	reconciler *feed.Reconciler,
	prov provider.Provider,
	feedLimit int,
	onOpened OpenedCallback,
	log logger.Logger,
) *Controller {
	return &Controller{
		tokens:    tokens,
		reg:       reg,
		feed:      reconciler,
		provider:  prov,
		logger:    log.WithFields(map[string]interface{}{"component": "lifecycle"}),
		feedLimit: feedLimit,
		onOpened:  onOpened,
		events:    make(chan event, 16),
		done:      make(chan struct{}),
		state:     StateUninitialized,
	}
}

// Start runs the controller loop until Stop. The context bounds every
// network and provider call the controller issues.
func (c *Controller) Start(ctx context.Context) {
	go c.run(ctx)
}

// Stop ends the loop without tearing down; use Logout for teardown.
func (c *Controller) Stop() {
	c.events <- event{kind: eventStop}
	<-c.done
}

// SetAuthenticated signals a session transition. Unauthenticated to
// authenticated attempts initialization; idempotent once Ready.
func (c *Controller) SetAuthenticated(authenticated bool) {
	c.events <- event{kind: eventAuthChanged, authenticated: authenticated}
}

// AppActive signals a background/inactive to active transition.
func (c *Controller) AppActive() {
	c.events <- event{kind: eventAppActive}
}

// Logout tears the subsystem down unconditionally.
func (c *Controller) Logout() {
	c.events <- event{kind: eventLogout}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.events:
			switch ev.kind {
			case eventStop:
				return
			case eventAuthChanged:
				if ev.authenticated {
					c.initialize(ctx)
				}
			case eventAppActive:
				c.foreground(ctx)
			case eventTokenRefreshed:
				c.refresh(ctx, ev.token)
			case eventLogout:
				c.teardown(ctx)
			}
		}
	}
}

// initialize brings the subsystem to Ready. Safe to trigger repeatedly:
// once Ready, it is a no-op, and the registration latch keeps the
// backend call single-shot per token.
func (c *Controller) initialize(ctx context.Context) {
	if c.State() == StateReady {
		return
	}
	c.setState(StateInitializing)

	granted := c.tokens.RequestPermission(ctx)
	if !granted {
		// Push stays disabled but the feed fetch path keeps working.
		c.logger.Info("notification permission not granted", nil)
	}

	deviceID, err := c.tokens.EnsureDeviceID(ctx)
	if err != nil {
		c.logger.Error("device identifier unavailable", map[string]interface{}{
			"error": err.Error(),
		})
		c.setState(StateUninitialized)
		return
	}

	if c.mux == nil {
		c.mux = delivery.NewMultiplexer(c.provider, c.logger, c.feed.OnPushReceived, c.forwardOpened)
		c.mux.Attach()
	}
	if c.tokenUnsub == nil {
		c.tokenUnsub = c.provider.OnTokenRefresh(func(tok string) {
			c.events <- event{kind: eventTokenRefreshed, token: tok}
		})
	}

	if granted {
		tok, err := c.tokens.GetToken(ctx)
		if err != nil {
			c.logger.Warn("token fetch failed", map[string]interface{}{
				"error": err.Error(),
			})
		} else if tok != "" {
			c.reg.Register(ctx, tok, deviceID)
		}
	}

	c.feed.Fetch(ctx, c.feedLimit)
	c.setState(StateReady)

	// Cold-start delivery is checked once, after initialization completes.
	c.mux.EmitInitial(ctx)
}

// refresh handles a provider token rotation: exactly one re-registration
// with the new token.
func (c *Controller) refresh(ctx context.Context, tok string) {
	if c.State() == StateTornDown || tok == "" {
		return
	}
	c.setState(StateRefreshing)

	c.tokens.StoreToken(ctx, tok)
	c.reg.ResetLatch()

	deviceID, err := c.tokens.EnsureDeviceID(ctx)
	if err == nil {
		c.reg.Register(ctx, tok, deviceID)
	} else {
		c.logger.Warn("re-registration skipped, device id unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	}
	c.setState(StateReady)
}

// foreground runs the token-freshness check and the feed fetch as
// independent chains; neither outcome gates the other.
func (c *Controller) foreground(ctx context.Context) {
	if c.State() != StateReady {
		return
	}

	go func() {
		tok, err := c.tokens.GetToken(ctx)
		if err != nil || tok == "" {
			return
		}
		deviceID, err := c.tokens.EnsureDeviceID(ctx)
		if err != nil {
			return
		}
		// The latch makes this a no-op unless the token changed or a
		// previous attempt never happened.
		c.reg.Register(ctx, tok, deviceID)
	}()

	go func() {
		c.feed.Fetch(ctx, c.feedLimit)
	}()
}

// teardown runs every step even if an earlier one failed.
func (c *Controller) teardown(ctx context.Context) {
	deviceID, err := c.tokens.EnsureDeviceID(ctx)
	if err == nil {
		c.reg.Remove(ctx, deviceID)
	}

	c.tokens.DeleteToken(ctx)

	if c.mux != nil {
		c.mux.Dispose()
		c.mux = nil
	}
	if c.tokenUnsub != nil {
		c.tokenUnsub()
		c.tokenUnsub = nil
	}

	c.feed.Clear()
	c.reg.ResetLatch()
	c.setState(StateTornDown)

	c.logger.Info("push subsystem torn down", nil)
}

func (c *Controller) forwardOpened(p *delivery.Parsed) {
	if c.onOpened != nil {
		c.onOpened(string(p.Type), p.EntityID)
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
