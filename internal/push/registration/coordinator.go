// internal/push/registration/coordinator.go
package registration

import (
	"context"
	"sync"

	"crmpush/internal/common/errors"
	"crmpush/internal/common/logger"
	"crmpush/internal/common/metrics"
	"crmpush/internal/models"
	"crmpush/internal/session"
)

// Backend is the slice of the REST client the coordinator consumes.
type Backend interface {
	RegisterDevice(ctx context.Context, reg models.DeviceRegistration) error
	RemoveDevice(ctx context.Context, deviceID string) error
	ToggleNotifications(ctx context.Context, enabled bool) error
}

// Coordinator synchronizes (token, deviceId) with the backend. The
// latch guarantees at most one registration attempt per (session, token)
// pair; a token refresh resets it so the new token registers exactly
// once.
type Coordinator struct {
	platform    string
	deviceLabel string
	client      Backend
	session     session.Source
	logger      logger.Logger

	mu           sync.Mutex
	lastAttempt  string // token of the last attempted registration
	registration models.DeviceRegistration
	pushEnabled  bool
}

func NewCoordinator(platform, deviceLabel string, client Backend, sess session.Source, log logger.Logger) *Coordinator {
	return &Coordinator{
		platform:    platform,
		deviceLabel: deviceLabel,
		client:      client,
		session:     sess,
		logger:      log.WithFields(map[string]interface{}{"component": "registration"}),
		pushEnabled: true,
	}
}

// Register attempts one backend registration for the given token and
// device id. Returns false without a network call when unauthenticated
// or when this token was already attempted this session.
func (c *Coordinator) Register(ctx context.Context, tok, deviceID string) bool {
	if !c.session.Authenticated() {
		c.logger.Debug("registration skipped, no session", nil)
		return false
	}
	if tok == "" || deviceID == "" {
		c.logger.Warn("registration skipped, incomplete identity", map[string]interface{}{
			"hasToken":    tok != "",
			"hasDeviceId": deviceID != "",
		})
		return false
	}

	c.mu.Lock()
	if c.lastAttempt == tok {
		c.mu.Unlock()
		c.logger.Debug("registration already attempted for token", nil)
		return c.registered()
	}
	c.lastAttempt = tok
	reg := models.DeviceRegistration{
		Token:       tok,
		DeviceID:    deviceID,
		Platform:    c.platform,
		DeviceLabel: c.deviceLabel,
	}
	c.mu.Unlock()

	if err := c.client.RegisterDevice(ctx, reg); err != nil {
		metrics.DeviceRegistrations.WithLabelValues("failure").Inc()
		c.logger.Warn("device registration failed", map[string]interface{}{
			"deviceId": deviceID,
			"code":     errors.Classify(err),
			"error":    err.Error(),
		})
		return false
	}

	reg.Registered = true
	c.mu.Lock()
	c.registration = reg
	c.mu.Unlock()

	metrics.DeviceRegistrations.WithLabelValues("success").Inc()
	c.logger.Info("device registered", map[string]interface{}{
		"deviceId": deviceID,
		"platform": c.platform,
	})
	return true
}

// Remove deletes the backend registration. Best-effort: errors are
// swallowed after logging.
func (c *Coordinator) Remove(ctx context.Context, deviceID string) bool {
	if err := c.client.RemoveDevice(ctx, deviceID); err != nil {
		c.logger.Warn("device removal failed", map[string]interface{}{
			"deviceId": deviceID,
			"error":    err.Error(),
		})
		return false
	}

	c.mu.Lock()
	c.registration = models.DeviceRegistration{}
	c.mu.Unlock()
	return true
}

// Toggle flips the backend push-enabled flag; local state follows only
// on success.
func (c *Coordinator) Toggle(ctx context.Context, enabled bool) bool {
	if !c.session.Authenticated() {
		return false
	}
	if err := c.client.ToggleNotifications(ctx, enabled); err != nil {
		c.logger.Warn("push toggle failed", map[string]interface{}{
			"enabled": enabled,
			"error":   err.Error(),
		})
		return false
	}

	c.mu.Lock()
	c.pushEnabled = enabled
	c.mu.Unlock()
	return true
}

// ResetLatch clears the single-attempt guard. Called on token refresh
// and on teardown.
func (c *Coordinator) ResetLatch() {
	c.mu.Lock()
	c.lastAttempt = ""
	c.registration = models.DeviceRegistration{}
	c.mu.Unlock()
}

// PushEnabled reports the locally tracked toggle state.
func (c *Coordinator) PushEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pushEnabled
}

// Registration returns a copy of the current registration state.
func (c *Coordinator) Registration() models.DeviceRegistration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registration
}

func (c *Coordinator) registered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registration.Registered
}
