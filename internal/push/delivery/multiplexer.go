// internal/push/delivery/multiplexer.go
package delivery

import (
	"context"

	"crmpush/internal/common/logger"
	"crmpush/internal/common/metrics"
	"crmpush/internal/push/provider"
)

// ReceivedHandler consumes the unified NotificationReceived event.
type ReceivedHandler func(p *Parsed)

// OpenedHandler consumes the NotificationOpened event. Navigation is the
// out-of-scope UI layer's job; this subsystem only forwards type and
// entity reference.
type OpenedHandler func(p *Parsed)

// Multiplexer normalizes the three provider delivery paths (foreground,
// background-tap, cold-start) into NotificationReceived and
// NotificationOpened events.
type Multiplexer struct {
	provider   provider.Provider
	logger     logger.Logger
	onReceived ReceivedHandler
	onOpened   OpenedHandler

	unsubs []provider.Unsubscribe
}

func NewMultiplexer(prov provider.Provider, log logger.Logger, onReceived ReceivedHandler, onOpened OpenedHandler) *Multiplexer {
	return &Multiplexer{
		provider:   prov,
		logger:     log.WithFields(map[string]interface{}{"component": "delivery-mux"}),
		onReceived: onReceived,
		onOpened:   onOpened,
	}
}

// Attach subscribes to all provider delivery paths. Call Dispose to
// detach. The cold-start path is not handled here; call EmitInitial once
// subsystem initialization has completed.
func (m *Multiplexer) Attach() {
	m.unsubs = append(m.unsubs, m.provider.OnMessage(func(msg *provider.Message) {
		m.deliver(msg, "foreground", false)
	}))

	m.unsubs = append(m.unsubs, m.provider.OnNotificationOpenedApp(func(msg *provider.Message) {
		m.deliver(msg, "background_tap", true)
	}))

	// Messages arriving while backgrounded are displayed by the system
	// tray; the handler only records them.
	m.provider.SetBackgroundMessageHandler(func(msg *provider.Message) {
		metrics.PushMessagesReceived.WithLabelValues("background").Inc()
		m.logger.Debug("background message delivered", map[string]interface{}{
			"messageId": msg.MessageID,
		})
	})
}

// EmitInitial checks the was-launched-by-notification query once and
// emits NotificationOpened if the app was cold-started from a tap.
func (m *Multiplexer) EmitInitial(ctx context.Context) {
	msg, err := m.provider.GetInitialNotification(ctx)
	if err != nil {
		m.logger.Warn("initial notification check failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if msg == nil {
		return
	}

	p, err := Parse(msg)
	if err != nil {
		metrics.PushMessagesDropped.WithLabelValues("malformed").Inc()
		m.logger.Warn("dropping malformed initial notification", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	metrics.PushMessagesReceived.WithLabelValues("cold_start").Inc()
	if m.onOpened != nil {
		m.onOpened(p)
	}
}

// Dispose detaches every provider subscription.
func (m *Multiplexer) Dispose() {
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
	m.provider.SetBackgroundMessageHandler(nil)
}

func (m *Multiplexer) deliver(msg *provider.Message, path string, opened bool) {
	p, err := Parse(msg)
	if err != nil {
		metrics.PushMessagesDropped.WithLabelValues("malformed").Inc()
		m.logger.Warn("dropping malformed push payload", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return
	}

	metrics.PushMessagesReceived.WithLabelValues(path).Inc()
	if m.onReceived != nil {
		m.onReceived(p)
	}
	if opened && m.onOpened != nil {
		m.onOpened(p)
	}
}
