// internal/push/provider/provider.go
package provider

// Package provider defines the capability surface of the platform's
// push-messaging service. The subsystem consumes this contract; it never
// implements delivery itself. The Redis bridge in this package adapts
// the native shell's event stream to it.

import "context"

// Notification is the display-payload block of a push message.
type Notification struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Message is a raw push message as delivered by the provider: an
// optional display block plus a string-keyed data block.
type Message struct {
	MessageID    string            `json:"messageId,omitempty"`
	Notification *Notification     `json:"notification,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
}

// Unsubscribe detaches a handler registered with one of the On* methods.
// Calling it more than once is harmless.
type Unsubscribe func()

// Handler receives raw push messages.
type Handler func(msg *Message)

// TokenHandler receives rotated push tokens.
type TokenHandler func(token string)

// Provider is the push-messaging capability consumed by the subsystem.
type Provider interface {
	// RequestPermission performs the platform permission negotiation.
	// Failures surface as granted=false, never as an error to callers
	// beyond logging.
	RequestPermission(ctx context.Context) (bool, error)

	// HasPermission reports the current permission state without prompting.
	HasPermission(ctx context.Context) (bool, error)

	// GetToken fetches the device's current push token.
	GetToken(ctx context.Context) (string, error)

	// DeleteToken invalidates the provider-side token.
	DeleteToken(ctx context.Context) error

	// OnMessage subscribes to foreground message delivery.
	OnMessage(h Handler) Unsubscribe

	// OnNotificationOpenedApp subscribes to background-tap delivery.
	OnNotificationOpenedApp(h Handler) Unsubscribe

	// GetInitialNotification returns the message that cold-started the
	// app, or nil. The message is consumed: a second call returns nil.
	GetInitialNotification(ctx context.Context) (*Message, error)

	// OnTokenRefresh subscribes to provider token rotation.
	OnTokenRefresh(h TokenHandler) Unsubscribe

	// SetBackgroundMessageHandler registers the handler invoked for
	// messages delivered while the app is backgrounded.
	SetBackgroundMessageHandler(h Handler)
}
