// internal/push/provider/redis.go
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"crmpush/internal/common/config"
	commonerrors "crmpush/internal/common/errors"
	"crmpush/internal/common/logger"
)

// Bridge keys written by the native shell.
const (
	permissionKey = "push:permission"
	tokenKey      = "push:current_token"
	initialKey    = "push:initial"
	commandChan   = "push:commands"

	permissionGranted = "granted"

	permissionPollInterval = 100 * time.Millisecond
	permissionWaitTimeout  = 10 * time.Second
)

// RedisBridge adapts the native shell's Redis event stream to the
// Provider contract. The shell publishes provider callbacks as JSON on
// pub/sub channels and mirrors permission/token state into keys; the
// bridge issues commands (permission prompt, token delete) on a command
// channel the shell consumes.
type RedisBridge struct {
	client *redis.Client
	cfg    config.BridgeConfig
	logger logger.Logger

	mu         sync.Mutex
	bgHandler  Handler
	bgPubSub   *redis.PubSub
	subscribed []*redis.PubSub
}

// bridgeEnvelope wraps a message with its delivery path so foreground
// and background deliveries share one channel.
type bridgeEnvelope struct {
	Delivery string  `json:"delivery"` // "foreground" or "background"
	Message  Message `json:"message"`
}

type bridgeCommand struct {
	Command string `json:"command"` // "request_permission" or "delete_token"
}

func NewRedisBridge(cfg config.BridgeConfig, log logger.Logger) *RedisBridge {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisBridgeWithClient(rdb, cfg, log)
}

// NewRedisBridgeWithClient wraps an existing client, used in tests with
// miniredis.
func NewRedisBridgeWithClient(client *redis.Client, cfg config.BridgeConfig, log logger.Logger) *RedisBridge {
	return &RedisBridge{
		client: client,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "provider-bridge"}),
	}
}

// Ping tests bridge connectivity.
func (b *RedisBridge) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return commonerrors.NewBridgeUnavailableError(err.Error())
	}
	return nil
}

// Close tears down all active subscriptions and the connection.
func (b *RedisBridge) Close() error {
	b.mu.Lock()
	subs := b.subscribed
	b.subscribed = nil
	b.bgPubSub = nil
	b.mu.Unlock()

	for _, ps := range subs {
		_ = ps.Close()
	}
	return b.client.Close()
}

func (b *RedisBridge) RequestPermission(ctx context.Context) (bool, error) {
	granted, err := b.HasPermission(ctx)
	if err != nil {
		return false, err
	}
	if granted {
		return true, nil
	}

	if err := b.publishCommand(ctx, "request_permission"); err != nil {
		return false, err
	}

	// The shell prompts the user and mirrors the outcome into the
	// permission key. Poll until it appears or the wait times out.
	deadline := time.Now().Add(permissionWaitTimeout)
	ticker := time.NewTicker(permissionPollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}

		val, err := b.client.Get(ctx, permissionKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return false, err
		}
		return val == permissionGranted, nil
	}
	return false, nil
}

func (b *RedisBridge) HasPermission(ctx context.Context) (bool, error) {
	val, err := b.client.Get(ctx, permissionKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == permissionGranted, nil
}

func (b *RedisBridge) GetToken(ctx context.Context) (string, error) {
	val, err := b.client.Get(ctx, tokenKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (b *RedisBridge) DeleteToken(ctx context.Context) error {
	if err := b.publishCommand(ctx, "delete_token"); err != nil {
		return err
	}
	return b.client.Del(ctx, tokenKey).Err()
}

func (b *RedisBridge) OnMessage(h Handler) Unsubscribe {
	return b.subscribeMessages(b.cfg.MessageChannel, func(env *bridgeEnvelope) {
		// Background envelopes belong to the dedicated background
		// subscription; delivering them here would duplicate them.
		if env.Delivery == "background" {
			return
		}
		msg := env.Message
		h(&msg)
	})
}

func (b *RedisBridge) OnNotificationOpenedApp(h Handler) Unsubscribe {
	return b.subscribeMessages(b.cfg.OpenedChannel, func(env *bridgeEnvelope) {
		msg := env.Message
		h(&msg)
	})
}

func (b *RedisBridge) GetInitialNotification(ctx context.Context) (*Message, error) {
	val, err := b.client.Get(ctx, initialKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// Consume once: a second call must return nil.
	_ = b.client.Del(ctx, initialKey).Err()

	var msg Message
	if err := json.Unmarshal([]byte(val), &msg); err != nil {
		b.logger.Warn("discarding undecodable initial notification", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, nil
	}
	return &msg, nil
}

func (b *RedisBridge) OnTokenRefresh(h TokenHandler) Unsubscribe {
	ps := b.client.Subscribe(context.Background(), b.cfg.TokenChannel)
	b.track(ps)

	go func() {
		for m := range ps.Channel() {
			h(m.Payload)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { _ = ps.Close() })
	}
}

func (b *RedisBridge) SetBackgroundMessageHandler(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bgHandler = h
	if b.bgPubSub == nil {
		// Background envelopes arrive on the shared message channel; a
		// dedicated subscription keeps them flowing when no foreground
		// OnMessage subscriber exists.
		b.bgPubSub = b.client.Subscribe(context.Background(), b.cfg.MessageChannel)
		b.subscribed = append(b.subscribed, b.bgPubSub)
		ps := b.bgPubSub
		go func() {
			for m := range ps.Channel() {
				env, err := decodeEnvelope(m.Payload)
				if err != nil || env.Delivery != "background" {
					continue
				}
				b.mu.Lock()
				bg := b.bgHandler
				b.mu.Unlock()
				if bg != nil {
					msg := env.Message
					bg(&msg)
				}
			}
		}()
	}
}

func (b *RedisBridge) subscribeMessages(channel string, deliver func(env *bridgeEnvelope)) Unsubscribe {
	ps := b.client.Subscribe(context.Background(), channel)
	b.track(ps)

	go func() {
		for m := range ps.Channel() {
			env, err := decodeEnvelope(m.Payload)
			if err != nil {
				b.logger.Warn("discarding undecodable bridge event", map[string]interface{}{
					"channel": channel,
					"error":   err.Error(),
				})
				continue
			}
			deliver(env)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { _ = ps.Close() })
	}
}

func (b *RedisBridge) publishCommand(ctx context.Context, command string) error {
	payload, _ := json.Marshal(bridgeCommand{Command: command})
	return b.client.Publish(ctx, commandChan, payload).Err()
}

func (b *RedisBridge) track(ps *redis.PubSub) {
	b.mu.Lock()
	b.subscribed = append(b.subscribed, ps)
	b.mu.Unlock()
}

func decodeEnvelope(payload string) (*bridgeEnvelope, error) {
	var env bridgeEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return nil, err
	}
	return &env, nil
}
