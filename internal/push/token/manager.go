// internal/push/token/manager.go
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	commonerrors "crmpush/internal/common/errors"
	"crmpush/internal/common/logger"
	"crmpush/internal/common/storage"
	"crmpush/internal/push/provider"
)

const (
	deviceIDKey    = "device_id"
	cachedTokenKey = "push_token"
)

// Manager owns acquisition, local caching, and deletion of the device's
// push token plus the locally generated stable device identifier.
type Manager struct {
	platform string
	provider provider.Provider
	cache    storage.KV
	logger   logger.Logger
}

func NewManager(platform string, prov provider.Provider, cache storage.KV, log logger.Logger) *Manager {
	return &Manager{
		platform: platform,
		provider: prov,
		cache:    cache,
		logger:   log.WithFields(map[string]interface{}{"component": "token-manager"}),
	}
}

// EnsureDeviceID returns the cached install identifier, generating and
// persisting one if absent. Idempotent.
func (m *Manager) EnsureDeviceID(ctx context.Context) (string, error) {
	id, err := m.cache.Get(ctx, deviceIDKey)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	id = m.generateDeviceID()
	if err := m.cache.Set(ctx, deviceIDKey, id); err != nil {
		return "", err
	}

	m.logger.Info("generated device identifier", map[string]interface{}{
		"deviceId": id,
	})
	return id, nil
}

// RequestPermission performs the platform permission negotiation.
// Never errors: failures surface as granted=false.
func (m *Manager) RequestPermission(ctx context.Context) bool {
	granted, err := m.provider.RequestPermission(ctx)
	if err != nil {
		permErr := commonerrors.NewPermissionDeniedError(err.Error())
		m.logger.Warn("permission request failed", map[string]interface{}{
			"code":  permErr.Code,
			"error": permErr.Details,
		})
		return false
	}
	return granted
}

// GetToken returns "" without error if permission is not granted;
// otherwise fetches the current token and caches it.
func (m *Manager) GetToken(ctx context.Context) (string, error) {
	granted, err := m.provider.HasPermission(ctx)
	if err != nil {
		return "", err
	}
	if !granted {
		return "", nil
	}

	tok, err := m.provider.GetToken(ctx)
	if err != nil {
		return "", commonerrors.NewTokenUnavailableError(err.Error())
	}
	if tok != "" {
		if cerr := m.cache.Set(ctx, cachedTokenKey, tok); cerr != nil {
			m.logger.Warn("failed to cache push token", map[string]interface{}{
				"error": cerr.Error(),
			})
		}
	}
	return tok, nil
}

// CachedToken returns the last token stored locally, or "".
func (m *Manager) CachedToken(ctx context.Context) string {
	tok, err := m.cache.Get(ctx, cachedTokenKey)
	if err != nil {
		return ""
	}
	return tok
}

// StoreToken replaces the cached token after a provider rotation.
func (m *Manager) StoreToken(ctx context.Context, tok string) {
	if err := m.cache.Set(ctx, cachedTokenKey, tok); err != nil {
		m.logger.Warn("failed to store rotated token", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// DeleteToken invalidates the provider-side token and clears the local
// cache. Best-effort: failures are logged, not propagated.
func (m *Manager) DeleteToken(ctx context.Context) {
	if err := m.provider.DeleteToken(ctx); err != nil {
		m.logger.Warn("provider token delete failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err := m.cache.Delete(ctx, cachedTokenKey); err != nil {
		m.logger.Warn("failed to clear cached token", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// generateDeviceID builds a platform_timestamp_random identifier.
func (m *Manager) generateDeviceID() string {
	random := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("%s_%d_%s", m.platform, time.Now().UnixMilli(), random)
}
