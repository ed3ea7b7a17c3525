// cmd/pushfeedd/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"crmpush/internal/backend"
	"crmpush/internal/common/config"
	"crmpush/internal/common/logger"
	"crmpush/internal/common/storage"
	"crmpush/internal/push/feed"
	"crmpush/internal/push/lifecycle"
	"crmpush/internal/push/provider"
	"crmpush/internal/push/registration"
	"crmpush/internal/push/token"
	"crmpush/internal/session"
)

// retryWithBackoff attempts to execute a function with exponential backoff.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// logToaster stands in for the UI toast surface in the headless daemon.
type logToaster struct {
	log logger.Logger
}

func (t *logToaster) Show(style feed.ToastStyle, title, body string) {
	t.log.Info("toast", map[string]interface{}{
		"style": string(style),
		"title": title,
		"body":  body,
	})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting push feed daemon...")

	ctx := context.Background()

	// --- Init device cache ---
	var cache storage.KV
	if cfg.Cache.Address != "" {
		redisCache := storage.NewRedis(cfg.Cache)
		err = retryWithBackoff(func() error {
			return redisCache.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "device cache connection")
		if err != nil {
			zapLog.Fatal("device cache failed after retries", zap.Error(err))
		}
		defer redisCache.Close()
		cache = redisCache
		zapLog.Info("Device cache connected successfully")
	} else {
		cache = storage.NewMemory()
		zapLog.Warn("No cache backend configured, device identity will not survive restarts")
	}

	// --- Init provider bridge ---
	bridge := provider.NewRedisBridge(cfg.Bridge, log)
	err = retryWithBackoff(func() error {
		return bridge.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "provider bridge connection")
	if err != nil {
		zapLog.Fatal("provider bridge failed after retries", zap.Error(err))
	}
	defer bridge.Close()
	zapLog.Info("Provider bridge connected successfully")

	// --- Wire the subsystem ---
	sess := session.NewStatic(os.Getenv("CRM_BEARER_TOKEN"))
	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.GetTimeout(), sess)

	tokens := token.NewManager(cfg.App.Platform, bridge, cache, log)
	coordinator := registration.NewCoordinator(cfg.App.Platform, cfg.App.DeviceLabel, client, sess, log)

	var toaster feed.Toaster
	if cfg.Push.ToastsEnabled {
		toaster = &logToaster{log: log}
	}
	reconciler := feed.NewReconciler(client, sess, toaster, log)

	controller := lifecycle.NewController(
		tokens, coordinator, reconciler, bridge,
		cfg.Push.FeedLimit,
		func(notifType, entityID string) {
			log.Info("notification opened", map[string]interface{}{
				"type":     notifType,
				"entityId": entityID,
			})
		},
		log,
	)

	controller.Start(ctx)
	if sess.Authenticated() {
		controller.SetAuthenticated(true)
	}

	// SIGUSR1 stands in for the OS app-state signal in the daemon
	// configuration: the shell sends it when the app foregrounds.
	fgCh := make(chan os.Signal, 1)
	signal.Notify(fgCh, syscall.SIGUSR1)
	go func() {
		for range fgCh {
			controller.AppActive()
		}
	}()

	// --- Metrics endpoint ---
	if cfg.Metrics.Enabled {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			zapLog.Info("Metrics endpoint listening", zap.String("address", cfg.Metrics.Address))
			if err := http.ListenAndServe(cfg.Metrics.Address, nil); err != nil {
				zapLog.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, tearing down push subsystem...")
	controller.Logout()
	controller.Stop()
	zapLog.Info("Push feed daemon stopped")
}
