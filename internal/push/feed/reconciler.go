// internal/push/feed/reconciler.go
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crmpush/internal/backend"
	"crmpush/internal/common/errors"
	"crmpush/internal/common/logger"
	"crmpush/internal/common/metrics"
	"crmpush/internal/models"
	"crmpush/internal/push/delivery"
	"crmpush/internal/session"
)

// ToastStyle classifies the presentation emphasis of the foreground toast.
type ToastStyle string

const (
	ToastError   ToastStyle = "error"
	ToastInfo    ToastStyle = "info"
	ToastSuccess ToastStyle = "success"
)

// Toaster is the presentation side-effect hook for live-pushed entries.
// The UI layer owns rendering; a nil Toaster disables toasts.
type Toaster interface {
	Show(style ToastStyle, title, body string)
}

// Backend is the slice of the REST client the reconciler consumes.
type Backend interface {
	FetchNotifications(ctx context.Context, limit int) (*backend.FeedPage, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
}

// Reconciler maintains the authoritative in-memory notification list,
// newest first, merging live-pushed entries with server-fetched batches.
// The list and unread counter are owned exclusively by this type.
type Reconciler struct {
	client  Backend
	session session.Source
	toaster Toaster
	logger  logger.Logger

	mu       sync.Mutex
	items    []models.Notification
	unread   int
	nextGen  uint64 // next fetch generation to issue
	lastGen  uint64 // last fetch generation applied
}

func NewReconciler(client Backend, sess session.Source, toaster Toaster, log logger.Logger) *Reconciler {
	return &Reconciler{
		client:  client,
		session: sess,
		toaster: toaster,
		logger:  log.WithFields(map[string]interface{}{"component": "feed"}),
	}
}

// OnPushReceived folds a live-pushed entry into the feed. An entry whose
// id already exists is a no-op; otherwise it is prepended unread and a
// toast classified by priority is emitted.
func (r *Reconciler) OnPushReceived(p *delivery.Parsed) {
	id := p.NotificationID
	if id == "" {
		id = fmt.Sprintf("fcm_%d", time.Now().UnixMilli())
	}

	n := models.Notification{
		ID:        id,
		Title:     p.Title,
		Body:      p.Body,
		Type:      p.Type,
		Priority:  p.Priority,
		CreatedAt: time.Now().UTC(),
		Read:      false,
		EntityID:  p.EntityID,
		ImageURL:  p.ImageURL,
	}

	r.mu.Lock()
	if r.contains(id) {
		r.mu.Unlock()
		r.logger.Debug("duplicate push entry ignored", map[string]interface{}{
			"notificationId": id,
		})
		return
	}
	r.items = append([]models.Notification{n}, r.items...)
	r.unread++
	unread := r.unread
	r.mu.Unlock()

	metrics.FeedUnread.Set(float64(unread))
	r.logger.Info("push entry added to feed", map[string]interface{}{
		"notificationId": id,
		"type":           n.Type,
		"priority":       n.Priority,
	})

	if r.toaster != nil {
		r.toaster.Show(toastStyleFor(n.Priority), n.Title, n.Body)
	}
}

// Fetch replaces the list with the server's snapshot. Requires an
// authenticated session (no-op otherwise). Responses are guarded by a
// monotonically increasing generation so a slow superseded fetch cannot
// overwrite newer state.
func (r *Reconciler) Fetch(ctx context.Context, limit int) bool {
	if !r.session.Authenticated() {
		return false
	}

	r.mu.Lock()
	r.nextGen++
	gen := r.nextGen
	r.mu.Unlock()

	page, err := r.client.FetchNotifications(ctx, limit)
	if err != nil {
		metrics.FeedFetches.WithLabelValues("failure").Inc()
		r.logger.Warn("feed fetch failed", map[string]interface{}{
			"limit":     limit,
			"code":      errors.Classify(err),
			"retryable": errors.IsRetryable(err),
			"error":     err.Error(),
		})
		return false
	}

	r.mu.Lock()
	if gen <= r.lastGen {
		r.mu.Unlock()
		metrics.FeedFetches.WithLabelValues("stale").Inc()
		r.logger.Debug("discarding stale fetch response", map[string]interface{}{
			"generation": gen,
		})
		return false
	}
	r.lastGen = gen
	r.items = dedupByID(page.Notifications)

	// Server-supplied unread count is authoritative when present;
	// otherwise derive it from the returned page.
	if page.UnreadCount != nil && *page.UnreadCount >= 0 {
		r.unread = *page.UnreadCount
	} else {
		r.unread = countUnread(r.items)
	}
	unread := r.unread
	r.mu.Unlock()

	metrics.FeedFetches.WithLabelValues("success").Inc()
	metrics.FeedUnread.Set(float64(unread))
	return true
}

// MarkRead optimistically flips the entry before confirming with the
// backend. The local flip is never reverted on backend failure.
func (r *Reconciler) MarkRead(ctx context.Context, id string) bool {
	r.mu.Lock()
	flipped := false
	for i := range r.items {
		if r.items[i].ID == id && !r.items[i].Read {
			r.items[i].Read = true
			flipped = true
			break
		}
	}
	if flipped && r.unread > 0 {
		r.unread--
	}
	unread := r.unread
	r.mu.Unlock()

	metrics.FeedUnread.Set(float64(unread))

	if err := r.client.MarkRead(ctx, id); err != nil {
		r.logger.Warn("mark-read confirmation failed", map[string]interface{}{
			"notificationId": id,
			"error":          err.Error(),
		})
		return false
	}
	return true
}

// MarkAllRead optimistically flips every entry and zeroes the counter,
// then confirms with the backend fire-and-forget.
func (r *Reconciler) MarkAllRead(ctx context.Context) bool {
	r.mu.Lock()
	for i := range r.items {
		r.items[i].Read = true
	}
	r.unread = 0
	r.mu.Unlock()

	metrics.FeedUnread.Set(0)

	if err := r.client.MarkAllRead(ctx); err != nil {
		r.logger.Warn("mark-all-read confirmation failed", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	return true
}

// Snapshot returns a copy of the current list, newest first.
func (r *Reconciler) Snapshot() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Notification, len(r.items))
	copy(out, r.items)
	return out
}

// UnreadCount returns the current unread counter.
func (r *Reconciler) UnreadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unread
}

// Clear empties the feed and counter. Called on teardown; also resets
// the fetch generation so a fresh session starts clean.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	r.items = nil
	r.unread = 0
	r.nextGen = 0
	r.lastGen = 0
	r.mu.Unlock()
	metrics.FeedUnread.Set(0)
}

// contains must be called with the lock held.
func (r *Reconciler) contains(id string) bool {
	for i := range r.items {
		if r.items[i].ID == id {
			return true
		}
	}
	return false
}

func countUnread(items []models.Notification) int {
	count := 0
	for i := range items {
		if !items[i].Read {
			count++
		}
	}
	return count
}

// dedupByID keeps the first occurrence of each id, preserving order.
func dedupByID(items []models.Notification) []models.Notification {
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, n := range items {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out
}

func toastStyleFor(p models.NotificationPriority) ToastStyle {
	switch p {
	case models.PriorityUrgent:
		return ToastError
	case models.PriorityHigh:
		return ToastInfo
	}
	return ToastSuccess
}
