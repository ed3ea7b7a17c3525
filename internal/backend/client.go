// internal/backend/client.go
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"crmpush/internal/common/errors"
	commonhttp "crmpush/internal/common/http"
	"crmpush/internal/common/metrics"
	"crmpush/internal/models"
	"crmpush/internal/session"
)

// Client talks to the CRM backend's device-token and notification
// endpoints. Every call requires a bearer credential from the session
// component; without one the call fails fast with AUTH_REQUIRED and no
// network traffic.
type Client struct {
	baseURL    string
	httpClient *commonhttp.Client
	session    session.Source
}

type registerRequest struct {
	Token      string `json:"token"`
	DeviceID   string `json:"deviceId"`
	Platform   string `json:"platform"`
	DeviceName string `json:"deviceName"`
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

// serverNotification is the wire shape of a feed entry.
type serverNotification struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Type      string    `json:"type"`
	Priority  string    `json:"priority"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`
	EntityID  string    `json:"entityId,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
}

type listResponse struct {
	Notifications []serverNotification `json:"notifications"`
	UnreadCount   *int                 `json:"unreadCount,omitempty"`
}

// FeedPage is one fetched page of the notification feed. UnreadCount is
// nil when the backend omitted an authoritative count.
type FeedPage struct {
	Notifications []models.Notification
	UnreadCount   *int
}

func NewClient(baseURL string, timeout time.Duration, sess session.Source) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: commonhttp.NewClient(timeout),
		session:    sess,
	}
}

// RegisterDevice registers (token, deviceId) with the backend.
func (c *Client) RegisterDevice(ctx context.Context, reg models.DeviceRegistration) error {
	body := registerRequest{
		Token:      reg.Token,
		DeviceID:   reg.DeviceID,
		Platform:   reg.Platform,
		DeviceName: reg.DeviceLabel,
	}
	err := c.call(ctx, http.MethodPost, c.baseURL+"/device-tokens/register", body, "register", nil)
	if err != nil && !errors.Is(err, errors.ErrCodeAuthRequired) {
		return errors.NewRegistrationFailedError(err.Error())
	}
	return err
}

// RemoveDevice deletes the device's registration.
func (c *Client) RemoveDevice(ctx context.Context, deviceID string) error {
	url := fmt.Sprintf("%s/device-tokens/%s", c.baseURL, deviceID)
	return c.call(ctx, http.MethodDelete, url, nil, "remove", nil)
}

// ToggleNotifications flips the server-side push-enabled flag.
func (c *Client) ToggleNotifications(ctx context.Context, enabled bool) error {
	url := c.baseURL + "/device-tokens/toggle-notifications"
	return c.call(ctx, http.MethodPatch, url, toggleRequest{Enabled: enabled}, "toggle", nil)
}

// FetchNotifications lists the feed, newest first.
func (c *Client) FetchNotifications(ctx context.Context, limit int) (*FeedPage, error) {
	url := fmt.Sprintf("%s/notifications?limit=%d", c.baseURL, limit)

	var resp listResponse
	if err := c.call(ctx, http.MethodGet, url, nil, "fetch", &resp); err != nil {
		if errors.Is(err, errors.ErrCodeAuthRequired) {
			return nil, err
		}
		return nil, errors.NewFeedFetchFailedError(err.Error())
	}

	page := &FeedPage{
		Notifications: make([]models.Notification, 0, len(resp.Notifications)),
		UnreadCount:   resp.UnreadCount,
	}
	for _, sn := range resp.Notifications {
		page.Notifications = append(page.Notifications, toNotification(sn))
	}
	return page, nil
}

// MarkRead confirms a single read flip with the backend.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	url := fmt.Sprintf("%s/notifications/%s/read", c.baseURL, id)
	return c.call(ctx, http.MethodPatch, url, nil, "mark_read", nil)
}

// MarkAllRead confirms a mark-all flip with the backend.
func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.call(ctx, http.MethodPatch, c.baseURL+"/notifications/read-all", nil, "mark_all_read", nil)
}

// call issues one request and optionally decodes a JSON response into out.
func (c *Client) call(ctx context.Context, method, url string, body interface{}, endpoint string, out interface{}) error {
	token := c.session.BearerToken()
	if token == "" {
		return errors.NewAuthRequiredError(endpoint)
	}

	req, err := commonhttp.NewJSONRequest(ctx, method, url, body, token)
	if err != nil {
		return errors.NewNetworkFailureError(err.Error())
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.BackendCallDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		return errors.NewNetworkFailureError(err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewNetworkFailureError(err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewNetworkFailureError(
			fmt.Sprintf("%s %s returned status %d: %s", method, url, resp.StatusCode, string(data)))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.NewNetworkFailureError(fmt.Sprintf("failed to decode %s response: %v", endpoint, err))
		}
	}
	return nil
}

func toNotification(sn serverNotification) models.Notification {
	n := models.Notification{
		ID:        sn.ID,
		Title:     sn.Title,
		Body:      sn.Body,
		Type:      models.NotificationType(sn.Type),
		Priority:  models.NormalizePriority(sn.Priority),
		CreatedAt: sn.CreatedAt,
		Read:      sn.Read,
		EntityID:  sn.EntityID,
	}
	if models.ValidImageURL(sn.ImageURL) {
		n.ImageURL = sn.ImageURL
	}
	return n
}
