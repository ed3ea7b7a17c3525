// internal/models/notification.go
package models

import (
	"net/url"
	"time"
)

// NotificationType drives UI routing and tab classification.
type NotificationType string

const (
	TypeLead         NotificationType = "lead"
	TypeTask         NotificationType = "task"
	TypeCompany      NotificationType = "company"
	TypeCampaign     NotificationType = "campaign"
	TypeBroadcast    NotificationType = "broadcast"
	TypeSystem       NotificationType = "system"
	TypeAnnouncement NotificationType = "announcement"
)

// NotificationPriority drives presentation emphasis.
type NotificationPriority string

const (
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// Notification is the feed's unit entity. IDs are server-issued for
// fetched items and provider-issued or locally synthesized for
// live-pushed items before reconciliation.
type Notification struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Body      string               `json:"body"`
	Type      NotificationType     `json:"type"`
	Priority  NotificationPriority `json:"priority"`
	CreatedAt time.Time            `json:"createdAt"`
	Read      bool                 `json:"read"`
	EntityID  string               `json:"entityId,omitempty"` // weak reference, never dereferenced here
	ImageURL  string               `json:"imageUrl,omitempty"`
}

// IsKnownType reports whether t is one of the supported notification types.
func IsKnownType(t NotificationType) bool {
	switch t {
	case TypeLead, TypeTask, TypeCompany, TypeCampaign, TypeBroadcast, TypeSystem, TypeAnnouncement:
		return true
	}
	return false
}

// NormalizePriority maps unknown priority strings to normal.
func NormalizePriority(p string) NotificationPriority {
	switch NotificationPriority(p) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityUrgent:
		return PriorityUrgent
	}
	return PriorityNormal
}

// ValidImageURL reports whether raw is an absolute http(s) URL.
func ValidImageURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
