package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKnownType(t *testing.T) {
	known := []NotificationType{
		TypeLead, TypeTask, TypeCompany, TypeCampaign,
		TypeBroadcast, TypeSystem, TypeAnnouncement,
	}
	for _, typ := range known {
		assert.True(t, IsKnownType(typ), "type %q should be known", typ)
	}

	assert.False(t, IsKnownType("invoice"))
	assert.False(t, IsKnownType(""))
}

func TestNormalizePriority(t *testing.T) {
	assert.Equal(t, PriorityHigh, NormalizePriority("high"))
	assert.Equal(t, PriorityUrgent, NormalizePriority("urgent"))
	assert.Equal(t, PriorityNormal, NormalizePriority("normal"))
	assert.Equal(t, PriorityNormal, NormalizePriority("critical"))
	assert.Equal(t, PriorityNormal, NormalizePriority(""))
}

func TestValidImageURL(t *testing.T) {
	assert.True(t, ValidImageURL("https://cdn.example.com/avatars/1.png"))
	assert.True(t, ValidImageURL("http://cdn.example.com/a.jpg"))

	assert.False(t, ValidImageURL(""))
	assert.False(t, ValidImageURL("/avatars/1.png"), "relative paths are rejected")
	assert.False(t, ValidImageURL("ftp://cdn.example.com/a.jpg"))
	assert.False(t, ValidImageURL("https://"), "host is required")
	assert.False(t, ValidImageURL("not a url at all ::"))
}
