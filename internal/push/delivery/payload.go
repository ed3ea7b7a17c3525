// internal/push/delivery/payload.go
package delivery

import (
	"github.com/xeipuuv/gojsonschema"

	"crmpush/internal/common/errors"
	"crmpush/internal/models"
	"crmpush/internal/push/provider"
)

// fallbackTitle is used when neither payload block carries a title.
const fallbackTitle = "New notification"

// Parsed is the normalized form of a push payload, applied uniformly
// regardless of delivery path.
type Parsed struct {
	NotificationID string
	Title          string
	Body           string
	ImageURL       string
	Type           models.NotificationType
	Priority       models.NotificationPriority
	EntityID       string
}

// payloadSchema rejects messages that carry neither a display block nor
// a data block, and enforces string typing on the fields we read.
var payloadSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"notification": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"title":    map[string]interface{}{"type": "string"},
				"body":     map[string]interface{}{"type": "string"},
				"imageUrl": map[string]interface{}{"type": "string"},
			},
		},
		"data": map[string]interface{}{
			"type": "object",
			"additionalProperties": map[string]interface{}{
				"type": "string",
			},
		},
	},
	"anyOf": []interface{}{
		map[string]interface{}{"required": []interface{}{"notification"}},
		map[string]interface{}{"required": []interface{}{"data"}},
	},
}

// Parse validates and normalizes a raw provider message. A message that
// fails schema validation is reported as MALFORMED_PAYLOAD and must be
// dropped by the caller, never surfaced as a corrupt feed entry.
func Parse(msg *provider.Message) (*Parsed, error) {
	if msg == nil {
		return nil, errors.NewMalformedPayloadError("nil message")
	}

	doc := map[string]interface{}{}
	if msg.Notification != nil {
		doc["notification"] = map[string]interface{}{
			"title":    msg.Notification.Title,
			"body":     msg.Notification.Body,
			"imageUrl": msg.Notification.ImageURL,
		}
	}
	if msg.Data != nil {
		data := make(map[string]interface{}, len(msg.Data))
		for k, v := range msg.Data {
			data[k] = v
		}
		doc["data"] = data
	}

	schemaLoader := gojsonschema.NewGoLoader(payloadSchema)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, errors.NewMalformedPayloadError(err.Error())
	}
	if !result.Valid() {
		details := ""
		for _, desc := range result.Errors() {
			if details != "" {
				details += "; "
			}
			details += desc.String()
		}
		return nil, errors.NewMalformedPayloadError(details)
	}

	p := &Parsed{
		NotificationID: msg.Data["notificationId"],
		Type:           models.NotificationType(msg.Data["type"]),
		Priority:       models.NormalizePriority(msg.Data["priority"]),
		EntityID:       msg.Data["entityId"],
	}

	// Display block wins; the data block's title/body act as fallback.
	if msg.Notification != nil {
		p.Title = msg.Notification.Title
		p.Body = msg.Notification.Body
		if models.ValidImageURL(msg.Notification.ImageURL) {
			p.ImageURL = msg.Notification.ImageURL
		}
	}
	if p.Title == "" {
		p.Title = msg.Data["title"]
	}
	if p.Body == "" {
		p.Body = msg.Data["body"]
	}
	if p.ImageURL == "" && models.ValidImageURL(msg.Data["imageUrl"]) {
		p.ImageURL = msg.Data["imageUrl"]
	}

	if p.Title == "" {
		p.Title = fallbackTitle
	}
	if !models.IsKnownType(p.Type) {
		p.Type = models.TypeSystem
	}
	return p, nil
}
