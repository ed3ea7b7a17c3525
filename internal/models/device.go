// internal/models/device.go
package models

// DeviceRegistration tracks the push identity synchronized with the
// backend. Ephemeral except for DeviceID, which is generated once per
// install and cached locally.
type DeviceRegistration struct {
	Token       string `json:"token"`
	DeviceID    string `json:"deviceId"`
	Platform    string `json:"platform"`
	DeviceLabel string `json:"deviceName"`
	Registered  bool   `json:"registered"` // true only after a backend acknowledgement
}
