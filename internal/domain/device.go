package domain

import "time"

// DeviceType indicates the kind of playback device.
type DeviceType string

const (
	DeviceTypeWeb     DeviceType = "web"
	DeviceTypeDesktop DeviceType = "desktop"
	DeviceTypeMobile  DeviceType = "mobile"
	DeviceTypeSpeaker DeviceType = "speaker"
)

// Device is a playback endpoint registered over a live connection. Its
// identity is ephemeral: a new one is minted on every registration and it
// dies with the connection.
type Device struct {
	ID           string     `json:"id"`
	ConnectionID string     `json:"-"`
	Name         string     `json:"name"`
	Type         DeviceType `json:"type"`
	ConnectedAt  time.Time  `json:"connected_at"`
}

// DeviceList is the view broadcast to every scope member whenever the
// registry or the election result changes.
type DeviceList struct {
	Devices        []Device `json:"devices"`
	ActiveDeviceID string   `json:"active_device_id,omitempty"`
}
