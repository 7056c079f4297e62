package hub

import "playsync/internal/domain"

// EventType discriminates pushes delivered to scope members.
type EventType string

const (
	EventDeviceRegistered     EventType = "device.registered"
	EventDeviceListUpdated    EventType = "device_list.updated"
	EventActiveDeviceChanged  EventType = "active_device.changed"
	EventPlaybackStateUpdated EventType = "playback_state.updated"
	EventCommand              EventType = "command"
)

// Event is the typed envelope pushed to connections. Only the payload field
// matching Type is populated.
type Event struct {
	Type       EventType             `json:"type"`
	DeviceID   string                `json:"device_id,omitempty"`
	DeviceList *domain.DeviceList    `json:"device_list,omitempty"`
	Device     *domain.Device        `json:"device,omitempty"`
	State      *domain.PlaybackState `json:"state,omitempty"`
	Command    *domain.Command       `json:"command,omitempty"`
}

// Sink delivers events to one connection. Delivery is fire-and-forget:
// the hub never retries and never blocks scope mutations on it.
type Sink interface {
	ConnectionID() string
	Deliver(ev Event) error
}
