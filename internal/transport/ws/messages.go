package ws

import "playsync/internal/domain"

// Client message types.
const (
	msgRegisterDevice = "register_device"
	msgSelectDevice   = "select_device"
	msgGetDevices     = "get_devices"
	msgCommand        = "command"
	msgSyncState      = "sync_state"
	msgGetState       = "get_state"
)

// clientMessage is the inbound wire envelope. Only the fields matching
// Type are expected to be set.
type clientMessage struct {
	Type       string                `json:"type"`
	Name       string                `json:"name,omitempty"`
	DeviceType string                `json:"device_type,omitempty"`
	DeviceID   string                `json:"device_id,omitempty"`
	Command    *domain.Command       `json:"command,omitempty"`
	State      *domain.PlaybackState `json:"state,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
