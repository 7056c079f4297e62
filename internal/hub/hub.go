package hub

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"playsync/internal/domain"
)

type entry struct {
	device domain.Device
	sink   Sink
}

// scope serializes all registry, election and state mutations for one user.
// Events are collected under the lock and delivered after release.
type scope struct {
	mu      sync.Mutex
	entries map[string]*entry // keyed by connection id
	active  string            // active device id, "" when none
	state   *domain.PlaybackState
}

type delivery struct {
	sink Sink
	ev   Event
}

// Hub coordinates playback across every device a user has connected.
// Scopes are sharded by user id and run independently of each other.
type Hub struct {
	mu     sync.RWMutex
	scopes map[string]*scope
	log    *zap.Logger
}

func New(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		scopes: make(map[string]*scope),
		log:    log,
	}
}

func (h *Hub) scopeFor(userID string) *scope {
	h.mu.RLock()
	s := h.scopes[userID]
	h.mu.RUnlock()
	if s != nil {
		return s
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if s = h.scopes[userID]; s == nil {
		s = &scope{entries: make(map[string]*entry)}
		h.scopes[userID] = s
	}
	return s
}

func (h *Hub) lookup(userID string) *scope {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.scopes[userID]
}

// RegisterDevice binds a new device to the caller's connection and runs the
// election. A repeated call over the same connection replaces the prior
// device entry instead of accumulating ghosts.
func (h *Hub) RegisterDevice(userID string, sink Sink, name string, typ domain.DeviceType) (domain.Device, error) {
	if sink == nil {
		return domain.Device{}, domain.ErrNotConnected
	}

	s := h.scopeFor(userID)
	connID := sink.ConnectionID()

	s.mu.Lock()
	if prior, ok := s.entries[connID]; ok {
		delete(s.entries, connID)
		if prior.device.ID == s.active {
			s.active = ""
		}
	}

	dev := domain.Device{
		ID:           uuid.NewString(),
		ConnectionID: connID,
		Name:         name,
		Type:         typ,
		ConnectedAt:  time.Now(),
	}
	s.entries[connID] = &entry{device: dev, sink: sink}

	activeChanged := false
	if s.active == "" {
		s.active = dev.ID
		activeChanged = true
	}

	deliveries := []delivery{{sink, Event{Type: EventDeviceRegistered, DeviceID: dev.ID, Device: &dev}}}
	deliveries = append(deliveries, s.broadcastLocked(Event{Type: EventDeviceListUpdated, DeviceList: s.deviceListLocked()})...)
	if activeChanged {
		deliveries = append(deliveries, s.broadcastLocked(Event{Type: EventActiveDeviceChanged, Device: &dev})...)
	}
	s.mu.Unlock()

	h.log.Info("device registered",
		zap.String("user_id", userID),
		zap.String("device_id", dev.ID),
		zap.Bool("active", activeChanged))
	h.dispatch(deliveries)

	return dev, nil
}

// ConnectionClosed drops the device bound to a lost connection. When the
// active device goes away a remaining device is elected in its place.
func (h *Hub) ConnectionClosed(userID, connectionID string) {
	s := h.lookup(userID)
	if s == nil {
		return
	}

	s.mu.Lock()
	e, ok := s.entries[connectionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.entries, connectionID)

	var elected *domain.Device
	if e.device.ID == s.active {
		s.active = ""
		if next := s.oldestLocked(); next != nil {
			s.active = next.ID
			elected = next
		}
	}

	deliveries := s.broadcastLocked(Event{Type: EventDeviceListUpdated, DeviceList: s.deviceListLocked()})
	if elected != nil {
		deliveries = append(deliveries, s.broadcastLocked(Event{Type: EventActiveDeviceChanged, Device: elected})...)
	}
	s.mu.Unlock()

	h.log.Info("device disconnected",
		zap.String("user_id", userID),
		zap.String("device_id", e.device.ID))
	h.dispatch(deliveries)
}

// GetConnectedDevices is a pure read of the registry and election result.
func (h *Hub) GetConnectedDevices(userID string) domain.DeviceList {
	s := h.lookup(userID)
	if s == nil {
		return domain.DeviceList{Devices: []domain.Device{}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.deviceListLocked()
}

// SelectActiveDevice makes an explicit switch to a connected device.
func (h *Hub) SelectActiveDevice(userID, deviceID string) error {
	s := h.lookup(userID)
	if s == nil {
		return domain.ErrDeviceNotFound
	}

	s.mu.Lock()
	target := s.findLocked(deviceID)
	if target == nil {
		s.mu.Unlock()
		return domain.ErrDeviceNotFound
	}
	s.active = target.device.ID
	dev := target.device
	deliveries := s.broadcastLocked(Event{Type: EventActiveDeviceChanged, Device: &dev})
	s.mu.Unlock()

	h.log.Info("active device switched",
		zap.String("user_id", userID),
		zap.String("device_id", deviceID))
	h.dispatch(deliveries)
	return nil
}

// SendCommand routes a transport command to the active device's connection
// only. Delivery is at-most-once; a failure is reported to the caller and
// never retried, the next state sync re-establishes consistency.
func (h *Hub) SendCommand(userID, connectionID string, cmd domain.Command) error {
	s := h.lookup(userID)
	if s == nil {
		return domain.ErrNoActiveDevice
	}

	if cmd.Type == domain.CommandSetVolume {
		cmd.Volume = domain.ClampVolume(cmd.Volume)
	}

	s.mu.Lock()
	target := s.findLocked(s.active)
	s.mu.Unlock()

	if target == nil {
		return domain.ErrNoActiveDevice
	}
	return target.sink.Deliver(Event{Type: EventCommand, Command: &cmd})
}

// SyncPlaybackState applies a last-writer-wins state push from the active
// device and fans it out to every other connection in the scope. Stale
// writes and writes from a device that lost the election in a race are
// dropped silently.
func (h *Hub) SyncPlaybackState(userID, connectionID string, state domain.PlaybackState) error {
	s := h.lookup(userID)
	if s == nil {
		return domain.ErrNotConnected
	}

	s.mu.Lock()
	e, ok := s.entries[connectionID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotConnected
	}
	if e.device.ID != s.active {
		s.mu.Unlock()
		return nil
	}
	if s.state != nil && state.LastUpdated <= s.state.LastUpdated {
		s.mu.Unlock()
		return nil
	}

	state.Volume = domain.ClampVolume(state.Volume)
	state.Queue = append([]string(nil), state.Queue...)
	s.state = &state

	snapshot := state
	var deliveries []delivery
	for connID, other := range s.entries {
		if connID == connectionID {
			continue
		}
		deliveries = append(deliveries, delivery{other.sink, Event{Type: EventPlaybackStateUpdated, State: &snapshot}})
	}
	s.mu.Unlock()

	h.dispatch(deliveries)
	return nil
}

// GetPlaybackState serves the pull read a late joiner uses instead of
// waiting for the next push. Returns nil when no state was ever set.
func (h *Hub) GetPlaybackState(userID string) *domain.PlaybackState {
	s := h.lookup(userID)
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil
	}
	copied := *s.state
	copied.Queue = append([]string(nil), s.state.Queue...)
	return &copied
}

func (h *Hub) dispatch(deliveries []delivery) {
	for _, d := range deliveries {
		if err := d.sink.Deliver(d.ev); err != nil {
			h.log.Warn("event delivery failed",
				zap.String("connection_id", d.sink.ConnectionID()),
				zap.String("event", string(d.ev.Type)),
				zap.Error(err))
		}
	}
}

func (s *scope) findLocked(deviceID string) *entry {
	if deviceID == "" {
		return nil
	}
	for _, e := range s.entries {
		if e.device.ID == deviceID {
			return e
		}
	}
	return nil
}

func (s *scope) oldestLocked() *domain.Device {
	var oldest *domain.Device
	for _, e := range s.entries {
		if oldest == nil || e.device.ConnectedAt.Before(oldest.ConnectedAt) {
			d := e.device
			oldest = &d
		}
	}
	return oldest
}

func (s *scope) deviceListLocked() *domain.DeviceList {
	devices := make([]domain.Device, 0, len(s.entries))
	for _, e := range s.entries {
		devices = append(devices, e.device)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].ConnectedAt.Before(devices[j].ConnectedAt)
	})
	return &domain.DeviceList{Devices: devices, ActiveDeviceID: s.active}
}

func (s *scope) broadcastLocked(ev Event) []delivery {
	deliveries := make([]delivery, 0, len(s.entries))
	for _, e := range s.entries {
		deliveries = append(deliveries, delivery{e.sink, ev})
	}
	return deliveries
}
