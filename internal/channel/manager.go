// Package channel implements the server-owned listening session for a
// shared channel: the same election/state/routing shape as a personal
// scope, but with a voice executor standing in for the active device, a
// FIFO queue, an inactivity auto-leave timer and a durable record that
// survives process restarts.
package channel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/olebedev/emitter"
	"go.uber.org/zap"

	"playsync/internal/domain"
	"playsync/internal/voice"
)

// Manager owns every live channel session, sharded by channel id.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	repo        Repository
	exec        voice.Executor
	events      *emitter.Emitter
	idleTimeout time.Duration
	log         *zap.Logger
}

func NewManager(repo Repository, exec voice.Executor, events *emitter.Emitter, idleTimeout time.Duration, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		repo:        repo,
		exec:        exec,
		events:      events,
		idleTimeout: idleTimeout,
		log:         log,
	}
}

// Run consumes executor events until ctx is cancelled. Track-finished
// events advance the queue the same way an explicit skip does.
func (m *Manager) Run(ctx context.Context) {
	finished := m.events.On(voice.TopicTrackFinished)
	presence := m.events.On(voice.TopicPresence)
	defer m.events.Off(voice.TopicTrackFinished, finished)
	defer m.events.Off(voice.TopicPresence, presence)

	for {
		select {
		case ev := <-finished:
			if err := m.advance(ctx, ev.String(0)); err != nil && !errors.Is(err, domain.ErrChannelSessionNotFound) {
				m.log.Warn("track advance failed", zap.String("channel_id", ev.String(0)), zap.Error(err))
			}
		case ev := <-presence:
			if err := m.Presence(ctx, ev.String(0), ev.Int(1)); err != nil && !errors.Is(err, domain.ErrChannelSessionNotFound) {
				m.log.Warn("presence update failed", zap.String("channel_id", ev.String(0)), zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// session resolves a live session, rehydrating from the repository after a
// restart. With create set, a missing record yields a fresh session.
func (m *Manager) session(ctx context.Context, channelID string, create bool) (*Session, error) {
	m.mu.Lock()
	s := m.sessions[channelID]
	m.mu.Unlock()
	if s != nil {
		return s, nil
	}

	rec, err := m.repo.Find(ctx, channelID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrChannelSessionNotFound):
		if !create {
			return nil, domain.ErrChannelSessionNotFound
		}
		rec = &domain.ChannelSession{
			ChannelID: channelID,
			Queue:     []string{},
			Volume:    DefaultVolume,
		}
	default:
		return nil, err
	}

	m.mu.Lock()
	if existing := m.sessions[channelID]; existing != nil {
		m.mu.Unlock()
		return existing, nil
	}
	s = &Session{data: *rec.Clone()}
	m.sessions[channelID] = s
	m.mu.Unlock()

	// A record persisted mid-countdown keeps its pending leave across the
	// restart. An already expired countdown gets a short grace so the call
	// that triggered the rehydration can register its activity first.
	s.mu.Lock()
	if s.data.ScheduledLeaveAt != nil {
		wait := time.Until(*s.data.ScheduledLeaveAt)
		if wait < time.Second {
			wait = time.Second
		}
		s.scheduleLeaveLocked(wait, func() { m.fireScheduledLeave(channelID) })
	}
	s.mu.Unlock()

	return s, nil
}

// mutate runs one serialized transition: apply fn under the session lock,
// cancel any pending leave (every mutation counts as activity), then write
// the record through outside the lock.
func (m *Manager) mutate(ctx context.Context, channelID string, create bool, fn func(d *domain.ChannelSession) error) (Status, error) {
	s, err := m.session(ctx, channelID, create)
	if err != nil {
		return Status{}, err
	}

	s.mu.Lock()
	if err := fn(&s.data); err != nil {
		s.mu.Unlock()
		return Status{}, err
	}
	s.cancelLeaveLocked()
	s.data.UpdatedAt = time.Now()
	s.rev++
	rev := s.rev
	snap := s.data.Clone()
	st := s.statusLocked()
	s.mu.Unlock()

	s.persist(ctx, m.repo, m.log, rev, snap)
	return st, nil
}

// Join creates or re-enters a channel session and seeds its queue. When
// content is available the head starts playing immediately.
func (m *Manager) Join(ctx context.Context, channelID string, songIDs []string) (Status, error) {
	var startSong string
	st, err := m.mutate(ctx, channelID, true, func(d *domain.ChannelSession) error {
		d.UserCount++
		if d.CurrentSongID == "" && len(d.Queue) == 0 {
			d.Queue = append(d.Queue, songIDs...)
		}
		if d.CurrentSongID == "" && len(d.Queue) > 0 {
			d.CurrentSongID = d.Queue[0]
			d.Queue = d.Queue[1:]
			d.IsPlaying = true
			d.Position = 0
			startSong = d.CurrentSongID
		}
		return nil
	})
	if err != nil {
		return Status{}, err
	}
	if startSong != "" {
		m.startTrack(ctx, channelID, startSong, 0)
	}
	m.log.Info("channel joined", zap.String("channel_id", channelID), zap.Int("user_count", st.UserCount))
	return st, nil
}

// PlaySong plays a song right now without touching the queue.
func (m *Manager) PlaySong(ctx context.Context, channelID, songID string) (Status, error) {
	st, err := m.mutate(ctx, channelID, false, func(d *domain.ChannelSession) error {
		d.CurrentSongID = songID
		d.IsPlaying = true
		d.Position = 0
		return nil
	})
	if err != nil {
		return Status{}, err
	}
	m.startTrack(ctx, channelID, songID, 0)
	return st, nil
}

// AddToQueue appends a song to the tail of the queue.
func (m *Manager) AddToQueue(ctx context.Context, channelID, songID string) (Status, error) {
	return m.mutate(ctx, channelID, false, func(d *domain.ChannelSession) error {
		d.Queue = append(d.Queue, songID)
		return nil
	})
}

// Skip dequeues the head into the current song; with an empty queue the
// session goes idle.
func (m *Manager) Skip(ctx context.Context, channelID string) (Status, error) {
	return m.advanceStatus(ctx, channelID)
}

func (m *Manager) advance(ctx context.Context, channelID string) error {
	_, err := m.advanceStatus(ctx, channelID)
	return err
}

func (m *Manager) advanceStatus(ctx context.Context, channelID string) (Status, error) {
	var next string
	st, err := m.mutate(ctx, channelID, false, func(d *domain.ChannelSession) error {
		if len(d.Queue) > 0 {
			d.CurrentSongID = d.Queue[0]
			d.Queue = d.Queue[1:]
			d.IsPlaying = true
			d.Position = 0
			next = d.CurrentSongID
		} else {
			d.CurrentSongID = ""
			d.IsPlaying = false
			d.Position = 0
		}
		return nil
	})
	if err != nil {
		return Status{}, err
	}
	if next != "" {
		m.startTrack(ctx, channelID, next, 0)
	} else if err := m.exec.Stop(ctx, channelID); err != nil {
		m.log.Warn("executor stop failed", zap.String("channel_id", channelID), zap.Error(err))
	}
	return st, nil
}

// Pause suspends playback without touching the current song or queue.
func (m *Manager) Pause(ctx context.Context, channelID string) (Status, error) {
	st, err := m.mutate(ctx, channelID, false, func(d *domain.ChannelSession) error {
		d.IsPlaying = false
		return nil
	})
	if err != nil {
		return Status{}, err
	}
	if err := m.exec.Pause(ctx, channelID); err != nil {
		m.log.Warn("executor pause failed", zap.String("channel_id", channelID), zap.Error(err))
	}
	return st, nil
}

// Resume continues playback of the current song, if any.
func (m *Manager) Resume(ctx context.Context, channelID string) (Status, error) {
	st, err := m.mutate(ctx, channelID, false, func(d *domain.ChannelSession) error {
		if d.CurrentSongID != "" {
			d.IsPlaying = true
		}
		return nil
	})
	if err != nil {
		return Status{}, err
	}
	if st.IsPlaying {
		if err := m.exec.Resume(ctx, channelID); err != nil {
			m.log.Warn("executor resume failed", zap.String("channel_id", channelID), zap.Error(err))
		}
	}
	return st, nil
}

// SetVolume clamps and persists the session volume.
func (m *Manager) SetVolume(ctx context.Context, channelID string, volume int) (Status, error) {
	volume = domain.ClampVolume(volume)
	st, err := m.mutate(ctx, channelID, false, func(d *domain.ChannelSession) error {
		d.Volume = volume
		return nil
	})
	if err != nil {
		return Status{}, err
	}
	if err := m.exec.SetVolume(ctx, channelID, volume); err != nil {
		m.log.Warn("executor volume failed", zap.String("channel_id", channelID), zap.Error(err))
	}
	return st, nil
}

// Leave destroys the session immediately.
func (m *Manager) Leave(ctx context.Context, channelID string) error {
	s, err := m.session(ctx, channelID, false)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.sessions[channelID] == s {
		delete(m.sessions, channelID)
	}
	m.mu.Unlock()

	s.mu.Lock()
	s.cancelLeaveLocked()
	s.mu.Unlock()

	return m.teardown(ctx, channelID)
}

// Presence records the channel's listener count as reported by the voice
// infrastructure. A transition to zero arms the deferred leave; anything
// else cancels it.
func (m *Manager) Presence(ctx context.Context, channelID string, userCount int) error {
	s, err := m.session(ctx, channelID, false)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data.UserCount = userCount
	if userCount == 0 {
		s.scheduleLeaveLocked(m.idleTimeout, func() { m.fireScheduledLeave(channelID) })
	} else {
		s.cancelLeaveLocked()
	}
	s.data.UpdatedAt = time.Now()
	s.rev++
	rev := s.rev
	snap := s.data.Clone()
	s.mu.Unlock()

	s.persist(ctx, m.repo, m.log, rev, snap)
	return nil
}

// Status reads the session without counting as activity.
func (m *Manager) Status(ctx context.Context, channelID string) (Status, error) {
	s, err := m.session(ctx, channelID, false)
	if err != nil {
		return Status{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked(), nil
}

// fireScheduledLeave runs when the idle timer expires. The emptiness check
// and the removal from the live map happen atomically under both locks, so
// activity that raced the timer always wins.
func (m *Manager) fireScheduledLeave(channelID string) {
	m.mu.Lock()
	s := m.sessions[channelID]
	if s == nil {
		m.mu.Unlock()
		return
	}
	s.mu.Lock()
	if s.data.UserCount != 0 || s.data.ScheduledLeaveAt == nil {
		s.mu.Unlock()
		m.mu.Unlock()
		return
	}
	delete(m.sessions, channelID)
	s.cancelLeaveLocked()
	s.mu.Unlock()
	m.mu.Unlock()

	m.log.Info("idle timeout, leaving channel", zap.String("channel_id", channelID))
	if err := m.teardown(context.Background(), channelID); err != nil {
		m.log.Warn("scheduled leave failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (m *Manager) teardown(ctx context.Context, channelID string) error {
	if err := m.exec.Stop(ctx, channelID); err != nil {
		m.log.Warn("executor stop failed", zap.String("channel_id", channelID), zap.Error(err))
	}
	if err := m.repo.Delete(ctx, channelID); err != nil {
		return err
	}
	m.log.Info("channel session closed", zap.String("channel_id", channelID))
	return nil
}

func (m *Manager) startTrack(ctx context.Context, channelID, songID string, position float64) {
	if err := m.exec.StartTrack(ctx, channelID, songID, position); err != nil {
		m.log.Warn("executor start failed",
			zap.String("channel_id", channelID),
			zap.String("song_id", songID),
			zap.Error(err))
	}
}
