package domain

import "time"

// SessionState is the channel listening session's lifecycle state.
type SessionState string

const (
	SessionIdle    SessionState = "idle"
	SessionJoining SessionState = "joining"
	SessionPlaying SessionState = "playing"
	SessionPaused  SessionState = "paused"
)

// ChannelSession is the server-owned listening session for a shared channel.
// Unlike a personal scope it has no active device: a server-side executor
// plays on its behalf. The whole record is written through to durable
// storage on every mutating transition so a restart can rehydrate it.
type ChannelSession struct {
	ChannelID        string     `json:"channel_id"`
	CurrentSongID    string     `json:"current_song_id,omitempty"`
	Position         float64    `json:"position"`
	IsPlaying        bool       `json:"is_playing"`
	Queue            []string   `json:"queue"`
	Volume           int        `json:"volume"`
	ScheduledLeaveAt *time.Time `json:"scheduled_leave_at,omitempty"`
	UserCount        int        `json:"user_count"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// State derives the lifecycle state from the session fields.
func (s *ChannelSession) State() SessionState {
	switch {
	case s.CurrentSongID == "":
		return SessionIdle
	case s.IsPlaying:
		return SessionPlaying
	default:
		return SessionPaused
	}
}

// Clone returns a deep copy safe to hand outside the owning lock.
func (s *ChannelSession) Clone() *ChannelSession {
	c := *s
	c.Queue = append([]string(nil), s.Queue...)
	if s.ScheduledLeaveAt != nil {
		t := *s.ScheduledLeaveAt
		c.ScheduledLeaveAt = &t
	}
	return &c
}
