package channel

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"playsync/internal/domain"
)

// DefaultVolume is the volume a fresh session starts at.
const DefaultVolume = 100

// Status is the read model served by the status endpoint.
type Status struct {
	CurrentSongID      string              `json:"current_song_id,omitempty"`
	State              domain.SessionState `json:"state"`
	IsPlaying          bool                `json:"is_playing"`
	QueueLength        int                 `json:"queue_length"`
	Volume             int                 `json:"volume"`
	UserCount          int                 `json:"user_count"`
	ScheduledLeaveTime *time.Time          `json:"scheduled_leave_time,omitempty"`
}

// Repository is the durable read/write contract for a session record. Find
// returns domain.ErrChannelSessionNotFound when no record exists.
type Repository interface {
	Find(ctx context.Context, channelID string) (*domain.ChannelSession, error)
	Save(ctx context.Context, sess *domain.ChannelSession) error
	Delete(ctx context.Context, channelID string) error
}

// Session is one channel's live listening session. Its mutex serializes
// every transition; the write-through to the repository happens after the
// state lock is released, ordered by revision so a slow save can never
// overwrite a newer one.
type Session struct {
	mu         sync.Mutex
	data       domain.ChannelSession
	rev        int64
	leaveTimer *time.Timer

	persistMu sync.Mutex
	savedRev  int64
}

func (s *Session) statusLocked() Status {
	return Status{
		CurrentSongID:      s.data.CurrentSongID,
		State:              s.data.State(),
		IsPlaying:          s.data.IsPlaying,
		QueueLength:        len(s.data.Queue),
		Volume:             s.data.Volume,
		UserCount:          s.data.UserCount,
		ScheduledLeaveTime: s.data.ScheduledLeaveAt,
	}
}

// scheduleLeaveLocked arms the single deferred-leave timer. An already
// pending timer is replaced, never stacked.
func (s *Session) scheduleLeaveLocked(after time.Duration, fire func()) {
	if s.leaveTimer != nil {
		s.leaveTimer.Stop()
	}
	at := time.Now().Add(after)
	s.data.ScheduledLeaveAt = &at
	s.leaveTimer = time.AfterFunc(after, fire)
}

func (s *Session) cancelLeaveLocked() {
	if s.leaveTimer != nil {
		s.leaveTimer.Stop()
		s.leaveTimer = nil
	}
	s.data.ScheduledLeaveAt = nil
}

func (s *Session) persist(ctx context.Context, repo Repository, log *zap.Logger, rev int64, snap *domain.ChannelSession) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if rev <= s.savedRev {
		return
	}
	if err := repo.Save(ctx, snap); err != nil {
		log.Warn("session write-through failed",
			zap.String("channel_id", snap.ChannelID),
			zap.Error(err))
		return
	}
	s.savedRev = rev
}
