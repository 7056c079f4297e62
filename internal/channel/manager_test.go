package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"playsync/internal/domain"
	"playsync/internal/voice"
)

type memRepo struct {
	mu      sync.Mutex
	records map[string]*domain.ChannelSession
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]*domain.ChannelSession)}
}

func (r *memRepo) Find(_ context.Context, channelID string) (*domain.ChannelSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[channelID]
	if !ok {
		return nil, domain.ErrChannelSessionNotFound
	}
	return rec.Clone(), nil
}

func (r *memRepo) Save(_ context.Context, sess *domain.ChannelSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[sess.ChannelID] = sess.Clone()
	return nil
}

func (r *memRepo) Delete(_ context.Context, channelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, channelID)
	return nil
}

func newTestManager(repo Repository, idle time.Duration) *Manager {
	return NewManager(repo, voice.Nop{}, voice.NewEmitter(), idle, nil)
}

func TestJoinSeedsQueueAndPlays(t *testing.T) {
	m := newTestManager(newMemRepo(), time.Minute)

	st, err := m.Join(context.Background(), "ch1", []string{"s1", "s2", "s3"})
	if err != nil {
		t.Fatalf("join err: %v", err)
	}
	if st.CurrentSongID != "s1" || !st.IsPlaying {
		t.Fatalf("expected s1 playing, got %+v", st)
	}
	if st.QueueLength != 2 {
		t.Fatalf("expected queue len 2 got %d", st.QueueLength)
	}
	if st.State != domain.SessionPlaying {
		t.Fatalf("expected playing state got %s", st.State)
	}
	if st.UserCount != 1 {
		t.Fatalf("expected user count 1 got %d", st.UserCount)
	}
}

func TestJoinWithoutContentStaysIdle(t *testing.T) {
	m := newTestManager(newMemRepo(), time.Minute)

	st, err := m.Join(context.Background(), "ch1", nil)
	if err != nil {
		t.Fatalf("join err: %v", err)
	}
	if st.State != domain.SessionIdle || st.CurrentSongID != "" {
		t.Fatalf("expected idle session, got %+v", st)
	}
}

func TestPlaySongKeepsQueue(t *testing.T) {
	m := newTestManager(newMemRepo(), time.Minute)
	ctx := context.Background()

	m.Join(ctx, "ch1", nil)
	m.AddToQueue(ctx, "ch1", "s1")
	m.AddToQueue(ctx, "ch1", "s2")

	st, err := m.PlaySong(ctx, "ch1", "s3")
	if err != nil {
		t.Fatalf("play err: %v", err)
	}
	if st.CurrentSongID != "s3" || !st.IsPlaying {
		t.Fatalf("expected s3 playing got %+v", st)
	}
	if st.QueueLength != 2 {
		t.Fatalf("play song must not touch the queue, len %d", st.QueueLength)
	}
}

func TestSkipDequeuesFIFO(t *testing.T) {
	m := newTestManager(newMemRepo(), time.Minute)
	ctx := context.Background()

	m.Join(ctx, "ch1", nil)
	m.PlaySong(ctx, "ch1", "s3")
	m.AddToQueue(ctx, "ch1", "s1")

	st, err := m.Skip(ctx, "ch1")
	if err != nil {
		t.Fatalf("skip err: %v", err)
	}
	if st.CurrentSongID != "s1" || st.QueueLength != 0 {
		t.Fatalf("expected s1 with empty queue, got %+v", st)
	}
	if st.State != domain.SessionPlaying {
		t.Fatalf("expected still playing got %s", st.State)
	}
}

func TestSkipEmptyQueueGoesIdle(t *testing.T) {
	m := newTestManager(newMemRepo(), time.Minute)
	ctx := context.Background()

	m.Join(ctx, "ch1", []string{"s1"})

	st, err := m.Skip(ctx, "ch1")
	if err != nil {
		t.Fatalf("skip err: %v", err)
	}
	if st.CurrentSongID != "" || st.IsPlaying {
		t.Fatalf("expected idle after draining queue, got %+v", st)
	}
	if st.State != domain.SessionIdle {
		t.Fatalf("expected idle state got %s", st.State)
	}
}

func TestPauseResume(t *testing.T) {
	m := newTestManager(newMemRepo(), time.Minute)
	ctx := context.Background()

	m.Join(ctx, "ch1", []string{"s1", "s2"})

	st, _ := m.Pause(ctx, "ch1")
	if st.IsPlaying || st.CurrentSongID != "s1" || st.QueueLength != 1 {
		t.Fatalf("pause must only clear the playing flag, got %+v", st)
	}
	if st.State != domain.SessionPaused {
		t.Fatalf("expected paused state got %s", st.State)
	}

	st, _ = m.Resume(ctx, "ch1")
	if !st.IsPlaying || st.CurrentSongID != "s1" {
		t.Fatalf("resume must restore the playing flag, got %+v", st)
	}
}

func TestResumeWithoutSongStaysIdle(t *testing.T) {
	m := newTestManager(newMemRepo(), time.Minute)
	ctx := context.Background()

	m.Join(ctx, "ch1", nil)
	st, _ := m.Resume(ctx, "ch1")
	if st.IsPlaying {
		t.Fatalf("idle session cannot resume: %+v", st)
	}
}

func TestSetVolumeClamped(t *testing.T) {
	m := newTestManager(newMemRepo(), time.Minute)
	ctx := context.Background()

	m.Join(ctx, "ch1", nil)

	st, _ := m.SetVolume(ctx, "ch1", 250)
	if st.Volume != 100 {
		t.Fatalf("expected clamp to 100 got %d", st.Volume)
	}
	st, _ = m.SetVolume(ctx, "ch1", -5)
	if st.Volume != 0 {
		t.Fatalf("expected clamp to 0 got %d", st.Volume)
	}
}

func TestControlUnknownChannel(t *testing.T) {
	m := newTestManager(newMemRepo(), time.Minute)

	if _, err := m.Status(context.Background(), "nope"); !errors.Is(err, domain.ErrChannelSessionNotFound) {
		t.Fatalf("expected ErrChannelSessionNotFound got %v", err)
	}
	if _, err := m.Skip(context.Background(), "nope"); !errors.Is(err, domain.ErrChannelSessionNotFound) {
		t.Fatalf("expected ErrChannelSessionNotFound got %v", err)
	}
}

func TestLeaveDestroysSession(t *testing.T) {
	repo := newMemRepo()
	m := newTestManager(repo, time.Minute)
	ctx := context.Background()

	m.Join(ctx, "ch1", []string{"s1"})
	if err := m.Leave(ctx, "ch1"); err != nil {
		t.Fatalf("leave err: %v", err)
	}

	if _, err := m.Status(ctx, "ch1"); !errors.Is(err, domain.ErrChannelSessionNotFound) {
		t.Fatalf("expected session gone, got %v", err)
	}
	if _, err := repo.Find(ctx, "ch1"); !errors.Is(err, domain.ErrChannelSessionNotFound) {
		t.Fatalf("expected record deleted, got %v", err)
	}
}

func TestWriteThroughAndRehydrate(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()

	m1 := newTestManager(repo, time.Minute)
	m1.Join(ctx, "ch1", []string{"s1", "s2"})
	m1.AddToQueue(ctx, "ch1", "s3")
	m1.SetVolume(ctx, "ch1", 40)

	// A new manager over the same repository stands in for a restarted
	// process.
	m2 := newTestManager(repo, time.Minute)
	st, err := m2.Status(ctx, "ch1")
	if err != nil {
		t.Fatalf("rehydrate err: %v", err)
	}
	if st.CurrentSongID != "s1" || st.QueueLength != 2 || st.Volume != 40 {
		t.Fatalf("rehydrated state wrong: %+v", st)
	}
}

func TestScheduledLeaveFires(t *testing.T) {
	repo := newMemRepo()
	m := newTestManager(repo, 30*time.Millisecond)
	ctx := context.Background()

	m.Join(ctx, "ch1", []string{"s1"})
	if err := m.Presence(ctx, "ch1", 0); err != nil {
		t.Fatalf("presence err: %v", err)
	}

	st, _ := m.Status(ctx, "ch1")
	if st.ScheduledLeaveTime == nil {
		t.Fatal("expected a scheduled leave time")
	}

	time.Sleep(120 * time.Millisecond)

	if _, err := m.Status(ctx, "ch1"); !errors.Is(err, domain.ErrChannelSessionNotFound) {
		t.Fatalf("expected session torn down after idle window, got %v", err)
	}
}

func TestActivityCancelsScheduledLeave(t *testing.T) {
	m := newTestManager(newMemRepo(), 50*time.Millisecond)
	ctx := context.Background()

	m.Join(ctx, "ch1", []string{"s1", "s2"})
	m.Pause(ctx, "ch1")
	m.Presence(ctx, "ch1", 0)

	// A join before expiry cancels the pending leave.
	m.Join(ctx, "ch1", nil)

	time.Sleep(150 * time.Millisecond)

	st, err := m.Status(ctx, "ch1")
	if err != nil {
		t.Fatalf("session must survive a cancelled leave: %v", err)
	}
	if st.ScheduledLeaveTime != nil {
		t.Fatalf("leave still scheduled: %+v", st)
	}
	// Play state is untouched by the cancel.
	if st.CurrentSongID != "s1" || st.IsPlaying {
		t.Fatalf("play state changed across cancel: %+v", st)
	}
}

func TestScheduledLeaveNotStacked(t *testing.T) {
	repo := newMemRepo()
	m := newTestManager(repo, 40*time.Millisecond)
	ctx := context.Background()

	m.Join(ctx, "ch1", []string{"s1"})
	m.Presence(ctx, "ch1", 0)
	m.Presence(ctx, "ch1", 0)
	m.Presence(ctx, "ch1", 2)

	time.Sleep(120 * time.Millisecond)

	if _, err := m.Status(ctx, "ch1"); err != nil {
		t.Fatalf("occupied session torn down by a stale timer: %v", err)
	}
}

func TestTrackFinishedAdvancesQueue(t *testing.T) {
	repo := newMemRepo()
	events := voice.NewEmitter()
	m := NewManager(repo, voice.Nop{}, events, time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.Join(ctx, "ch1", []string{"s1", "s2"})

	// Wait for Run to subscribe before emitting.
	for len(events.Listeners(voice.TopicTrackFinished)) == 0 {
		time.Sleep(time.Millisecond)
	}
	<-events.Emit(voice.TopicTrackFinished, "ch1")

	deadline := time.After(time.Second)
	for {
		st, err := m.Status(ctx, "ch1")
		if err != nil {
			t.Fatalf("status err: %v", err)
		}
		if st.CurrentSongID == "s2" {
			if st.QueueLength != 0 {
				t.Fatalf("expected drained queue got %d", st.QueueLength)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("queue never advanced, still %+v", st)
		case <-time.After(5 * time.Millisecond):
		}
	}
}
