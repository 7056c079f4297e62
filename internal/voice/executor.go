// Package voice declares the contract with the audio-delivery
// infrastructure that plays on behalf of channel listening sessions.
// The real implementation lives with the voice infrastructure; this
// package only fixes the call surface and the event stream coming back.
package voice

import (
	"context"

	"github.com/olebedev/emitter"
)

// Event topics emitted by an executor. Every event carries the channel id
// as its first argument.
const (
	TopicTrackFinished = "player.track_finished"
	TopicInterrupted   = "player.interrupted"
	TopicPresence      = "player.presence"
)

// Executor drives actual audio delivery for one or more channels.
type Executor interface {
	StartTrack(ctx context.Context, channelID, songID string, position float64) error
	Pause(ctx context.Context, channelID string) error
	Resume(ctx context.Context, channelID string) error
	SetVolume(ctx context.Context, channelID string, volume int) error
	Stop(ctx context.Context, channelID string) error
}

// Nop is an executor that accepts every call and plays nothing. Used when
// the voice infrastructure is unavailable and in tests.
type Nop struct{}

func (Nop) StartTrack(context.Context, string, string, float64) error { return nil }
func (Nop) Pause(context.Context, string) error                       { return nil }
func (Nop) Resume(context.Context, string) error                      { return nil }
func (Nop) SetVolume(context.Context, string, int) error              { return nil }
func (Nop) Stop(context.Context, string) error                        { return nil }

// NewEmitter builds the event bus shared between an executor and the
// session manager listening to it.
func NewEmitter() *emitter.Emitter {
	return emitter.New(16)
}
