package domain

import "errors"

var (
	// ErrNotConnected means the caller invoked an operation without a live
	// transport connection bound to a registered device.
	ErrNotConnected = errors.New("not connected")

	// ErrNoActiveDevice means a command was issued while no elected device
	// is connected in the scope.
	ErrNoActiveDevice = errors.New("no active device")

	// ErrDeviceNotFound means the target device is absent from the scope's
	// registry.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrChannelSessionNotFound means a control or status call targeted a
	// channel with no live or persisted listening session.
	ErrChannelSessionNotFound = errors.New("channel session not found")
)
