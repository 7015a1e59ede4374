package player

import "context"

// TransportEventKind discriminates events emitted by a Transport.
type TransportEventKind string

const (
	// TransportReady signals that media is prepared and playing; DurationMs
	// carries the measured clip length.
	TransportReady TransportEventKind = "ready"
	// TransportBuffering signals that media is temporarily unavailable.
	TransportBuffering TransportEventKind = "buffering"
	// TransportEnded signals natural end of the clip.
	TransportEnded TransportEventKind = "ended"
	// TransportFaulted signals an unrecoverable playback failure.
	TransportFaulted TransportEventKind = "faulted"
)

// TransportEvent is one asynchronous signal from the underlying player.
type TransportEvent struct {
	Kind       TransportEventKind
	DurationMs int64
	Err        error
}

// Transport abstracts the underlying media player. Implementations deliver
// asynchronous signals on Events; the controller is the only consumer and the
// only caller of the command methods.
type Transport interface {
	// Load prepares path and starts playback. A TransportReady event follows
	// on success; TransportFaulted on failure during preparation.
	Load(ctx context.Context, path string) error
	// Pause suspends playback in place.
	Pause() error
	// Resume continues paused playback. A TransportReady event follows.
	Resume() error
	// Stop tears down playback without emitting an ended event.
	Stop() error
	// SeekTo repositions playback to positionMs.
	SeekTo(positionMs int64) error
	// PositionMs reports the current playback position.
	PositionMs() int64
	// Events is the signal stream consumed by the controller.
	Events() <-chan TransportEvent
	// Close releases the transport. No events follow.
	Close() error
}
