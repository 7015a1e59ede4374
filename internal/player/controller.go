package player

import (
	"context"
	"errors"
	"log/slog"

	"voicebox/internal/fileutil"
	"voicebox/internal/logging"
	"voicebox/internal/voicepack"
	"voicebox/internal/watch"
)

// ErrControllerClosed is returned for actions issued after Close.
var ErrControllerClosed = errors.New("playback controller is closed")

// PathResolver maps a voice's relative audio path to an absolute file path.
type PathResolver func(relative string) string

type command struct {
	action Action
	reply  chan error
}

// Controller drives exactly one Transport and owns the playback state machine.
// All mutations happen on a single goroutine that consumes caller actions and
// transport events; observers read through a watched state cell.
type Controller struct {
	transport Transport
	resolve   PathResolver
	logger    *slog.Logger

	state    *watch.Value[State]
	commands chan command
	closed   chan struct{}
	done     chan struct{}
}

// NewController constructs a controller and starts its state loop.
func NewController(transport Transport, resolve PathResolver, logger *slog.Logger) *Controller {
	c := &Controller{
		transport: transport,
		resolve:   resolve,
		logger:    logging.NewComponentLogger(logger, "player"),
		state:     watch.NewValue(State{Kind: StateIdle}),
		commands:  make(chan command),
		closed:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.loop()
	return c
}

// State returns the current playback state.
func (c *Controller) State() State {
	return c.state.Get()
}

// Subscribe registers an observer of playback-state changes. The channel
// carries the present value immediately and the latest value thereafter.
func (c *Controller) Subscribe() <-chan State {
	return c.state.Subscribe()
}

// Unsubscribe releases a Subscribe registration.
func (c *Controller) Unsubscribe(ch <-chan State) {
	c.state.Unsubscribe(ch)
}

// Apply executes a playback action on the state loop and reports transport
// faults raised while issuing it. State transitions themselves are observable
// through State and Subscribe, not the returned error.
func (c *Controller) Apply(action Action) error {
	cmd := command{action: action, reply: make(chan error, 1)}
	select {
	case c.commands <- cmd:
		return <-cmd.reply
	case <-c.closed:
		return ErrControllerClosed
	}
}

// Play starts playback of voice.
func (c *Controller) Play(voice *voicepack.Voice) error {
	return c.Apply(Play(voice))
}

// Close stops playback, terminates the state loop, and closes the transport.
func (c *Controller) Close() error {
	select {
	case <-c.closed:
		return nil
	default:
	}
	close(c.closed)
	<-c.done
	return c.transport.Close()
}

type loopState struct {
	voice      *voicepack.Voice
	durationMs int64
}

func (c *Controller) loop() {
	defer close(c.done)

	var bound loopState
	for {
		select {
		case <-c.closed:
			_ = c.transport.Stop()
			return
		case cmd := <-c.commands:
			cmd.reply <- c.handleAction(&bound, cmd.action)
		case event, ok := <-c.transport.Events():
			if !ok {
				return
			}
			c.handleTransportEvent(&bound, event)
		}
	}
}

func (c *Controller) handleAction(bound *loopState, action Action) error {
	switch action.Kind {
	case ActionPlay:
		return c.handlePlay(bound, action.Voice)
	case ActionPause:
		current := c.state.Get()
		if current.Kind != StatePlaying {
			return nil
		}
		if err := c.transport.Pause(); err != nil {
			return err
		}
		c.state.Set(State{
			Kind:       StatePaused,
			Voice:      bound.voice,
			PositionMs: c.transport.PositionMs(),
			DurationMs: bound.durationMs,
		})
		return nil
	case ActionResume:
		if c.state.Get().Kind != StatePaused {
			return nil
		}
		// The transport's readiness event drives the transition to Playing.
		return c.transport.Resume()
	case ActionStop:
		err := c.transport.Stop()
		*bound = loopState{}
		c.state.Set(State{Kind: StateIdle})
		return err
	case ActionSeek:
		// Position changes surface on the next Playing/Paused emission.
		return c.transport.SeekTo(action.PositionMs)
	default:
		return nil
	}
}

func (c *Controller) handlePlay(bound *loopState, voice *voicepack.Voice) error {
	if voice == nil {
		return errors.New("play requires a voice")
	}
	path := c.resolve(voice.AudioFile)
	if !fileutil.Exists(path) {
		// The transport is untouched and the previously bound voice keeps its
		// binding; only the observable state collapses.
		c.logger.Warn("audio file missing",
			logging.String("voice", voice.ID),
			logging.String("path", path))
		c.state.Set(State{Kind: StateError, Message: MsgAudioNotFound})
		return nil
	}

	// A play during active playback supersedes it.
	if err := c.transport.Stop(); err != nil {
		c.logger.Warn("stop before play", logging.Error(err))
	}

	bound.voice = voice
	bound.durationMs = 0
	c.state.Set(State{Kind: StateLoading, Voice: voice})

	if err := c.transport.Load(context.Background(), path); err != nil {
		c.logger.Error("start playback",
			logging.String("voice", voice.ID),
			logging.Error(err))
		*bound = loopState{}
		c.state.Set(State{Kind: StateError, Message: err.Error()})
		return nil
	}
	return nil
}

func (c *Controller) handleTransportEvent(bound *loopState, event TransportEvent) {
	switch event.Kind {
	case TransportReady:
		if bound.voice == nil {
			return
		}
		if event.DurationMs > 0 {
			bound.durationMs = event.DurationMs
		}
		c.state.Set(State{
			Kind:       StatePlaying,
			Voice:      bound.voice,
			PositionMs: c.transport.PositionMs(),
			DurationMs: bound.durationMs,
			ShortAudio: bound.durationMs <= ShortAudioThresholdMs,
		})
	case TransportBuffering:
		c.state.Set(State{Kind: StateLoading, Voice: bound.voice})
	case TransportEnded:
		*bound = loopState{}
		c.state.Set(State{Kind: StateIdle})
	case TransportFaulted:
		message := "playback failed"
		if event.Err != nil {
			message = event.Err.Error()
		}
		c.logger.Error("transport fault", logging.Error(event.Err))
		*bound = loopState{}
		c.state.Set(State{Kind: StateError, Message: message})
	}
}
