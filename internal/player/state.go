package player

import "voicebox/internal/voicepack"

// ShortAudioThresholdMs is the inclusive duration bound below which a clip is
// flagged as short.
const ShortAudioThresholdMs int64 = 10000

// MsgAudioNotFound is the terminal message for a Play against a missing file.
const MsgAudioNotFound = "Audio file not found"

// StateKind discriminates playback states.
type StateKind string

const (
	StateIdle    StateKind = "idle"
	StateLoading StateKind = "loading"
	StatePlaying StateKind = "playing"
	StatePaused  StateKind = "paused"
	StateError   StateKind = "error"
)

// State is the playback state machine value. Voice, PositionMs, DurationMs and
// ShortAudio are meaningful for Playing and Paused; Message only for Error.
type State struct {
	Kind       StateKind
	Voice      *voicepack.Voice
	PositionMs int64
	DurationMs int64
	ShortAudio bool
	Message    string
}

// Idle reports whether playback is fully stopped with no bound voice.
func (s State) Idle() bool {
	return s.Kind == StateIdle
}

// ActionKind discriminates playback commands.
type ActionKind string

const (
	ActionPlay   ActionKind = "play"
	ActionPause  ActionKind = "pause"
	ActionResume ActionKind = "resume"
	ActionStop   ActionKind = "stop"
	ActionSeek   ActionKind = "seek"
)

// Action is a playback command. Voice is set for Play, PositionMs for Seek.
type Action struct {
	Kind       ActionKind
	Voice      *voicepack.Voice
	PositionMs int64
}

// Play builds a play action for the given voice.
func Play(voice *voicepack.Voice) Action {
	return Action{Kind: ActionPlay, Voice: voice}
}

// Pause builds a pause action.
func Pause() Action { return Action{Kind: ActionPause} }

// Resume builds a resume action.
func Resume() Action { return Action{Kind: ActionResume} }

// Stop builds a stop action.
func Stop() Action { return Action{Kind: ActionStop} }

// SeekTo builds a seek action targeting positionMs.
func SeekTo(positionMs int64) Action {
	return Action{Kind: ActionSeek, PositionMs: positionMs}
}
