package player_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"voicebox/internal/logging"
	"voicebox/internal/player"
	"voicebox/internal/voicepack"
)

type fakeTransport struct {
	mu         sync.Mutex
	events     chan player.TransportEvent
	durationMs int64
	positionMs int64
	loadErr    error

	loaded  []string
	pauses  int
	resumes int
	stops   int
	seeks   []int64
	closed  bool
}

func newFakeTransport(durationMs int64) *fakeTransport {
	return &fakeTransport{
		events:     make(chan player.TransportEvent, 16),
		durationMs: durationMs,
	}
}

func (f *fakeTransport) Load(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = append(f.loaded, path)
	f.events <- player.TransportEvent{Kind: player.TransportReady, DurationMs: f.durationMs}
	return nil
}

func (f *fakeTransport) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	return nil
}

func (f *fakeTransport) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
	f.events <- player.TransportEvent{Kind: player.TransportReady, DurationMs: f.durationMs}
	return nil
}

func (f *fakeTransport) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeTransport) SeekTo(positionMs int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, positionMs)
	f.positionMs = positionMs
	return nil
}

func (f *fakeTransport) PositionMs() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positionMs
}

func (f *fakeTransport) Events() <-chan player.TransportEvent {
	return f.events
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) emit(event player.TransportEvent) {
	f.events <- event
}

func (f *fakeTransport) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loaded)
}

func (f *fakeTransport) pauseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pauses
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func writeAudioFile(t *testing.T, name string) (dir string, voice *voicepack.Voice) {
	t.Helper()

	dir = t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir audio parent: %v", err)
	}
	if err := os.WriteFile(path, []byte("audio-bytes"), 0o644); err != nil {
		t.Fatalf("write audio file: %v", err)
	}
	voice = &voicepack.Voice{ID: "v1", Text: "Hello", AudioFile: name, SectionID: "s1"}
	return dir, voice
}

func newController(t *testing.T, transport player.Transport, dir string) *player.Controller {
	t.Helper()

	controller := player.NewController(transport, func(relative string) string {
		return filepath.Join(dir, relative)
	}, logging.NewNop())
	t.Cleanup(func() {
		if err := controller.Close(); err != nil {
			t.Errorf("close controller: %v", err)
		}
	})
	return controller
}

func waitState(t *testing.T, controller *player.Controller, kind player.StateKind) player.State {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		state := controller.State()
		if state.Kind == kind {
			return state
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, last state %+v", kind, controller.State())
	return player.State{}
}

func TestPlayPauseResumeStopLifecycle(t *testing.T) {
	dir, voice := writeAudioFile(t, "hello.mp3")
	transport := newFakeTransport(2000)
	controller := newController(t, transport, dir)

	if err := controller.Play(voice); err != nil {
		t.Fatalf("play: %v", err)
	}
	playing := waitState(t, controller, player.StatePlaying)
	if playing.Voice == nil || playing.Voice.ID != "v1" {
		t.Fatalf("expected bound voice, got %+v", playing)
	}
	if playing.DurationMs != 2000 || !playing.ShortAudio {
		t.Fatalf("expected short 2000ms clip, got %+v", playing)
	}

	if err := controller.Apply(player.Pause()); err != nil {
		t.Fatalf("pause: %v", err)
	}
	paused := waitState(t, controller, player.StatePaused)
	if paused.Voice == nil || paused.Voice.ID != "v1" || paused.DurationMs != 2000 {
		t.Fatalf("paused state lost voice or duration: %+v", paused)
	}

	if err := controller.Apply(player.Resume()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	waitState(t, controller, player.StatePlaying)

	if err := controller.Apply(player.Stop()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	idle := waitState(t, controller, player.StateIdle)
	if idle.Voice != nil {
		t.Fatalf("stop must clear the bound voice, got %+v", idle)
	}
}

func TestPlayMissingFileLeavesTransportUntouched(t *testing.T) {
	dir := t.TempDir()
	transport := newFakeTransport(2000)
	controller := newController(t, transport, dir)

	missing := &voicepack.Voice{ID: "ghost", Text: "Boo", AudioFile: "missing.mp3", SectionID: "s1"}
	if err := controller.Play(missing); err != nil {
		t.Fatalf("play: %v", err)
	}
	errState := waitState(t, controller, player.StateError)
	if errState.Message != player.MsgAudioNotFound {
		t.Fatalf("unexpected error message %q", errState.Message)
	}
	if errState.Voice != nil {
		t.Fatalf("missing-file error must not bind the voice, got %+v", errState)
	}
	if transport.loadCount() != 0 {
		t.Fatal("transport must not be touched for a missing file")
	}
}

func TestShortAudioBoundary(t *testing.T) {
	tests := []struct {
		name       string
		durationMs int64
		wantShort  bool
	}{
		{name: "below threshold", durationMs: 2000, wantShort: true},
		{name: "exactly threshold", durationMs: 10000, wantShort: true},
		{name: "just above threshold", durationMs: 10001, wantShort: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir, voice := writeAudioFile(t, "clip.mp3")
			transport := newFakeTransport(tc.durationMs)
			controller := newController(t, transport, dir)

			if err := controller.Play(voice); err != nil {
				t.Fatalf("play: %v", err)
			}
			playing := waitState(t, controller, player.StatePlaying)
			if playing.ShortAudio != tc.wantShort {
				t.Fatalf("duration %d: expected short=%v, got %+v", tc.durationMs, tc.wantShort, playing)
			}
		})
	}
}

func TestNaturalEndReturnsIdle(t *testing.T) {
	dir, voice := writeAudioFile(t, "clip.mp3")
	transport := newFakeTransport(2000)
	controller := newController(t, transport, dir)

	if err := controller.Play(voice); err != nil {
		t.Fatalf("play: %v", err)
	}
	waitState(t, controller, player.StatePlaying)

	transport.emit(player.TransportEvent{Kind: player.TransportEnded})
	idle := waitState(t, controller, player.StateIdle)
	if idle.Voice != nil {
		t.Fatalf("natural end must clear the bound voice, got %+v", idle)
	}
}

func TestBufferingMovesToLoading(t *testing.T) {
	dir, voice := writeAudioFile(t, "clip.mp3")
	transport := newFakeTransport(2000)
	controller := newController(t, transport, dir)

	if err := controller.Play(voice); err != nil {
		t.Fatalf("play: %v", err)
	}
	waitState(t, controller, player.StatePlaying)

	transport.emit(player.TransportEvent{Kind: player.TransportBuffering})
	loading := waitState(t, controller, player.StateLoading)
	if loading.Voice == nil || loading.Voice.ID != "v1" {
		t.Fatalf("buffering must keep the bound voice, got %+v", loading)
	}
}

func TestLoadFailureCollapsesToError(t *testing.T) {
	dir, voice := writeAudioFile(t, "clip.mp3")
	transport := newFakeTransport(2000)
	transport.loadErr = errors.New("codec unavailable")
	controller := newController(t, transport, dir)

	if err := controller.Play(voice); err != nil {
		t.Fatalf("play: %v", err)
	}
	errState := waitState(t, controller, player.StateError)
	if errState.Message != "codec unavailable" {
		t.Fatalf("unexpected error message %q", errState.Message)
	}
}

func TestTransportFaultCollapsesToError(t *testing.T) {
	dir, voice := writeAudioFile(t, "clip.mp3")
	transport := newFakeTransport(2000)
	controller := newController(t, transport, dir)

	if err := controller.Play(voice); err != nil {
		t.Fatalf("play: %v", err)
	}
	waitState(t, controller, player.StatePlaying)

	transport.emit(player.TransportEvent{Kind: player.TransportFaulted, Err: errors.New("decoder crashed")})
	errState := waitState(t, controller, player.StateError)
	if errState.Message != "decoder crashed" {
		t.Fatalf("unexpected error message %q", errState.Message)
	}
}

func TestSecondPlaySupersedesFirst(t *testing.T) {
	dir, first := writeAudioFile(t, "first.mp3")
	if err := os.WriteFile(filepath.Join(dir, "second.mp3"), []byte("audio-bytes"), 0o644); err != nil {
		t.Fatalf("write second clip: %v", err)
	}
	second := &voicepack.Voice{ID: "v2", Text: "Again", AudioFile: "second.mp3", SectionID: "s1"}

	transport := newFakeTransport(2000)
	controller := newController(t, transport, dir)

	if err := controller.Play(first); err != nil {
		t.Fatalf("first play: %v", err)
	}
	waitState(t, controller, player.StatePlaying)

	if err := controller.Play(second); err != nil {
		t.Fatalf("second play: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		state := controller.State()
		if state.Kind == player.StatePlaying && state.Voice != nil && state.Voice.ID == "v2" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("second play never took over, state %+v", state)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if transport.loadCount() != 2 {
		t.Fatalf("expected both clips loaded, got %d", transport.loadCount())
	}
}

func TestSeekForwardsToTransport(t *testing.T) {
	dir, voice := writeAudioFile(t, "clip.mp3")
	transport := newFakeTransport(20000)
	controller := newController(t, transport, dir)

	if err := controller.Play(voice); err != nil {
		t.Fatalf("play: %v", err)
	}
	waitState(t, controller, player.StatePlaying)

	if err := controller.Apply(player.SeekTo(1500)); err != nil {
		t.Fatalf("seek: %v", err)
	}

	transport.mu.Lock()
	seeks := append([]int64(nil), transport.seeks...)
	transport.mu.Unlock()
	if len(seeks) != 1 || seeks[0] != 1500 {
		t.Fatalf("expected seek forwarded, got %v", seeks)
	}
}

func TestPauseIgnoredWhenNotPlaying(t *testing.T) {
	dir, _ := writeAudioFile(t, "clip.mp3")
	transport := newFakeTransport(2000)
	controller := newController(t, transport, dir)

	if err := controller.Apply(player.Pause()); err != nil {
		t.Fatalf("pause while idle: %v", err)
	}
	if got := controller.State(); got.Kind != player.StateIdle {
		t.Fatalf("pause while idle must not change state, got %+v", got)
	}
	if transport.pauseCount() != 0 {
		t.Fatal("pause while idle must not touch the transport")
	}
}

func TestApplyAfterClose(t *testing.T) {
	dir, _ := writeAudioFile(t, "clip.mp3")
	transport := newFakeTransport(2000)
	controller := player.NewController(transport, func(relative string) string {
		return filepath.Join(dir, relative)
	}, logging.NewNop())

	if err := controller.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := controller.Apply(player.Stop()); !errors.Is(err, player.ErrControllerClosed) {
		t.Fatalf("expected ErrControllerClosed, got %v", err)
	}
	if !transport.isClosed() {
		t.Fatal("close must close the transport")
	}
}
