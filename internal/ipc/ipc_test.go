package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voicebox/internal/archive"
	"voicebox/internal/catalog"
	"voicebox/internal/config"
	"voicebox/internal/daemon"
	"voicebox/internal/importer"
	"voicebox/internal/ipc"
	"voicebox/internal/logging"
	"voicebox/internal/notifications"
	"voicebox/internal/player"
	"voicebox/internal/state"
	"voicebox/internal/testsupport"
)

type stubTransport struct {
	events chan player.TransportEvent
}

func newStubTransport() *stubTransport {
	return &stubTransport{events: make(chan player.TransportEvent, 16)}
}

func (s *stubTransport) Load(_ context.Context, _ string) error {
	s.events <- player.TransportEvent{Kind: player.TransportReady, DurationMs: 2000}
	return nil
}

func (s *stubTransport) Pause() error { return nil }

func (s *stubTransport) Resume() error {
	s.events <- player.TransportEvent{Kind: player.TransportReady, DurationMs: 2000}
	return nil
}

func (s *stubTransport) Stop() error        { return nil }
func (s *stubTransport) SeekTo(int64) error { return nil }
func (s *stubTransport) PositionMs() int64  { return 0 }
func (s *stubTransport) Events() <-chan player.TransportEvent {
	return s.events
}
func (s *stubTransport) Close() error { return nil }

type harness struct {
	cfg    *config.Config
	daemon *daemon.Daemon
	client *ipc.Client
}

func startDaemonWithIPC(t *testing.T) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	cat := catalog.New(logger)
	archiveStore := archive.NewStore(cfg.Paths.PacksDir, 30*time.Second, 16, logger)
	notifier := notifications.NewService(cfg)
	orchestrator := importer.New(archiveStore, cat, store, notifier, cfg.Import.KeepArchives, logger)
	controller := player.NewController(newStubTransport(), cat.AudioPath, logger)
	t.Cleanup(func() {
		if err := controller.Close(); err != nil {
			t.Errorf("close controller: %v", err)
		}
	})

	d, err := daemon.New(cfg, store, cat, archiveStore, orchestrator, controller, notifier, logger)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(d.Stop)

	server, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		t.Fatalf("new ipc server: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("dial ipc: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return &harness{cfg: cfg, daemon: d, client: client}
}

func TestStatusOverSocket(t *testing.T) {
	h := startDaemonWithIPC(t)

	resp, err := h.client.Status()
	if err != nil {
		t.Fatalf("status call: %v", err)
	}
	if !resp.Status.Running {
		t.Fatal("expected running daemon")
	}
	if resp.Status.PackTitle != "default" {
		t.Fatalf("expected built-in pack on a fresh start, got %q", resp.Status.PackTitle)
	}
	if resp.Status.Player.State != string(player.StateIdle) {
		t.Fatalf("expected idle player, got %+v", resp.Status.Player)
	}
}

func TestImportAndWaitOverSocket(t *testing.T) {
	h := startDaemonWithIPC(t)
	src := testsupport.WriteVoicePackArchive(
		t,
		filepath.Join(t.TempDir(), "pack.zip"),
		testsupport.SampleManifest,
		"audio/hello.mp3",
		"audio/bye.mp3",
	)

	started, err := h.client.Import(ipc.ImportRequest{FilePath: src})
	if err != nil {
		t.Fatalf("import call: %v", err)
	}
	if started.ImportID == 0 {
		t.Fatal("expected import id")
	}

	waited, err := h.client.ImportWait(ipc.ImportWaitRequest{
		ImportID:      started.ImportID,
		TimeoutMillis: 10_000,
	})
	if err != nil {
		t.Fatalf("import wait call: %v", err)
	}
	if waited.Record.Status != string(state.StatusSucceeded) {
		t.Fatalf("expected succeeded import, got %+v", waited.Record)
	}
	if waited.Record.PackTitle != "Greetings" {
		t.Fatalf("unexpected pack title %q", waited.Record.PackTitle)
	}

	pack, err := h.client.CurrentPack()
	if err != nil {
		t.Fatalf("current pack call: %v", err)
	}
	if pack.Pack == nil || pack.Pack.Title != "Greetings" || len(pack.Pack.Voices) != 2 {
		t.Fatalf("unexpected pack %+v", pack.Pack)
	}
}

func TestImportRejectsEmptySource(t *testing.T) {
	h := startDaemonWithIPC(t)

	if _, err := h.client.Import(ipc.ImportRequest{}); err == nil {
		t.Fatal("expected empty import request to be rejected")
	}
}

func TestPlayerActionOverSocket(t *testing.T) {
	h := startDaemonWithIPC(t)
	src := testsupport.WriteVoicePackArchive(
		t,
		filepath.Join(t.TempDir(), "pack.zip"),
		testsupport.SampleManifest,
		"audio/hello.mp3",
		"audio/bye.mp3",
	)
	started, err := h.client.Import(ipc.ImportRequest{FilePath: src})
	if err != nil {
		t.Fatalf("import call: %v", err)
	}
	if _, err := h.client.ImportWait(ipc.ImportWaitRequest{ImportID: started.ImportID, TimeoutMillis: 10_000}); err != nil {
		t.Fatalf("import wait call: %v", err)
	}

	if _, err := h.client.PlayerAction(ipc.PlayerActionRequest{Action: "play", VoiceID: "hello"}); err != nil {
		t.Fatalf("play call: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		current, err := h.client.PlayerState()
		if err != nil {
			t.Fatalf("player state call: %v", err)
		}
		if current.State.State == string(player.StatePlaying) {
			if current.State.VoiceID != "hello" || !current.State.ShortAudio {
				t.Fatalf("unexpected playing state %+v", current.State)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("player never reached playing, last %+v", current.State)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if _, err := h.client.PlayerAction(ipc.PlayerActionRequest{Action: "play", VoiceID: "missing"}); err == nil {
		t.Fatal("expected unknown voice to be rejected")
	}
	if _, err := h.client.PlayerAction(ipc.PlayerActionRequest{Action: "rewind"}); err == nil {
		t.Fatal("expected unknown action to be rejected")
	}
}

func TestHistoryAndClearOverSocket(t *testing.T) {
	h := startDaemonWithIPC(t)
	src := testsupport.WriteVoicePackArchive(
		t,
		filepath.Join(t.TempDir(), "pack.zip"),
		testsupport.SampleManifest,
		"audio/hello.mp3",
	)
	started, err := h.client.Import(ipc.ImportRequest{FilePath: src})
	if err != nil {
		t.Fatalf("import call: %v", err)
	}
	if _, err := h.client.ImportWait(ipc.ImportWaitRequest{ImportID: started.ImportID, TimeoutMillis: 10_000}); err != nil {
		t.Fatalf("import wait call: %v", err)
	}

	history, err := h.client.History([]string{"succeeded"})
	if err != nil {
		t.Fatalf("history call: %v", err)
	}
	if len(history.Imports) != 1 {
		t.Fatalf("expected one succeeded import, got %+v", history.Imports)
	}
	if !strings.HasSuffix(history.Imports[0].Source, "pack.zip") {
		t.Fatalf("unexpected source %q", history.Imports[0].Source)
	}

	cleared, err := h.client.ClearHistory()
	if err != nil {
		t.Fatalf("clear history call: %v", err)
	}
	if cleared.Removed != 1 {
		t.Fatalf("expected one removed record, got %d", cleared.Removed)
	}

	history, err = h.client.History(nil)
	if err != nil {
		t.Fatalf("history call after clear: %v", err)
	}
	if len(history.Imports) != 0 {
		t.Fatalf("expected empty history, got %+v", history.Imports)
	}
}

func TestDatabaseHealthOverSocket(t *testing.T) {
	h := startDaemonWithIPC(t)

	health, err := h.client.DatabaseHealth()
	if err != nil {
		t.Fatalf("database health call: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists {
		t.Fatalf("unexpected health %+v", health)
	}
	if !health.IntegrityCheck {
		t.Fatalf("integrity check failed: %+v", health)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	h := startDaemonWithIPC(t)

	resp, err := h.client.TestNotification()
	if err != nil {
		t.Fatalf("test notification call: %v", err)
	}
	if resp.Sent {
		t.Fatal("expected notification to be skipped without a topic")
	}
	if resp.Message != "ntfy topic not configured" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestShutdownOverSocket(t *testing.T) {
	h := startDaemonWithIPC(t)

	resp, err := h.client.Shutdown()
	if err != nil {
		t.Fatalf("shutdown call: %v", err)
	}
	if !resp.Stopping {
		t.Fatal("expected stopping acknowledgement")
	}

	select {
	case <-h.daemon.ShutdownRequested():
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown request never signaled")
	}
}
