package importer_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voicebox/internal/archive"
	"voicebox/internal/catalog"
	"voicebox/internal/config"
	"voicebox/internal/importer"
	"voicebox/internal/logging"
	"voicebox/internal/notifications"
	"voicebox/internal/state"
	"voicebox/internal/testsupport"
)

type fixture struct {
	cfg          *config.Config
	store        *state.Store
	catalog      *catalog.Catalog
	orchestrator *importer.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	cat := catalog.New(logger)
	archiveStore := archive.NewStore(cfg.Paths.PacksDir, 30*time.Second, 16, logger)
	orchestrator := importer.New(archiveStore, cat, store, notifications.NewService(cfg), cfg.Import.KeepArchives, logger)
	return &fixture{cfg: cfg, store: store, catalog: cat, orchestrator: orchestrator}
}

func drain(t *testing.T, events <-chan importer.Event) []importer.Event {
	t.Helper()

	var collected []importer.Event
	deadline := time.After(10 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return collected
			}
			collected = append(collected, event)
		case <-deadline:
			t.Fatalf("timed out draining events, got %+v", collected)
		}
	}
}

func packArchiveBytes(t *testing.T) []byte {
	t.Helper()

	path := testsupport.WriteVoicePackArchive(
		t,
		filepath.Join(t.TempDir(), "pack.zip"),
		testsupport.SampleManifest,
		"audio/hello.mp3",
		"audio/bye.mp3",
	)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	return data
}

func TestImportFromURLSucceeds(t *testing.T) {
	fx := newFixture(t)
	payload := packArchiveBytes(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	events, err := fx.orchestrator.Import(context.Background(), importer.Source{URL: server.URL})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	collected := drain(t, events)

	if collected[0].Kind != importer.EventLoading {
		t.Fatalf("expected Loading first, got %s", collected[0].Kind)
	}
	last := collected[len(collected)-1]
	if last.Kind != importer.EventSuccess {
		t.Fatalf("expected Success terminal, got %+v", last)
	}
	if last.Pack == nil || last.Pack.Title != "Greetings" {
		t.Fatalf("unexpected committed pack: %+v", last.Pack)
	}

	sawProgress := false
	for _, event := range collected {
		if event.Kind == importer.EventProgress {
			sawProgress = true
		}
		if event.Terminal() && event != last {
			t.Fatalf("terminal event before end of stream: %+v", event)
		}
	}
	if !sawProgress {
		t.Fatal("expected progress events for a network import")
	}

	current := fx.catalog.Current()
	if current == nil || current.Title != "Greetings" {
		t.Fatalf("expected catalog committed, got %+v", current)
	}

	location, err := fx.store.CurrentPackPath(context.Background())
	if err != nil {
		t.Fatalf("current pack path: %v", err)
	}
	if location == "" || !strings.HasPrefix(location, filepath.Join(fx.cfg.Paths.PacksDir, "packs")) {
		t.Fatalf("unexpected persisted location %q", location)
	}

	// Voices must be playable from the extracted directory.
	audio := fx.catalog.AudioPath("audio/hello.mp3")
	if _, err := os.Stat(audio); err != nil {
		t.Fatalf("expected extracted audio at %q: %v", audio, err)
	}

	records, err := fx.store.List(context.Background())
	if err != nil {
		t.Fatalf("list imports: %v", err)
	}
	if len(records) != 1 || records[0].Status != state.StatusSucceeded {
		t.Fatalf("expected one succeeded history row, got %+v", records)
	}
}

func TestImportFromFileEmitsNoProgress(t *testing.T) {
	fx := newFixture(t)
	src := testsupport.WriteVoicePackArchive(
		t,
		filepath.Join(t.TempDir(), "pack.zip"),
		testsupport.SampleManifest,
		"audio/hello.mp3",
	)

	events, err := fx.orchestrator.Import(context.Background(), importer.Source{FilePath: src})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	collected := drain(t, events)

	for _, event := range collected {
		if event.Kind == importer.EventProgress {
			t.Fatalf("local import should emit no progress events, got %+v", collected)
		}
	}
	if collected[len(collected)-1].Kind != importer.EventSuccess {
		t.Fatalf("expected Success terminal, got %+v", collected)
	}
}

func TestImportInvalidArchiveEmitsError(t *testing.T) {
	fx := newFixture(t)
	src := filepath.Join(t.TempDir(), "broken.zip")
	if err := os.WriteFile(src, []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("write broken archive: %v", err)
	}

	events, err := fx.orchestrator.Import(context.Background(), importer.Source{FilePath: src})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	collected := drain(t, events)

	last := collected[len(collected)-1]
	if last.Kind != importer.EventError || last.Message != importer.MsgInvalidArchive {
		t.Fatalf("expected invalid-archive error, got %+v", last)
	}
	if fx.catalog.Current() != nil {
		t.Fatal("failed import must not commit a pack")
	}

	records, err := fx.store.List(context.Background())
	if err != nil {
		t.Fatalf("list imports: %v", err)
	}
	if len(records) != 1 || records[0].Status != state.StatusFailed {
		t.Fatalf("expected one failed history row, got %+v", records)
	}
	if records[0].ErrorMessage != importer.MsgInvalidArchive {
		t.Fatalf("unexpected recorded message %q", records[0].ErrorMessage)
	}
}

func TestImportMissingManifestEmitsInvalidArchive(t *testing.T) {
	fx := newFixture(t)
	src := testsupport.WriteZip(t, filepath.Join(t.TempDir(), "pack.zip"), map[string]string{
		"audio/hello.mp3": "audio-bytes",
	})

	events, err := fx.orchestrator.Import(context.Background(), importer.Source{FilePath: src})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	collected := drain(t, events)

	last := collected[len(collected)-1]
	if last.Kind != importer.EventError || last.Message != importer.MsgInvalidArchive {
		t.Fatalf("expected invalid-archive error, got %+v", last)
	}
}

func TestImportUnparseableManifestEmitsLoadFailed(t *testing.T) {
	fx := newFixture(t)
	src := testsupport.WriteZip(t, filepath.Join(t.TempDir(), "pack.zip"), map[string]string{
		"index.json": "{ not json",
	})

	events, err := fx.orchestrator.Import(context.Background(), importer.Source{FilePath: src})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	collected := drain(t, events)

	last := collected[len(collected)-1]
	if last.Kind != importer.EventError || last.Message != importer.MsgLoadFailed {
		t.Fatalf("expected load-failed error, got %+v", last)
	}
	if fx.catalog.Current() != nil {
		t.Fatal("failed import must not commit a pack")
	}
}

func TestImportNetworkFailureEmitsError(t *testing.T) {
	fx := newFixture(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	events, err := fx.orchestrator.Import(context.Background(), importer.Source{URL: server.URL})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	collected := drain(t, events)

	last := collected[len(collected)-1]
	if last.Kind != importer.EventError {
		t.Fatalf("expected terminal error, got %+v", last)
	}
	// The transport failure keeps its own description rather than the generic
	// load-failed message reserved for unparseable packs.
	if !strings.Contains(last.Message, "network error") || !strings.Contains(last.Message, "410") {
		t.Fatalf("expected the network failure to surface, got %q", last.Message)
	}

	records, err := fx.store.List(context.Background())
	if err != nil {
		t.Fatalf("list imports: %v", err)
	}
	if len(records) != 1 || records[0].ErrorMessage != last.Message {
		t.Fatalf("expected the failure recorded verbatim, got %+v", records)
	}
}

func TestImportRejectsConcurrentAttempts(t *testing.T) {
	fx := newFixture(t)
	payload := packArchiveBytes(t)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write(payload)
	}))
	defer server.Close()
	defer close(release)

	events, err := fx.orchestrator.Import(context.Background(), importer.Source{URL: server.URL})
	if err != nil {
		t.Fatalf("first import: %v", err)
	}

	_, err = fx.orchestrator.Import(context.Background(), importer.Source{URL: server.URL})
	if !errors.Is(err, importer.ErrImportInFlight) {
		t.Fatalf("expected ErrImportInFlight, got %v", err)
	}

	release <- struct{}{}
	drain(t, events)

	// Once the stream closes the guard is released.
	deadline := time.After(5 * time.Second)
	for fx.orchestrator.Busy() {
		select {
		case <-deadline:
			t.Fatal("orchestrator still busy after terminal event")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestImportCancellationNeverCommits(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cancel()
		<-r.Context().Done()
	}))
	defer server.Close()

	events, err := fx.orchestrator.Import(ctx, importer.Source{URL: server.URL})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	collected := drain(t, events)

	last := collected[len(collected)-1]
	if last.Kind != importer.EventError {
		t.Fatalf("expected terminal error after cancellation, got %+v", last)
	}
	if fx.catalog.Current() != nil {
		t.Fatal("canceled import must not commit a pack")
	}
}

func TestImportValidatesSource(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.orchestrator.Import(context.Background(), importer.Source{}); err == nil {
		t.Fatal("expected error for empty source")
	}
	both := importer.Source{URL: "https://example.com/p.zip", FilePath: "/tmp/p.zip"}
	if _, err := fx.orchestrator.Import(context.Background(), both); err == nil {
		t.Fatal("expected error for ambiguous source")
	}
}

func TestImportRemovesArchiveAfterExtraction(t *testing.T) {
	fx := newFixture(t)
	src := testsupport.WriteVoicePackArchive(
		t,
		filepath.Join(t.TempDir(), "pack.zip"),
		testsupport.SampleManifest,
		"audio/hello.mp3",
	)

	events, err := fx.orchestrator.Import(context.Background(), importer.Source{FilePath: src})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	drain(t, events)

	entries, err := os.ReadDir(fx.cfg.Paths.PacksDir)
	if err != nil {
		t.Fatalf("read packs dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".zip") {
			t.Fatalf("expected acquired archive removed, found %s", entry.Name())
		}
	}
}

func TestRestoreCurrentPrefersPersistedPack(t *testing.T) {
	fx := newFixture(t)
	src := testsupport.WriteVoicePackArchive(
		t,
		filepath.Join(t.TempDir(), "pack.zip"),
		testsupport.SampleManifest,
		"audio/hello.mp3",
	)
	events, err := fx.orchestrator.Import(context.Background(), importer.Source{FilePath: src})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	drain(t, events)

	// Fresh catalog simulating a daemon restart over the same state store.
	logger := logging.NewNop()
	cat := catalog.New(logger)
	archiveStore := archive.NewStore(fx.cfg.Paths.PacksDir, 30*time.Second, 16, logger)
	restarted := importer.New(archiveStore, cat, fx.store, notifications.NewService(fx.cfg), false, logger)

	if err := restarted.RestoreCurrent(context.Background()); err != nil {
		t.Fatalf("restore current: %v", err)
	}
	current := cat.Current()
	if current == nil || current.Title != "Greetings" {
		t.Fatalf("expected persisted pack restored, got %+v", current)
	}
	audio := cat.AudioPath("audio/hello.mp3")
	if _, err := os.Stat(audio); err != nil {
		t.Fatalf("expected restored pack audio at %q: %v", audio, err)
	}
}

func TestRestoreCurrentFallsBackToBuiltIn(t *testing.T) {
	fx := newFixture(t)
	if err := fx.store.SetCurrentPackPath(context.Background(), filepath.Join(t.TempDir(), "gone")); err != nil {
		t.Fatalf("seed stale path: %v", err)
	}

	if err := fx.orchestrator.RestoreCurrent(context.Background()); err != nil {
		t.Fatalf("restore current: %v", err)
	}
	current := fx.catalog.Current()
	if current == nil || current.Title != "default" {
		t.Fatalf("expected built-in fallback, got %+v", current)
	}

	location, err := fx.store.CurrentPackPath(context.Background())
	if err != nil {
		t.Fatalf("current pack path: %v", err)
	}
	if location != "" {
		t.Fatalf("expected stale location cleared, got %q", location)
	}
}
