package testsupport

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"voicebox/internal/config"
	"voicebox/internal/state"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.PacksDir = filepath.Join(base, "packs")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Paths.Socket = filepath.Join(base, "voiceboxd.sock")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithNtfyTopic sets the notification topic on the test config.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithKeepArchives leaves acquired archives in place after extraction.
func WithKeepArchives() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Import.KeepArchives = true
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default playback binaries are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffplay", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// MustOpenStore opens the state database for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *state.Store {
	t.Helper()

	store, err := state.Open(cfg)
	if err != nil {
		t.Fatalf("open state store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close state store: %v", err)
		}
	})
	return store
}

// SampleManifest is a small but complete pack manifest used across tests.
const SampleManifest = `{
  "title": "Greetings",
  "sections": [
    {"id": "daily", "name": "Daily", "icon": "sun"}
  ],
  "voices": [
    {"id": "hello", "text": "Hello there", "audioFile": "audio/hello.mp3", "sectionId": "daily"},
    {"id": "bye", "text": "Goodbye", "audioFile": "audio/bye.mp3", "sectionId": "daily"}
  ]
}`

// WriteVoicePackArchive creates a zip at path containing the given manifest at
// the archive root plus placeholder audio entries, and returns path.
func WriteVoicePackArchive(t testing.TB, path, manifest string, audioFiles ...string) string {
	t.Helper()

	entries := map[string]string{"index.json": manifest}
	for _, name := range audioFiles {
		entries[name] = "audio-bytes"
	}
	return WriteZip(t, path, entries)
}

// WriteZip creates a zip archive at path from a map of entry name to content.
func WriteZip(t testing.TB, path string, entries map[string]string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir archive parent: %v", err)
	}
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	// Fatalf unwinds past the explicit closes below; the deferred close keeps
	// the handle from leaking on those paths.
	defer out.Close()
	writer := zip.NewWriter(out)
	for name, content := range entries {
		entry, err := writer.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("finalize archive: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return path
}
