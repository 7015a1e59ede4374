package voicepack_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"voicebox/internal/voicepack"
)

const sampleManifest = `{
  "title": "Greetings Pack",
  "sections": [
    {"id": "s1", "name": "Greetings", "icon": "wave"},
    {"id": "s2", "name": "Farewells"}
  ],
  "voices": [
    {"id": "v1", "text": "Hello", "audioFile": "hello.mp3", "sectionId": "s1", "duration": 2000},
    {"id": "v2", "text": "Goodbye", "audioFile": "bye.mp3", "sectionId": "s2"}
  ]
}`

func TestParseManifest(t *testing.T) {
	pack, err := voicepack.ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	if pack.Title != "Greetings Pack" {
		t.Fatalf("unexpected title: %q", pack.Title)
	}
	if len(pack.Sections) != 2 || len(pack.Voices) != 2 {
		t.Fatalf("unexpected counts: %d sections, %d voices", len(pack.Sections), len(pack.Voices))
	}
	if pack.Voices[0].Duration != 2000 {
		t.Fatalf("unexpected duration: %d", pack.Voices[0].Duration)
	}
	if pack.Voices[1].Duration != 0 {
		t.Fatalf("expected zero default duration, got %d", pack.Voices[1].Duration)
	}
	if pack.Sections[1].Icon != "" {
		t.Fatalf("expected empty icon, got %q", pack.Sections[1].Icon)
	}
}

func TestParseManifestIgnoresUnknownFields(t *testing.T) {
	manifest := `{"title": "T", "sections": [], "voices": [], "futureField": {"nested": true}}`
	if _, err := voicepack.ParseManifest([]byte(manifest)); err != nil {
		t.Fatalf("unknown fields should be ignored: %v", err)
	}
}

func TestParseManifestRequiredFields(t *testing.T) {
	cases := []struct {
		name     string
		manifest string
	}{
		{"not json", `{`},
		{"missing title", `{"sections": [], "voices": []}`},
		{"section missing name", `{"title": "T", "sections": [{"id": "s1"}], "voices": []}`},
		{"voice missing audioFile", `{"title": "T", "sections": [], "voices": [{"id": "v1", "text": "Hi", "sectionId": "s1"}]}`},
		{"wrong shape", `{"title": "T", "sections": "nope", "voices": []}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := voicepack.ParseManifest([]byte(tc.manifest))
			if err == nil {
				t.Fatal("expected parse error")
			}
			if !errors.Is(err, voicepack.ErrParse) {
				t.Fatalf("expected ErrParse, got %v", err)
			}
		})
	}
}

func TestParseManifestRoundTrip(t *testing.T) {
	first, err := voicepack.ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	data, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	second, err := voicepack.ParseManifest(data)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("round trip mismatch:\nfirst:  %#v\nsecond: %#v", first, second)
	}
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	if pack := voicepack.LoadFromDirectory(dir); pack != nil {
		t.Fatalf("expected nil for missing manifest, got %#v", pack)
	}

	path := filepath.Join(dir, voicepack.ManifestName)
	if err := os.WriteFile(path, []byte(`not json`), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if pack := voicepack.LoadFromDirectory(dir); pack != nil {
		t.Fatalf("expected nil for malformed manifest, got %#v", pack)
	}

	if err := os.WriteFile(path, []byte(sampleManifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	pack := voicepack.LoadFromDirectory(dir)
	if pack == nil || pack.Title != "Greetings Pack" {
		t.Fatalf("unexpected pack: %#v", pack)
	}
}

func TestLookupHelpers(t *testing.T) {
	pack, err := voicepack.ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	if section := pack.SectionByID("s2"); section == nil || section.Name != "Farewells" {
		t.Fatalf("unexpected section: %#v", section)
	}
	if pack.SectionByID("missing") != nil {
		t.Fatal("expected nil for unknown section")
	}
	if voice := pack.VoiceByID("v1"); voice == nil || voice.Text != "Hello" {
		t.Fatalf("unexpected voice: %#v", voice)
	}
	voices := pack.VoicesBySection("s1")
	if len(voices) != 1 || voices[0].ID != "v1" {
		t.Fatalf("unexpected section voices: %#v", voices)
	}
}

func TestDanglingSectionRefs(t *testing.T) {
	manifest := `{
	  "title": "T",
	  "sections": [{"id": "s1", "name": "One"}],
	  "voices": [
	    {"id": "v1", "text": "a", "audioFile": "a.mp3", "sectionId": "s1"},
	    {"id": "v2", "text": "b", "audioFile": "b.mp3", "sectionId": "ghost"}
	  ]
	}`
	pack, err := voicepack.ParseManifest([]byte(manifest))
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	dangling := pack.DanglingSectionRefs()
	if len(dangling) != 1 || dangling[0] != "v2" {
		t.Fatalf("unexpected dangling refs: %#v", dangling)
	}
}
