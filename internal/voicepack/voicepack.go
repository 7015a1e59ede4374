package voicepack

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ManifestName is the manifest file expected at the root of every pack.
const ManifestName = "index.json"

// ErrParse marks manifest deserialization and shape failures.
var ErrParse = errors.New("manifest parse error")

// VoicePack is one imported bundle of clips. Packs are immutable once parsed;
// replacing the current pack swaps the whole value.
type VoicePack struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
	Voices   []Voice   `json:"voices"`
}

// Section is a purely descriptive grouping of voices.
type Section struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// Voice is a single playable clip. AudioFile is a path relative to the pack
// directory. Duration is in milliseconds and defaults to zero when the
// manifest omits it; the live player-measured duration is authoritative.
type Voice struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	AudioFile string `json:"audioFile"`
	SectionID string `json:"sectionId"`
	Duration  int64  `json:"duration,omitempty"`
}

// ParseManifest deserializes manifest JSON into a VoicePack. Required fields
// must be present and non-empty; unknown fields are ignored for forward
// compatibility. All failures wrap ErrParse.
func ParseManifest(data []byte) (*VoicePack, error) {
	var pack VoicePack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if pack.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrParse)
	}
	for i, section := range pack.Sections {
		if section.ID == "" || section.Name == "" {
			return nil, fmt.Errorf("%w: sections[%d] requires id and name", ErrParse, i)
		}
	}
	for i, voice := range pack.Voices {
		if voice.ID == "" || voice.Text == "" || voice.AudioFile == "" || voice.SectionID == "" {
			return nil, fmt.Errorf("%w: voices[%d] requires id, text, audioFile, and sectionId", ErrParse, i)
		}
	}
	return &pack, nil
}

// LoadFromDirectory reads and parses index.json from dir. A missing or
// unparseable manifest yields nil rather than an error; callers decide how to
// surface that.
func LoadFromDirectory(dir string) *VoicePack {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil
	}
	pack, err := ParseManifest(data)
	if err != nil {
		return nil
	}
	return pack
}

// SectionByID returns the section with the given id, or nil.
func (p *VoicePack) SectionByID(id string) *Section {
	for i := range p.Sections {
		if p.Sections[i].ID == id {
			return &p.Sections[i]
		}
	}
	return nil
}

// VoiceByID returns the voice with the given id, or nil.
func (p *VoicePack) VoiceByID(id string) *Voice {
	for i := range p.Voices {
		if p.Voices[i].ID == id {
			return &p.Voices[i]
		}
	}
	return nil
}

// VoicesBySection returns the voices referencing the given section id, in
// manifest order.
func (p *VoicePack) VoicesBySection(sectionID string) []Voice {
	var voices []Voice
	for _, voice := range p.Voices {
		if voice.SectionID == sectionID {
			voices = append(voices, voice)
		}
	}
	return voices
}

// DanglingSectionRefs lists voice ids whose sectionId references no section in
// the pack. The reference invariant is reported, never enforced: packs with
// dangling refs still import and play.
func (p *VoicePack) DanglingSectionRefs() []string {
	known := make(map[string]struct{}, len(p.Sections))
	for _, section := range p.Sections {
		known[section.ID] = struct{}{}
	}
	var dangling []string
	for _, voice := range p.Voices {
		if _, ok := known[voice.SectionID]; !ok {
			dangling = append(dangling, voice.ID)
		}
	}
	return dangling
}
