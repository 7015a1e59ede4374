package api

import (
	"time"

	"voicebox/internal/importer"
	"voicebox/internal/player"
	"voicebox/internal/state"
	"voicebox/internal/voicepack"
)

// Section is the wire representation of a pack section.
type Section struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// Voice is the wire representation of a pack voice.
type Voice struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	AudioFile  string `json:"audio_file"`
	SectionID  string `json:"section_id"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// Pack is the wire representation of a voice pack.
type Pack struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
	Voices   []Voice   `json:"voices"`
}

// FromVoicePack converts a catalog pack into its wire shape.
func FromVoicePack(pack *voicepack.VoicePack) *Pack {
	if pack == nil {
		return nil
	}
	out := &Pack{
		Title:    pack.Title,
		Sections: make([]Section, 0, len(pack.Sections)),
		Voices:   make([]Voice, 0, len(pack.Voices)),
	}
	for _, section := range pack.Sections {
		out.Sections = append(out.Sections, Section{ID: section.ID, Name: section.Name, Icon: section.Icon})
	}
	for _, voice := range pack.Voices {
		out.Voices = append(out.Voices, Voice{
			ID:         voice.ID,
			Text:       voice.Text,
			AudioFile:  voice.AudioFile,
			SectionID:  voice.SectionID,
			DurationMs: voice.Duration,
		})
	}
	return out
}

// PlayerState is the wire representation of the playback state machine value.
type PlayerState struct {
	State      string `json:"state"`
	VoiceID    string `json:"voice_id,omitempty"`
	VoiceText  string `json:"voice_text,omitempty"`
	PositionMs int64  `json:"position_ms,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	ShortAudio bool   `json:"short_audio,omitempty"`
	Message    string `json:"message,omitempty"`
}

// FromPlayerState converts a controller state into its wire shape.
func FromPlayerState(s player.State) PlayerState {
	out := PlayerState{
		State:      string(s.Kind),
		PositionMs: s.PositionMs,
		DurationMs: s.DurationMs,
		ShortAudio: s.ShortAudio,
		Message:    s.Message,
	}
	if s.Voice != nil {
		out.VoiceID = s.Voice.ID
		out.VoiceText = s.Voice.Text
	}
	return out
}

// ImportRecord is the wire representation of one import history row.
type ImportRecord struct {
	ID           int64      `json:"id"`
	Source       string     `json:"source"`
	SourceType   string     `json:"source_type"`
	Status       string     `json:"status"`
	PackTitle    string     `json:"pack_title,omitempty"`
	Location     string     `json:"location,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// FromImportRecord converts a state record into its wire shape.
func FromImportRecord(record *state.ImportRecord) *ImportRecord {
	if record == nil {
		return nil
	}
	return &ImportRecord{
		ID:           record.ID,
		Source:       record.Source,
		SourceType:   string(record.SourceType),
		Status:       string(record.Status),
		PackTitle:    record.PackTitle,
		Location:     record.Location,
		ErrorMessage: record.ErrorMessage,
		CreatedAt:    record.CreatedAt,
		FinishedAt:   record.FinishedAt,
	}
}

// ImportEvent is the wire representation of one import pipeline event.
type ImportEvent struct {
	ImportID int64  `json:"import_id,omitempty"`
	Kind     string `json:"kind"`
	Percent  int    `json:"percent,omitempty"`
	Message  string `json:"message,omitempty"`
	Title    string `json:"title,omitempty"`
}

// FromImportEvent converts an orchestrator event into its wire shape.
func FromImportEvent(event importer.Event) ImportEvent {
	out := ImportEvent{
		ImportID: event.ImportID,
		Kind:     string(event.Kind),
		Percent:  event.Percent,
		Message:  event.Message,
	}
	if event.Pack != nil {
		out.Title = event.Pack.Title
	}
	return out
}

// Event is one frame on the daemon's event stream. Exactly one of Player and
// Import is set, per Type.
type Event struct {
	Type   string       `json:"type"`
	Player *PlayerState `json:"player,omitempty"`
	Import *ImportEvent `json:"import,omitempty"`
}

// Event stream frame types.
const (
	EventTypePlayer = "player"
	EventTypeImport = "import"
)

// DaemonStatus summarizes the running daemon for status surfaces.
type DaemonStatus struct {
	Running      bool        `json:"running"`
	PID          int         `json:"pid"`
	PackTitle    string      `json:"pack_title"`
	VoiceCount   int         `json:"voice_count"`
	ImportBusy   bool        `json:"import_busy"`
	Player       PlayerState `json:"player"`
	StateDBPath  string      `json:"state_db_path"`
	LockFilePath string      `json:"lock_file_path"`
}

// ImportRequest asks the daemon to import a pack from a URL or local file.
type ImportRequest struct {
	URL      string `json:"url,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

// ImportAccepted acknowledges a started import.
type ImportAccepted struct {
	ImportID int64 `json:"import_id"`
}

// PlayerActionRequest applies a playback action.
type PlayerActionRequest struct {
	Action     string `json:"action"`
	VoiceID    string `json:"voice_id,omitempty"`
	PositionMs int64  `json:"position_ms,omitempty"`
}

// HistoryResponse lists import history records.
type HistoryResponse struct {
	Imports []ImportRecord `json:"imports"`
}
