package ipc

import "voicebox/internal/api"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse reports combined daemon status information.
type StatusResponse struct {
	Status api.DaemonStatus `json:"status"`
}

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges the shutdown request.
type ShutdownResponse struct {
	Stopping bool `json:"stopping"`
}

// ImportRequest starts an import from a URL or a local file path.
type ImportRequest struct {
	URL      string `json:"url,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

// ImportResponse carries the history id of the started import.
type ImportResponse struct {
	ImportID int64 `json:"import_id"`
}

// ImportWaitRequest blocks until an import reaches a terminal status.
type ImportWaitRequest struct {
	ImportID      int64 `json:"import_id"`
	TimeoutMillis int   `json:"timeout_millis,omitempty"`
}

// ImportWaitResponse carries the terminal import record.
type ImportWaitResponse struct {
	Record api.ImportRecord `json:"record"`
}

// CurrentPackRequest fetches the active voice pack.
type CurrentPackRequest struct{}

// CurrentPackResponse carries the active voice pack, nil before any load.
type CurrentPackResponse struct {
	Pack *api.Pack `json:"pack"`
}

// PlayerStateRequest fetches the playback state.
type PlayerStateRequest struct{}

// PlayerStateResponse carries the playback state.
type PlayerStateResponse struct {
	State api.PlayerState `json:"state"`
}

// PlayerActionRequest applies a playback action.
type PlayerActionRequest struct {
	Action     string `json:"action"`
	VoiceID    string `json:"voice_id,omitempty"`
	PositionMs int64  `json:"position_ms,omitempty"`
}

// PlayerActionResponse carries the state observed after the action.
type PlayerActionResponse struct {
	State api.PlayerState `json:"state"`
}

// HistoryRequest lists import attempts filtered by optional statuses.
type HistoryRequest struct {
	Statuses []string `json:"statuses,omitempty"`
}

// HistoryResponse contains import history records, newest first.
type HistoryResponse struct {
	Imports []api.ImportRecord `json:"imports"`
}

// ClearHistoryRequest removes finished import records.
type ClearHistoryRequest struct{}

// ClearHistoryResponse reports the number of removed records.
type ClearHistoryResponse struct {
	Removed int64 `json:"removed"`
}

// DatabaseHealthRequest fetches state database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports state database health information.
type DatabaseHealthResponse struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	TableExists      bool   `json:"table_exists"`
	IntegrityCheck   bool   `json:"integrity_check"`
	TotalImports     int    `json:"total_imports"`
	Error            string `json:"error"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
