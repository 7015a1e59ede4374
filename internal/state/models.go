package state

import (
	"strings"
	"time"
)

// Status represents the lifecycle of an import attempt.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// SourceType distinguishes how an archive was acquired.
type SourceType string

const (
	SourceURL  SourceType = "url"
	SourceFile SourceType = "file"
)

var allStatuses = []Status{StatusRunning, StatusSucceeded, StatusFailed}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// ImportRecord is one import attempt persisted in SQLite.
type ImportRecord struct {
	ID           int64
	Source       string
	SourceType   SourceType
	Status       Status
	PackTitle    string
	Location     string
	ErrorMessage string
	CreatedAt    time.Time
	FinishedAt   *time.Time
}

// Succeeded reports whether the attempt committed a pack.
func (r ImportRecord) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// HealthSummary aggregates import history counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Running   int
	Succeeded int
	Failed    int
}

// DatabaseHealth captures diagnostic information about the state database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalImports     int
	Error            string
}
