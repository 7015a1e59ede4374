// Package daemon wires the voicebox services together: it owns the state
// store, catalog, import orchestrator, and playback controller, enforces
// single-instance execution with a lock file, and exposes the HTTP API and
// event stream.
package daemon
