// Package ipc exposes daemon control via JSON-RPC over a Unix domain socket.
//
// The CLI is the primary client: it starts imports, drives playback, and
// inspects status and history without touching the HTTP surface.
package ipc
