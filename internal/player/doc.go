// Package player drives exactly one underlying media transport and exposes a
// coherent playback state machine over idle, loading, playing, paused, and
// error. All state mutation happens on a single controller goroutine;
// observers subscribe to a watched state cell.
package player
