// Package api defines the wire types shared by the daemon's HTTP surface and
// the IPC layer, plus converters from internal domain types.
package api
