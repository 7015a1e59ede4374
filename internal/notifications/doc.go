// Package notifications delivers import and error events via pluggable
// notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Import and playback code depend only on the Service interface.
package notifications
