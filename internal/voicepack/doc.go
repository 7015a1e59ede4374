// Package voicepack defines the voice-pack domain model and the index.json
// manifest parser.
package voicepack
