// Package state persists voicebox state in SQLite: the location of the
// currently active extracted pack and the history of import attempts.
package state
