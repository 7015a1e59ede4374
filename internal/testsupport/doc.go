// Package testsupport provides helpers shared across package tests: temp-dir
// backed configurations, state database setup, and voice-pack archive
// builders.
package testsupport
