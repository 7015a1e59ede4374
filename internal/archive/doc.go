// Package archive acquires voice-pack archives from local files or network
// URLs and extracts them into the content root, validating that a manifest is
// present.
package archive
