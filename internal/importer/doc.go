// Package importer sequences voice-pack imports: acquire an archive, extract
// it into a fresh staging directory, parse the manifest, and commit the pack
// to the catalog and durable state. Each attempt is observable as an ordered
// event stream ending in Success or Error.
package importer
