// Package state holds the build state shown on the dev dashboard.
//
// A BuildState tracks one ArtifactRecord per artifact kind, the last build
// error and the server URL. Records are replaced whole when an artifact
// changes; the compressed size is the only field written after a record
// becomes visible. Renderers read a Snapshot so they never observe a
// half-written record.
package state
