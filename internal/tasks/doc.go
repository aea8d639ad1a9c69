// Package tasks runs ingest jobs: pulling a remote track into the music directory
// in the background with real-time progress reporting.
//
// # Pipeline
//
// [IngestEngine.Submit] validates the URL, records a job and starts it on its own goroutine:
//
//  1. Fetch metadata from the [services.Provider] and derive the filename with [TrackFilename]
//  2. Open a staged write in [storage.Directory]; concurrent writers of the same name are serialized
//  3. Copy the provider's audio stream into the staged file
//  4. Commit, which atomically renames the file into the catalog
//
// Any failure aborts the staged write, so readers never observe a partial track.
// Overlapping jobs for the same source and filename share one download. Different
// sources that sanitize to the same filename each download in turn and the last
// commit wins.
//
// # Job lifecycle
//
// Every transition (started, metadata_fetched, streaming, completed or failed) is
// persisted through the [JobStore], so a caller that stops waiting can poll the job later.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
