// Package models defines domain entities and persistence interfaces for the jukebox media service.
//
//   - [Track] : a finalized audio file, identified by its filename in the music directory
//   - [IngestJob] : one download request, tracked from submission to its terminal state
//
// [IngestJob] moves through a fixed lifecycle:
//
//	started -> metadata_fetched -> streaming -> completed
//
// with failed reachable from any non-terminal state. [IngestJob.Advance] rejects every
// other transition with [shared.ErrInvalidState].
//
// Persistent entities implement [Model]; [Repository] defines the CRUD surface the
// SQLite repositories satisfy.
package models
