// Package tasks orchestrates liked-song operations across platforms with real-time progress reporting.
//
// # Core Operations
//
// [Engine] provides:
//
//  1. [Engine.Sync] : copy liked songs from one source platform to one or more targets
//     - Validates the request before any provider call
//     - Fetches the source catalog once and dedupes it by song identity
//     - For each target, computes what is missing against the songs already recorded for it
//     - Searches each missing song on the target and adds the top match
//     - Records the song tagged with both platforms and keeps a per-song outcome
//     - Persists one sync history row
//
//  2. [Engine.ImportAll] : record every connected platform's liked songs locally
//
//  3. [Engine.ListSongs], [Engine.MissingSongs], [Engine.LibrarySongs], [Engine.History] : library queries
//
//  4. [Engine.ExportLibrary] : write each platform's live liked songs to disk with a worker pool
//
// # Song Identity
//
// Songs match when their case-folded, trimmed titles and artists are equal. See [IsSameSong] and
// [ComputeMissing].
//
// # Failure Handling
//
// Per-song failures (no search result, search error, add refused) are recorded as [SongOutcome]
// values and never abort a target. Expired authorization stops the affected target only. A
// source fetch failure aborts the run and is recorded as a failed sync.
//
// # Progress Reporting
//
// All operations accept an optional channel of [ProgressUpdate]. Updates use select with default
// so a slow reader never blocks a run.
package tasks
