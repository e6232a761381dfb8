// Package ui styles CLI output and shows live progress for long-running engine
// operations.
//
// The lipgloss [Palette] backs the status helpers ([Success], [Error],
// [Warning], [Title], [Muted]) used by the commands.
//
// [Model] is a bubbletea program that runs a [Job] (a sync or an import) and
// renders the [tasks.ProgressUpdate] values it emits: a spinner, a progress bar
// for the current phase, the most recent messages and, on demand, the songs
// that could not be added. Updates flow through a channel that the job closes
// when it returns; the model then quits and [Run] hands back the job result.
package ui
