// Package ui implements an interactive terminal view of a poster run using bubbletea's Elm architecture.
//
// The TUI moves through three views:
//  1. [TrackView] : spinner, progress bar, step checklist, and partial results while the job runs
//  2. [ResultView] : the generated variants in a list; enter opens the selected render in a browser
//  3. [FailedView] : the error; r retries with the same files and settings under a new job
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the [tasks.PosterEngine], so the engine never blocks on rendering.
// The mode tag shows whether updates currently come from the event stream or from polling.
package ui
