// Package tasks follows remote poster jobs and reconciles their progress into a single state.
//
// # Channels
//
// A job can be followed two ways:
//
//  1. [StreamTracker] : server-sent events, one event per pipeline step
//     - Reconnects after a transport drop, up to a fixed number of attempts
//     - Malformed events are logged and dropped
//
//  2. [PollTracker] : periodic processing-status requests
//     - Fetches the final results exactly once after the server reports completion
//     - Transport errors after the first successful poll are recoverable
//
// [HybridTracker] starts on the stream and switches to polling, at most once, when the stream fails
// to connect within the fallback timeout or drops. Only the active channel produces updates.
//
// # Merge Rules
//
// Every channel feeds the same [JobProgressState]. Completed steps are a set, designs are keyed by
// variant number, progress never decreases, and once a job is completed or failed nothing changes
// its status again.
//
// # Progress Reporting
//
// [PosterEngine] runs the whole create → upload → track flow. It mirrors each state change into a
// session store and sends a [ProgressUpdate] on a non-blocking channel.
//
// # Job Recording
//
// The optional [JobRecorder] interface persists each finished run. Recording errors are logged and
// never fail the run.
package tasks
