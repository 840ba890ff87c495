// Package session holds the state of the poster job the user is working on.
//
// A [Store] is created once and passed to whatever needs it. It keeps the current job apart from the
// uploaded files and settings, so a failed job can be retried with the same inputs under a new job id.
package session
