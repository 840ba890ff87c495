// Package models defines domain entities and persistence interfaces for the posterctl job client.
//
// The package contains three categories of types:
//
// 1. Wire types: JSON shapes exchanged with the poster API
//   - [Job] : Server-side job record, extended with client-side progress fields
//   - [Design] : One generated poster variant (HTML plus rendered image)
//   - [ProcessingStatus] : Poll response for an in-flight job
//   - [StreamEvent] : One message of the processing event stream
//
// 2. Settings: the closed, validated [PosterSettings] structure sent on upload
//
// 3. Persistent Entities: Database-backed models for the local job history
//   - [JobRecord] : A job created or tracked from this machine
//   - [DesignRecord] : A cached design variant belonging to a [JobRecord]
//
// All persistent entities implement the Model interface providing ID, timestamps, and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
