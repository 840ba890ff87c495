// Package services implements the HTTP client for the poster job API.
//
// # Job Service
//
// [JobService] wraps every job endpoint: create, upload, start processing, processing status,
// full status, results, listing, and download links. It keeps no job state between calls.
//
// Reads other than the processing-status poll are retried on transport errors and 5xx responses,
// waiting a fixed delay between attempts. An optional bearer token is attached through an
// [oauth2.Transport], and an optional [rate.Limiter] caps requests per second.
//
// # Event Stream
//
// [JobService.OpenEventStream] opens the server-sent event stream of a job. [EventStream.Next]
// yields one [Frame] at a time; decoding the JSON payload is left to the caller.
//
// # Error Handling
//
// Every failure is an [APIError] of one of three kinds:
//   - [KindApplication] : the server answered with a non-2xx status
//   - [KindTransport] : no response was received (status 0)
//   - [KindRequest] : the request could not be built
//
// APIError unwraps to the shared sentinels so callers can use errors.Is:
//   - [shared.ErrAPIRequest] : application errors
//   - [shared.ErrJobNotFound], [shared.ErrJobNotCompleted] : well-known application messages
//   - [shared.ErrServiceUnavailable] : transport errors
//   - [shared.ErrInvalidInput] : request errors
package services
