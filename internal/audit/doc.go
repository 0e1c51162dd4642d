// Package audit implements async event dispatching for security-relevant operations.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON writer, structured logger, no-op, fan-out).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: audit record with timestamp, type, user, IP, user agent, outcome, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the engine and realtime gate do.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import deskauth or any sibling internal package other than logging.
//   - Carry raw credentials: callers pass identifiers and outcomes only.
package audit
