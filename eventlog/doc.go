// Package eventlog defines the storage contract the application core is built on:
// append-only event streams keyed by stream id, with optimistic concurrency via an
// expected-version check on append.
//
// The package itself is dependency-free; concrete engines live in the subpackages
// memoryengine (in-process, for tests and demos) and sqlengine (Postgres and SQLite).
// Observability adapters for OpenTelemetry live in oteladapters.
package eventlog
