// Package server implements the core of the RelayPoint chat relay: the
// broadcast hub event loop, per-connection sessions, the bounded message
// history, and typing presence.
//
// The implementation is organized into specialized files for configuration,
// hub coordination, sessions, routing, and HTTP handlers to keep the codebase
// maintainable and testable as the project grows.
package server
