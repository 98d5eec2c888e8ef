// Package session houses concrete implementations of core.ThreadStore. The
// interface itself (and the Thread struct) live in the core package to
// centralize domain contracts; keeping only implementations here prevents
// higher level packages (dialog, engine) from depending on concrete storage.
//
// Three backends are provided: a volatile in-memory map for tests and demo
// servers, a JSON-file store for single-node persistence, and a Redis store
// for shared deployments. Only the wiring layer decides which to instantiate.
package session
