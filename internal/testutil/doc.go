// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing threads and events. The helpers are minimal,
// avoid third-party dependencies and are not intended for production use.
package testutil
