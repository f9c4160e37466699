// Package memory is a process-local storage.Store for tests, examples and
// single-instance hosts.
package memory
