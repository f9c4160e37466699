// Package sqlite is a storage.Store on modernc.org/sqlite. The schema is
// embedded and applied with goose on Open.
package sqlite
