//go:build !cgo_sqlite

package main

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

const sqliteDriver = "sqlite"

// initDB opens the history database with the pure-Go driver, which takes
// its pragmas in the _pragma form.
func initDB(path string) (*sql.DB, error) {
	return sql.Open(sqliteDriver, path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
}
