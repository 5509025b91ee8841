//go:build cgo_sqlite

package main

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteDriver = "sqlite3"

// initDB opens the history database with the cgo driver.
func initDB(path string) (*sql.DB, error) {
	return sql.Open(sqliteDriver, path+"?_journal_mode=WAL&_busy_timeout=5000")
}
