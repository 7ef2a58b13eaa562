package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	dataDirName = ".tempoline"
	fileName    = "tempoline.db"
)

// Dir returns the data directory inside a workspace.
func Dir(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, dataDirName)
}

// Path returns the database file path for a workspace.
func Path(workspace string) string {
	return filepath.Join(Dir(workspace), fileName)
}

// Open creates the workspace data directory if needed and opens its SQLite
// database. Foreign keys are enforced so child rows cascade with their
// engagement root; WAL plus a busy timeout lets concurrent CLI invocations
// wait out short write locks instead of failing.
func Open(workspace string) (*sql.DB, error) {
	if err := os.MkdirAll(Dir(workspace), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dsn := "file:" + Path(workspace) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", Path(workspace), err)
	}
	return conn, nil
}
