package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens the queue database file. WAL plus a busy timeout lets several
// OS processes (workers, RPC services, submitters) share one file; immediate
// transactions take the write lock up front so claim races serialize.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	//连接测试
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// EnsureSchema creates the tasks table if it is missing. Schema changes must
// stay additive so older processes can keep using the same file.
func EnsureSchema(ctx context.Context, conn *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
            task_id TEXT PRIMARY KEY,
            task_type TEXT NOT NULL,
            model_name TEXT NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL,
            assigned_worker TEXT,
            created_at REAL NOT NULL,
            updated_at REAL NOT NULL,
            result TEXT,
            error TEXT
        );`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_created ON tasks(status, created_at);`,
	}
	for _, q := range ddl {
		if _, err := conn.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
