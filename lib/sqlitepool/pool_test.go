// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Fatal("Open with empty Path succeeded")
	}
}

func TestTakePutRoundTrip(t *testing.T) {
	pool, err := Open(Config{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		PoolSize: 2,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	if err := sqlitex.ExecuteTransient(conn, "CREATE TABLE t (x INTEGER)", nil); err != nil {
		t.Fatalf("create table: %v", err)
	}
}

func TestOnConnectRunsPerConnection(t *testing.T) {
	pool, err := Open(Config{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		PoolSize: 1,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, "CREATE TABLE IF NOT EXISTS marker (x INTEGER);", nil)
		},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	var found bool
	err = sqlitex.Execute(conn,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='marker'",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				return nil
			},
		})
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if !found {
		t.Fatal("OnConnect schema not applied")
	}
}
