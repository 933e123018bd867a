// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/agentproof-foundation/agentproof/lib/attest"
	"github.com/agentproof-foundation/agentproof/lib/sqlitepool"
)

// schema creates the three entity tables. Timestamps are stored as
// Unix milliseconds. Trace recency ordering rides on rowid, which is
// monotonically assigned for ordinary inserts.
const schema = `
CREATE TABLE IF NOT EXISTS agents (
	agent_id         TEXT PRIMARY KEY,
	wallet_address   TEXT NOT NULL UNIQUE,
	public_key       TEXT NOT NULL,
	trust_level      INTEGER NOT NULL,
	total_activities INTEGER NOT NULL,
	created_at       INTEGER NOT NULL,
	last_activity    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS challenges (
	challenge_id TEXT PRIMARY KEY,
	agent_id     TEXT NOT NULL UNIQUE,
	nonce        TEXT NOT NULL,
	message      TEXT NOT NULL,
	expires_at   INTEGER NOT NULL,
	created_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS challenges_expires_at ON challenges(expires_at);

CREATE TABLE IF NOT EXISTS activity_traces (
	trace_id         TEXT PRIMARY KEY,
	agent_id         TEXT NOT NULL,
	action_hash      TEXT NOT NULL,
	action_type      TEXT NOT NULL,
	timestamp        INTEGER NOT NULL,
	signature        TEXT NOT NULL,
	on_chain_tx_hash TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS traces_agent_id ON activity_traces(agent_id);
CREATE INDEX IF NOT EXISTS traces_action_hash ON activity_traces(action_hash);
`

// SQLite is the durable Repository backend. Single-entity atomicity
// comes from SQLite statement atomicity; read-modify-write agent
// updates run in IMMEDIATE transactions so concurrent updaters never
// observe stale counters.
type SQLite struct {
	pool *sqlitepool.Pool
}

// SQLiteConfig holds the parameters for opening the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file path. Required.
	Path string

	// PoolSize is the connection pool size. Defaults to 4.
	PoolSize int

	// Logger receives pool lifecycle messages.
	Logger *slog.Logger
}

// OpenSQLite opens (creating if necessary) the SQLite store at the
// configured path. The schema is applied on every connection open;
// CREATE IF NOT EXISTS makes that idempotent.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("attest store: %w", err)
	}

	return &SQLite{pool: pool}, nil
}

var _ Store = (*SQLite)(nil)

func (s *SQLite) CreateAgent(ctx context.Context, agent attest.Agent) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("attest store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	var taken bool
	err = sqlitex.Execute(conn,
		"SELECT 1 FROM agents WHERE agent_id = ? OR wallet_address = ? LIMIT 1",
		&sqlitex.ExecOptions{
			Args: []any{agent.AgentID, agent.WalletAddress},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				taken = true
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("attest store: checking agent uniqueness: %w", err)
	}
	if taken {
		return attest.ErrAgentExists
	}

	err = sqlitex.Execute(conn,
		`INSERT INTO agents
			(agent_id, wallet_address, public_key, trust_level, total_activities, created_at, last_activity)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				agent.AgentID,
				agent.WalletAddress,
				agent.PublicKey,
				int64(agent.TrustLevel),
				agent.TotalActivities,
				agent.CreatedAt.UnixMilli(),
				agent.LastActivity.UnixMilli(),
			},
		})
	if err != nil {
		return fmt.Errorf("attest store: inserting agent: %w", err)
	}
	return nil
}

// readAgent scans the current statement row into an Agent. Column
// order must match the agentColumns select list.
const agentColumns = "agent_id, wallet_address, public_key, trust_level, total_activities, created_at, last_activity"

func readAgent(stmt *sqlite.Stmt) attest.Agent {
	return attest.Agent{
		AgentID:         stmt.ColumnText(0),
		WalletAddress:   stmt.ColumnText(1),
		PublicKey:       stmt.ColumnText(2),
		TrustLevel:      attest.TrustLevel(stmt.ColumnInt64(3)),
		TotalActivities: stmt.ColumnInt64(4),
		CreatedAt:       time.UnixMilli(stmt.ColumnInt64(5)).UTC(),
		LastActivity:    time.UnixMilli(stmt.ColumnInt64(6)).UTC(),
	}
}

func (s *SQLite) getAgentWhere(ctx context.Context, where string, arg any) (attest.Agent, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return attest.Agent{}, err
	}
	defer s.pool.Put(conn)

	return getAgentWhereConn(conn, where, arg)
}

func getAgentWhereConn(conn *sqlite.Conn, where string, arg any) (attest.Agent, error) {
	var agent attest.Agent
	found := false
	err := sqlitex.Execute(conn,
		"SELECT "+agentColumns+" FROM agents WHERE "+where,
		&sqlitex.ExecOptions{
			Args: []any{arg},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				agent = readAgent(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return attest.Agent{}, fmt.Errorf("attest store: querying agent: %w", err)
	}
	if !found {
		return attest.Agent{}, attest.ErrNotFound
	}
	return agent, nil
}

func (s *SQLite) GetAgent(ctx context.Context, agentID string) (attest.Agent, error) {
	return s.getAgentWhere(ctx, "agent_id = ?", agentID)
}

func (s *SQLite) GetAgentByWallet(ctx context.Context, walletAddress string) (attest.Agent, error) {
	return s.getAgentWhere(ctx, "wallet_address = ?", walletAddress)
}

func (s *SQLite) UpdateAgent(ctx context.Context, agentID string, mutate func(*attest.Agent) error) (agent attest.Agent, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return attest.Agent{}, err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return attest.Agent{}, fmt.Errorf("attest store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	agent, err = getAgentWhereConn(conn, "agent_id = ?", agentID)
	if err != nil {
		return attest.Agent{}, err
	}

	if err := mutate(&agent); err != nil {
		return attest.Agent{}, err
	}
	agent.AgentID = agentID

	err = sqlitex.Execute(conn,
		`UPDATE agents SET
			wallet_address = ?, public_key = ?, trust_level = ?,
			total_activities = ?, created_at = ?, last_activity = ?
		 WHERE agent_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{
				agent.WalletAddress,
				agent.PublicKey,
				int64(agent.TrustLevel),
				agent.TotalActivities,
				agent.CreatedAt.UnixMilli(),
				agent.LastActivity.UnixMilli(),
				agentID,
			},
		})
	if err != nil {
		return attest.Agent{}, fmt.Errorf("attest store: updating agent: %w", err)
	}
	return agent, nil
}

func (s *SQLite) CreateChallenge(ctx context.Context, challenge attest.Challenge) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	// The agent_id UNIQUE constraint backs the at-most-one-live-
	// challenge invariant; UPSERT replaces a leftover row rather than
	// failing, since the caller has already decided to supersede it.
	err = sqlitex.Execute(conn,
		`INSERT INTO challenges (challenge_id, agent_id, nonce, message, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET
			challenge_id = excluded.challenge_id,
			nonce = excluded.nonce,
			message = excluded.message,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`,
		&sqlitex.ExecOptions{
			Args: []any{
				challenge.ChallengeID,
				challenge.AgentID,
				challenge.Nonce,
				challenge.Message,
				challenge.ExpiresAt.UnixMilli(),
				challenge.CreatedAt.UnixMilli(),
			},
		})
	if err != nil {
		return fmt.Errorf("attest store: inserting challenge: %w", err)
	}
	return nil
}

func readChallenge(stmt *sqlite.Stmt) attest.Challenge {
	return attest.Challenge{
		ChallengeID: stmt.ColumnText(0),
		AgentID:     stmt.ColumnText(1),
		Nonce:       stmt.ColumnText(2),
		Message:     stmt.ColumnText(3),
		ExpiresAt:   time.UnixMilli(stmt.ColumnInt64(4)).UTC(),
		CreatedAt:   time.UnixMilli(stmt.ColumnInt64(5)).UTC(),
	}
}

const challengeColumns = "challenge_id, agent_id, nonce, message, expires_at, created_at"

func (s *SQLite) getChallengeWhere(ctx context.Context, where string, arg any) (attest.Challenge, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return attest.Challenge{}, err
	}
	defer s.pool.Put(conn)

	var challenge attest.Challenge
	found := false
	err = sqlitex.Execute(conn,
		"SELECT "+challengeColumns+" FROM challenges WHERE "+where,
		&sqlitex.ExecOptions{
			Args: []any{arg},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				challenge = readChallenge(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return attest.Challenge{}, fmt.Errorf("attest store: querying challenge: %w", err)
	}
	if !found {
		return attest.Challenge{}, attest.ErrNotFound
	}
	return challenge, nil
}

func (s *SQLite) GetChallenge(ctx context.Context, challengeID string) (attest.Challenge, error) {
	return s.getChallengeWhere(ctx, "challenge_id = ?", challengeID)
}

func (s *SQLite) GetChallengeByAgent(ctx context.Context, agentID string) (attest.Challenge, error) {
	return s.getChallengeWhere(ctx, "agent_id = ?", agentID)
}

func (s *SQLite) DeleteChallenge(ctx context.Context, challengeID string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"DELETE FROM challenges WHERE challenge_id = ?",
		&sqlitex.ExecOptions{Args: []any{challengeID}})
	if err != nil {
		return fmt.Errorf("attest store: deleting challenge: %w", err)
	}
	return nil
}

func (s *SQLite) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"DELETE FROM challenges WHERE expires_at <= ?",
		&sqlitex.ExecOptions{Args: []any{now.UnixMilli()}})
	if err != nil {
		return 0, fmt.Errorf("attest store: deleting expired challenges: %w", err)
	}
	return conn.Changes(), nil
}

func (s *SQLite) AppendTrace(ctx context.Context, trace attest.ActivityTrace) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO activity_traces
			(trace_id, agent_id, action_hash, action_type, timestamp, signature, on_chain_tx_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				trace.TraceID,
				trace.AgentID,
				trace.ActionHash,
				trace.ActionType,
				trace.Timestamp.UnixMilli(),
				trace.Signature,
				trace.OnChainTxHash,
			},
		})
	if err != nil {
		return fmt.Errorf("attest store: inserting trace: %w", err)
	}
	return nil
}

const traceColumns = "trace_id, agent_id, action_hash, action_type, timestamp, signature, on_chain_tx_hash"

func readTrace(stmt *sqlite.Stmt) attest.ActivityTrace {
	return attest.ActivityTrace{
		TraceID:       stmt.ColumnText(0),
		AgentID:       stmt.ColumnText(1),
		ActionHash:    stmt.ColumnText(2),
		ActionType:    stmt.ColumnText(3),
		Timestamp:     time.UnixMilli(stmt.ColumnInt64(4)).UTC(),
		Signature:     stmt.ColumnText(5),
		OnChainTxHash: stmt.ColumnText(6),
	}
}

func (s *SQLite) ListTraces(ctx context.Context, agentID string, limit int) ([]attest.ActivityTrace, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var traces []attest.ActivityTrace
	err = sqlitex.Execute(conn,
		"SELECT "+traceColumns+" FROM activity_traces WHERE agent_id = ? ORDER BY rowid DESC LIMIT ?",
		&sqlitex.ExecOptions{
			Args: []any{agentID, limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				traces = append(traces, readTrace(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("attest store: listing traces: %w", err)
	}
	return traces, nil
}

func (s *SQLite) GetTraceByHash(ctx context.Context, actionHash string) (attest.ActivityTrace, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return attest.ActivityTrace{}, err
	}
	defer s.pool.Put(conn)

	var trace attest.ActivityTrace
	found := false
	err = sqlitex.Execute(conn,
		"SELECT "+traceColumns+" FROM activity_traces WHERE action_hash = ? ORDER BY rowid LIMIT 1",
		&sqlitex.ExecOptions{
			Args: []any{actionHash},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				trace = readTrace(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return attest.ActivityTrace{}, fmt.Errorf("attest store: querying trace by hash: %w", err)
	}
	if !found {
		return attest.ActivityTrace{}, attest.ErrNotFound
	}
	return trace, nil
}

func (s *SQLite) SetTraceAnchor(ctx context.Context, traceID, txHash string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	// The empty-string guard makes the anchor write-once: a second
	// write-back (or a duplicate worker delivery) changes nothing.
	err = sqlitex.Execute(conn,
		"UPDATE activity_traces SET on_chain_tx_hash = ? WHERE trace_id = ? AND on_chain_tx_hash = ''",
		&sqlitex.ExecOptions{Args: []any{txHash, traceID}})
	if err != nil {
		return fmt.Errorf("attest store: anchoring trace: %w", err)
	}
	if conn.Changes() == 0 {
		// Either the trace does not exist or it is already anchored.
		var exists bool
		err = sqlitex.Execute(conn,
			"SELECT 1 FROM activity_traces WHERE trace_id = ?",
			&sqlitex.ExecOptions{
				Args: []any{traceID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					exists = true
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("attest store: checking trace: %w", err)
		}
		if !exists {
			return attest.ErrNotFound
		}
	}
	return nil
}

func (s *SQLite) count(ctx context.Context, query string) (int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	var total int64
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			total = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("attest store: counting: %w", err)
	}
	return total, nil
}

func (s *SQLite) CountAgents(ctx context.Context) (int64, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM agents")
}

func (s *SQLite) CountTraces(ctx context.Context) (int64, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM activity_traces")
}

func (s *SQLite) Close() error {
	return s.pool.Close()
}
