package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"

	"statefeed/internal/event"
	"statefeed/pkg/quant"
)

// Journal persists the raw envelope stream in SQLite. Envelopes are written
// before any reducer consumes them, so a crashed session can be replayed
// exactly as it arrived.
type Journal struct {
	db *sql.DB
}

// NewJournal opens (or creates) the journal database with WAL mode enabled.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			started_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	// Sequence numbers restart per connection, so the key is (session, seq).
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS envelopes (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			seq INTEGER NOT NULL,
			type INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (session_id, seq)
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create envelopes table: %w", err)
	}

	return &Journal{db: db}, nil
}

// BeginSession registers a new recording session and returns its id.
// label is free-form context for later inspection (market, channel set).
func (j *Journal) BeginSession(ctx context.Context, label string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO sessions (id, label, started_at) VALUES (?, ?, ?)",
		id.String(), label, int64(quant.Now()),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return id, nil
}

// Record appends one envelope to the session.
func (j *Journal) Record(ctx context.Context, sessionID uuid.UUID, env event.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	_, err = j.db.ExecContext(ctx,
		"INSERT INTO envelopes (session_id, seq, type, ts, payload) VALUES (?, ?, ?, ?, ?)",
		sessionID.String(), env.Seq, uint16(env.Type), int64(env.Ts), payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert envelope: %w", err)
	}
	return nil
}

// LastSeq returns the highest sequence recorded for the session, 0 if none.
func (j *Journal) LastSeq(ctx context.Context, sessionID uuid.UUID) (uint64, error) {
	var lastSeq sql.NullInt64
	err := j.db.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM envelopes WHERE session_id = ?",
		sessionID.String(),
	).Scan(&lastSeq)
	if err != nil {
		return 0, fmt.Errorf("failed to get last seq: %w", err)
	}
	if !lastSeq.Valid {
		return 0, nil
	}
	return uint64(lastSeq.Int64), nil
}

// Sessions lists recorded session ids, oldest first.
func (j *Journal) Sessions(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT id FROM sessions ORDER BY started_at ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("malformed session id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return ids, nil
}

// LoadEnvelopes loads the session's envelopes from fromSeq (inclusive) in
// sequence order.
func (j *Journal) LoadEnvelopes(ctx context.Context, sessionID uuid.UUID, fromSeq uint64) ([]event.Envelope, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT seq, payload FROM envelopes WHERE session_id = ? AND seq >= ? ORDER BY seq ASC",
		sessionID.String(), fromSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query envelopes: %w", err)
	}
	defer rows.Close()

	var envs []event.Envelope
	for rows.Next() {
		var seq int64
		var payload []byte
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan envelope: %w", err)
		}

		var env event.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, fmt.Errorf("failed to unmarshal envelope %d: %w", seq, err)
		}
		envs = append(envs, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return envs, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// SessionRecorder binds a journal to a single session so it can be handed
// to a subscription as its recorder.
type SessionRecorder struct {
	journal   *Journal
	sessionID uuid.UUID
}

// NewSessionRecorder opens a fresh session on the journal.
func NewSessionRecorder(ctx context.Context, journal *Journal, label string) (*SessionRecorder, error) {
	id, err := journal.BeginSession(ctx, label)
	if err != nil {
		return nil, err
	}
	return &SessionRecorder{journal: journal, sessionID: id}, nil
}

// SessionID returns the underlying session id.
func (r *SessionRecorder) SessionID() uuid.UUID {
	return r.sessionID
}

// Record appends one envelope to the bound session.
func (r *SessionRecorder) Record(ctx context.Context, env event.Envelope) error {
	return r.journal.Record(ctx, r.sessionID, env)
}
