// Package postgres provides an optional PostgreSQL archive of conversation
// rounds. When no DSN is configured the orchestrator runs without it; the
// archive is strictly best-effort and never blocks a round.
//
// Usage:
//
//	arch, err := postgres.NewArchive(ctx, dsn)
//	if err != nil { … }
//	defer arch.Close()
//
//	_ = arch.InsertRound(ctx, round)
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Round is one archived heard→reply cycle.
type Round struct {
	Meeting   string
	RoundID   int
	Speaker   string
	HeardText string
	ReplyText string
	Source    string // "agent", "fallback", or "" when the round timed out
	HeardAt   time.Time
	Duration  time.Duration
}

const ddlRounds = `
CREATE TABLE IF NOT EXISTS rounds (
    id          BIGSERIAL    PRIMARY KEY,
    meeting     TEXT         NOT NULL,
    round_id    INTEGER      NOT NULL,
    speaker     TEXT         NOT NULL DEFAULT '',
    heard_text  TEXT         NOT NULL,
    reply_text  TEXT         NOT NULL DEFAULT '',
    source      TEXT         NOT NULL DEFAULT '',
    heard_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    duration_ns BIGINT       NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_rounds_meeting    ON rounds (meeting);
CREATE INDEX IF NOT EXISTS idx_rounds_heard_at   ON rounds (heard_at);

CREATE INDEX IF NOT EXISTS idx_rounds_fts
    ON rounds USING GIN (to_tsvector('english', heard_text || ' ' || reply_text));
`

// Archive stores rounds in a rounds table with a GIN full-text index over the
// heard and reply text. All methods are safe for concurrent use.
type Archive struct {
	pool *pgxpool.Pool
}

// NewArchive connects to the database at dsn and ensures the rounds table
// exists.
func NewArchive(ctx context.Context, dsn string) (*Archive, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlRounds); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	return &Archive{pool: pool}, nil
}

// InsertRound appends one round.
func (a *Archive) InsertRound(ctx context.Context, r Round) error {
	const q = `
		INSERT INTO rounds
		    (meeting, round_id, speaker, heard_text, reply_text, source, heard_at, duration_ns)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := a.pool.Exec(ctx, q,
		r.Meeting,
		r.RoundID,
		r.Speaker,
		r.HeardText,
		r.ReplyText,
		r.Source,
		r.HeardAt,
		r.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("archive: insert round: %w", err)
	}
	return nil
}

// RecentRounds returns rounds for meeting heard within the given window,
// ordered chronologically (oldest first).
func (a *Archive) RecentRounds(ctx context.Context, meeting string, window time.Duration) ([]Round, error) {
	const q = `
		SELECT meeting, round_id, speaker, heard_text, reply_text, source, heard_at, duration_ns
		FROM   rounds
		WHERE  meeting  = $1
		  AND  heard_at >= now() - ($2::bigint * interval '1 microsecond')
		ORDER  BY heard_at`

	rows, err := a.pool.Query(ctx, q, meeting, window.Microseconds())
	if err != nil {
		return nil, fmt.Errorf("archive: recent rounds: %w", err)
	}
	return collectRounds(rows)
}

// SearchRounds performs a full-text search over heard and reply text for
// meeting. The query goes through plainto_tsquery so no operator syntax is
// needed. limit <= 0 means no limit.
func (a *Archive) SearchRounds(ctx context.Context, meeting, query string, limit int) ([]Round, error) {
	q := `
		SELECT meeting, round_id, speaker, heard_text, reply_text, source, heard_at, duration_ns
		FROM   rounds
		WHERE  meeting = $1
		  AND  to_tsvector('english', heard_text || ' ' || reply_text)
		       @@ plainto_tsquery('english', $2)
		ORDER  BY heard_at`

	args := []any{meeting, query}
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := a.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: search rounds: %w", err)
	}
	return collectRounds(rows)
}

// Ping reports whether the database is reachable. Used by the health handler.
func (a *Archive) Ping(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("archive: ping: %w", err)
	}
	return nil
}

// Close releases all pooled connections.
func (a *Archive) Close() {
	a.pool.Close()
}

// collectRounds scans pgx rows into Round values.
func collectRounds(rows pgx.Rows) ([]Round, error) {
	rounds, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Round, error) {
		var (
			r          Round
			durationNS int64
		)
		if err := row.Scan(
			&r.Meeting,
			&r.RoundID,
			&r.Speaker,
			&r.HeardText,
			&r.ReplyText,
			&r.Source,
			&r.HeardAt,
			&durationNS,
		); err != nil {
			return Round{}, err
		}
		r.Duration = time.Duration(durationNS)
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: scan rows: %w", err)
	}
	if rounds == nil {
		rounds = []Round{}
	}
	return rounds, nil
}
