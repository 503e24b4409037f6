package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Schema is the table Postgres writes into.
const Schema = `CREATE TABLE IF NOT EXISTS arena_results (
    instance_id TEXT        NOT NULL,
    session_id  TEXT        NOT NULL,
    game_no     INTEGER     NOT NULL,
    white_conn  TEXT        NOT NULL,
    black_conn  TEXT        NOT NULL,
    result      TEXT        NOT NULL,
    result_method TEXT      NOT NULL,
    moves_uci   JSONB       NOT NULL,
    moves_san   JSONB       NOT NULL,
    pgn         TEXT        NOT NULL,
    started_at  TIMESTAMPTZ,
    ended_at    TIMESTAMPTZ,
    duration_ms BIGINT      NOT NULL DEFAULT 0,
    PRIMARY KEY (instance_id, game_no)
)`

type Postgres struct {
	db *sql.DB
}

// NewPostgresDB wraps an open handle. The schema is assumed to exist.
func NewPostgresDB(db *sql.DB) *Postgres { return &Postgres{db: db} }

func NewPostgres(databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Record upserts the result keyed by session instance and game number.
func (p *Postgres) Record(ctx context.Context, r Result) error {
	if p == nil || p.db == nil {
		return nil
	}
	movesUCIRaw, _ := json.Marshal(r.MovesUCI)
	movesSANRaw, _ := json.Marshal(r.MovesSAN)
	duration := r.EndedAt.Sub(r.StartedAt).Milliseconds()
	if duration < 0 || r.StartedAt.IsZero() {
		duration = 0
	}

	q := `INSERT INTO arena_results (
        instance_id, session_id, game_no, white_conn, black_conn,
        result, result_method, moves_uci, moves_san, pgn,
        started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
      ) ON CONFLICT (instance_id, game_no) DO UPDATE SET
        session_id=EXCLUDED.session_id,
        white_conn=EXCLUDED.white_conn,
        black_conn=EXCLUDED.black_conn,
        result=EXCLUDED.result,
        result_method=EXCLUDED.result_method,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err := p.db.ExecContext(ctx, q,
		r.Instance, r.SessionID, r.Game, r.White, r.Black,
		r.Result, r.Method, string(movesUCIRaw), string(movesSANRaw), r.PGN,
		nullTime(r.StartedAt), nullTime(r.EndedAt), duration,
	)
	if err != nil {
		return fmt.Errorf("postgres record %s/%d: %w", r.SessionID, r.Game, err)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
