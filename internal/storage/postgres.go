package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore backs the identity, continuity and stories packages with
// one pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS participants (
			id TEXT PRIMARY KEY,
			family_id TEXT NOT NULL,
			label TEXT NOT NULL,
			status TEXT NOT NULL,
			enroll_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
			pending_pcm BYTEA NULL,
			profile BYTEA NULL,
			pin_hash TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_participants_family ON participants (family_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS moments (
			id TEXT PRIMARY KEY,
			family_id TEXT NOT NULL,
			participant_id TEXT NOT NULL,
			source TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			tags JSONB NOT NULL DEFAULT '[]',
			turns JSONB NOT NULL DEFAULT '[]',
			audio_asset_id TEXT NOT NULL DEFAULT '',
			shared_at TIMESTAMPTZ NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			deleted_at TIMESTAMPTZ NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_moments_participant_created ON moments (participant_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_moments_family_shared ON moments (family_id, shared_at DESC);`,
		`CREATE TABLE IF NOT EXISTS stories (
			id TEXT PRIMARY KEY,
			family_id TEXT NOT NULL,
			participant_id TEXT NOT NULL,
			source_moment_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			tags JSONB NOT NULL DEFAULT '[]',
			body TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			shared_moment_id TEXT NOT NULL DEFAULT '',
			audio_asset_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_stories_participant_status ON stories (participant_id, status, created_at);`,
		`CREATE TABLE IF NOT EXISTS story_listens (
			participant_id TEXT NOT NULL,
			moment_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (participant_id, moment_id)
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// PCM buffers are stored as little-endian 16-bit samples.

func pcmToBytes(pcm []int16) []byte {
	if len(pcm) == 0 {
		return nil
	}
	out := make([]byte, 2*len(pcm))
	for i, v := range pcm {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

func bytesToPCM(data []byte) []int16 {
	if len(data) < 2 {
		return nil
	}
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return out
}
