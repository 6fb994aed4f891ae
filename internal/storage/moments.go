package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hearthside/hearth/internal/continuity"
)

func (s *PostgresStore) SaveMoment(ctx context.Context, m continuity.Moment) error {
	tags, err := json.Marshal(orEmpty(m.Tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	momentTurns := m.Turns
	if momentTurns == nil {
		momentTurns = []continuity.Turn{}
	}
	turns, err := json.Marshal(momentTurns)
	if err != nil {
		return fmt.Errorf("encode turns: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO moments (
			id, family_id, participant_id, source, title, summary, tags, turns,
			audio_asset_id, shared_at, created_at, updated_at, deleted_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
			family_id=EXCLUDED.family_id,
			participant_id=EXCLUDED.participant_id,
			source=EXCLUDED.source,
			title=EXCLUDED.title,
			summary=EXCLUDED.summary,
			tags=EXCLUDED.tags,
			turns=EXCLUDED.turns,
			audio_asset_id=EXCLUDED.audio_asset_id,
			shared_at=EXCLUDED.shared_at,
			updated_at=EXCLUDED.updated_at,
			deleted_at=EXCLUDED.deleted_at`,
		m.ID,
		m.FamilyID,
		m.ParticipantID,
		m.Source,
		m.Title,
		m.Summary,
		tags,
		turns,
		m.AudioAssetID,
		m.SharedAt,
		m.CreatedAt,
		m.UpdatedAt,
		m.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert moment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMoment(ctx context.Context, id string) (continuity.Moment, error) {
	row := s.pool.QueryRow(ctx, momentSelect+` WHERE id=$1`, id)
	m, err := scanMoment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return continuity.Moment{}, continuity.ErrNotFound
		}
		return continuity.Moment{}, fmt.Errorf("get moment: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListMomentsByParticipant(ctx context.Context, participantID string) ([]continuity.Moment, error) {
	rows, err := s.pool.Query(ctx,
		momentSelect+` WHERE participant_id=$1 AND source=$2 AND deleted_at IS NULL ORDER BY created_at ASC`,
		participantID, continuity.SourceConversation,
	)
	if err != nil {
		return nil, fmt.Errorf("list moments: %w", err)
	}
	return collectMoments(rows)
}

func (s *PostgresStore) ListSharedMoments(ctx context.Context, familyID string) ([]continuity.Moment, error) {
	rows, err := s.pool.Query(ctx,
		momentSelect+` WHERE family_id=$1 AND source=$2 AND deleted_at IS NULL ORDER BY shared_at DESC`,
		familyID, continuity.SourceVoiceStory,
	)
	if err != nil {
		return nil, fmt.Errorf("list shared moments: %w", err)
	}
	return collectMoments(rows)
}

const momentSelect = `SELECT id, family_id, participant_id, source, title, summary, tags, turns,
       audio_asset_id, shared_at, created_at, updated_at, deleted_at
  FROM moments`

func collectMoments(rows pgx.Rows) ([]continuity.Moment, error) {
	defer rows.Close()
	var out []continuity.Moment
	for rows.Next() {
		m, err := scanMoment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan moment row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moment rows: %w", err)
	}
	return out, nil
}

func scanMoment(row pgx.Row) (continuity.Moment, error) {
	var (
		m     continuity.Moment
		tags  []byte
		turns []byte
	)
	if err := row.Scan(
		&m.ID,
		&m.FamilyID,
		&m.ParticipantID,
		&m.Source,
		&m.Title,
		&m.Summary,
		&tags,
		&turns,
		&m.AudioAssetID,
		&m.SharedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.DeletedAt,
	); err != nil {
		return continuity.Moment{}, err
	}
	if err := json.Unmarshal(tags, &m.Tags); err != nil {
		return continuity.Moment{}, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal(turns, &m.Turns); err != nil {
		return continuity.Moment{}, fmt.Errorf("decode turns: %w", err)
	}
	return m, nil
}

func orEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
