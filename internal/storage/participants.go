package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hearthside/hearth/internal/identity"
)

func (s *PostgresStore) SaveParticipant(ctx context.Context, p identity.Participant) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO participants (
			id, family_id, label, status, enroll_percent, pending_pcm, profile, pin_hash, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			family_id=EXCLUDED.family_id,
			label=EXCLUDED.label,
			status=EXCLUDED.status,
			enroll_percent=EXCLUDED.enroll_percent,
			pending_pcm=EXCLUDED.pending_pcm,
			profile=EXCLUDED.profile,
			pin_hash=EXCLUDED.pin_hash,
			updated_at=EXCLUDED.updated_at`,
		p.ID,
		p.FamilyID,
		p.Label,
		string(p.Status),
		p.EnrollPercent,
		pcmToBytes(p.PendingPCM),
		p.Profile,
		p.PINHash,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetParticipant(ctx context.Context, id string) (identity.Participant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, family_id, label, status, enroll_percent, pending_pcm, profile, pin_hash, created_at, updated_at
		   FROM participants WHERE id=$1`,
		id,
	)
	p, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.Participant{}, identity.ErrNotFound
		}
		return identity.Participant{}, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListParticipants(ctx context.Context, familyID string) ([]identity.Participant, error) {
	query := `SELECT id, family_id, label, status, enroll_percent, pending_pcm, profile, pin_hash, created_at, updated_at
	            FROM participants`
	args := []any{}
	if familyID != "" {
		query += ` WHERE family_id=$1`
		args = append(args, familyID)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []identity.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participant rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteParticipant(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM participants WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func scanParticipant(row pgx.Row) (identity.Participant, error) {
	var (
		p       identity.Participant
		status  string
		pending []byte
	)
	if err := row.Scan(
		&p.ID,
		&p.FamilyID,
		&p.Label,
		&status,
		&p.EnrollPercent,
		&pending,
		&p.Profile,
		&p.PINHash,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return identity.Participant{}, err
	}
	p.Status = identity.EnrollmentStatus(status)
	p.PendingPCM = bytesToPCM(pending)
	return p, nil
}
