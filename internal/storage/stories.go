package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hearthside/hearth/internal/stories"
)

func (s *PostgresStore) SaveStory(ctx context.Context, story stories.Story) error {
	tags, err := json.Marshal(orEmpty(story.Tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO stories (
			id, family_id, participant_id, source_moment_id, title, summary, tags, body,
			status, shared_moment_id, audio_asset_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
			family_id=EXCLUDED.family_id,
			participant_id=EXCLUDED.participant_id,
			source_moment_id=EXCLUDED.source_moment_id,
			title=EXCLUDED.title,
			summary=EXCLUDED.summary,
			tags=EXCLUDED.tags,
			body=EXCLUDED.body,
			status=EXCLUDED.status,
			shared_moment_id=EXCLUDED.shared_moment_id,
			audio_asset_id=EXCLUDED.audio_asset_id,
			updated_at=EXCLUDED.updated_at`,
		story.ID,
		story.FamilyID,
		story.ParticipantID,
		story.SourceMomentID,
		story.Title,
		story.Summary,
		tags,
		story.Text,
		string(story.Status),
		story.SharedMomentID,
		story.AudioAssetID,
		story.CreatedAt,
		story.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert story: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetStory(ctx context.Context, id string) (stories.Story, error) {
	row := s.pool.QueryRow(ctx, storySelect+` WHERE id=$1`, id)
	story, err := scanStory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stories.Story{}, stories.ErrNotFound
		}
		return stories.Story{}, fmt.Errorf("get story: %w", err)
	}
	return story, nil
}

func (s *PostgresStore) ListStoriesByParticipant(ctx context.Context, participantID string, status stories.Status) ([]stories.Story, error) {
	rows, err := s.pool.Query(ctx,
		storySelect+` WHERE participant_id=$1 AND status=$2 ORDER BY created_at ASC`,
		participantID, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	var out []stories.Story
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan story row: %w", err)
		}
		out = append(out, story)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate story rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteStory(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM stories WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return stories.ErrNotFound
	}
	return nil
}

// MarkStoryShared claims the final → shared transition. The status
// predicate makes the claim atomic under concurrent share calls.
func (s *PostgresStore) MarkStoryShared(ctx context.Context, storyID, sharedMomentID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE stories SET status=$3, shared_moment_id=$2, updated_at=$4
		  WHERE id=$1 AND status=$5`,
		storyID, sharedMomentID, string(stories.StatusShared), time.Now().UTC(), string(stories.StatusFinal),
	)
	if err != nil {
		return false, fmt.Errorf("mark story shared: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) AddListen(ctx context.Context, participantID, momentID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO story_listens (participant_id, moment_id) VALUES ($1,$2)
		 ON CONFLICT (participant_id, moment_id) DO NOTHING`,
		participantID, momentID,
	)
	if err != nil {
		return fmt.Errorf("insert listen mark: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListListens(ctx context.Context, participantID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT moment_id FROM story_listens WHERE participant_id=$1`,
		participantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list listen marks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan listen mark: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listen marks: %w", err)
	}
	return out, nil
}

const storySelect = `SELECT id, family_id, participant_id, source_moment_id, title, summary, tags, body,
       status, shared_moment_id, audio_asset_id, created_at, updated_at
  FROM stories`

func scanStory(row pgx.Row) (stories.Story, error) {
	var (
		story  stories.Story
		status string
		tags   []byte
	)
	if err := row.Scan(
		&story.ID,
		&story.FamilyID,
		&story.ParticipantID,
		&story.SourceMomentID,
		&story.Title,
		&story.Summary,
		&tags,
		&story.Text,
		&status,
		&story.SharedMomentID,
		&story.AudioAssetID,
		&story.CreatedAt,
		&story.UpdatedAt,
	); err != nil {
		return stories.Story{}, err
	}
	story.Status = stories.Status(status)
	if err := json.Unmarshal(tags, &story.Tags); err != nil {
		return stories.Story{}, fmt.Errorf("decode tags: %w", err)
	}
	return story, nil
}
