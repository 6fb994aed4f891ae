package stories

import (
	"time"

	"github.com/hearthside/hearth/internal/continuity"
)

type Status string

const (
	StatusDraft  Status = "draft"
	StatusFinal  Status = "final"
	StatusShared Status = "shared"
)

// DefaultTitle is used when no title can be derived from the narrative.
const DefaultTitle = "Voice story"

// Story is a curated narrative in the draft → final → shared lifecycle.
// SharedMomentID links a shared story to its published snapshot.
type Story struct {
	ID             string    `json:"id"`
	FamilyID       string    `json:"family_id"`
	ParticipantID  string    `json:"participant_id"`
	SourceMomentID string    `json:"source_moment_id,omitempty"`
	Title          string    `json:"title"`
	Summary        string    `json:"summary,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Text           string    `json:"text,omitempty"`
	Status         Status    `json:"status"`
	SharedMomentID string    `json:"shared_moment_id,omitempty"`
	AudioAssetID   string    `json:"audio_asset_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (s Story) Clone() Story {
	out := s
	out.Tags = append([]string(nil), s.Tags...)
	return out
}

// SharedStory pairs a published snapshot with the viewer's listened state.
type SharedStory struct {
	Moment   continuity.Moment `json:"moment"`
	Listened bool              `json:"listened"`
}
