package continuity

import "time"

type Role string

const (
	RoleParticipant Role = "participant"
	RoleAgent       Role = "agent"
)

type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Moment sources. Conversation moments are recorded sessions; voice_story
// moments are published story snapshots.
const (
	SourceConversation = "conversation"
	SourceVoiceStory   = "voice_story"
)

// Moment is one recorded conversation or a shared story snapshot.
type Moment struct {
	ID            string     `json:"id"`
	FamilyID      string     `json:"family_id"`
	ParticipantID string     `json:"participant_id"`
	Source        string     `json:"source"`
	Title         string     `json:"title,omitempty"`
	Summary       string     `json:"summary,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	Turns         []Turn     `json:"turns,omitempty"`
	AudioAssetID  string     `json:"audio_asset_id,omitempty"`
	SharedAt      *time.Time `json:"shared_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"-"`
}

func (m Moment) Clone() Moment {
	out := m
	out.Tags = append([]string(nil), m.Tags...)
	out.Turns = append([]Turn(nil), m.Turns...)
	if m.SharedAt != nil {
		t := *m.SharedAt
		out.SharedAt = &t
	}
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		out.DeletedAt = &t
	}
	return out
}

func (m Moment) Deleted() bool { return m.DeletedAt != nil }
