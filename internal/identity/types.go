package identity

import "time"

type EnrollmentStatus string

const (
	EnrollmentNone     EnrollmentStatus = "none"
	EnrollmentPending  EnrollmentStatus = "pending"
	EnrollmentEnrolled EnrollmentStatus = "enrolled"
)

// Participant is a family member the service can recognize by voice.
// PendingPCM holds accumulated enrollment audio while an on-device
// enrollment is pending; Profile holds the backend artifact — the remote
// profile reference while a cloud enrollment is in progress, the scorable
// profile once enrolled. The two are never set at the same time.
type Participant struct {
	ID            string           `json:"id"`
	FamilyID      string           `json:"family_id"`
	Label         string           `json:"label"`
	Status        EnrollmentStatus `json:"enrollment_status"`
	EnrollPercent float64          `json:"enroll_percent,omitempty"`
	PendingPCM    []int16          `json:"-"`
	Profile       []byte           `json:"-"`
	PINHash       string           `json:"-"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (p Participant) Clone() Participant {
	out := p
	out.PendingPCM = append([]int16(nil), p.PendingPCM...)
	out.Profile = append([]byte(nil), p.Profile...)
	return out
}

func (p Participant) HasPIN() bool { return p.PINHash != "" }
