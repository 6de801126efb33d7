package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const MaxDisplayNameLen = 64

var (
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrDisplayNameTooLong = errors.New("display name too long")
)

type (
	UserID        string
	ParticipantID string
)

// Role is a tagged variant rather than loose booleans so the authorization
// policy can match exhaustively.
type Role string

const (
	RoleHost     Role = "host"
	RoleCoHost   Role = "cohost"
	RoleAttendee Role = "attendee"
	RoleGuest    Role = "guest"
)

// Moderator reports whether the role carries moderation rights.
func (r Role) Moderator() bool {
	return r == RoleHost || r == RoleCoHost
}

type AdmissionStatus string

const (
	AdmissionInWaitingRoom AdmissionStatus = "in_waiting_room"
	AdmissionJoined        AdmissionStatus = "joined"
	AdmissionLeft          AdmissionStatus = "left"
	AdmissionRemoved       AdmissionStatus = "removed"
)

// Capabilities are the ad hoc grants a host may hand out on top of a role.
type Capabilities struct {
	ShareScreen   bool `json:"share_screen"`
	Record        bool `json:"record"`
	UseWhiteboard bool `json:"use_whiteboard"`
}

// CoHostCapabilities is the bundle granted on promotion.
var CoHostCapabilities = Capabilities{ShareScreen: true, Record: true, UseWhiteboard: true}

// Participant is a user's membership record within one conference.
// Removal is terminal: a re-join creates a fresh record.
type Participant struct {
	ID           ParticipantID   `json:"id"`
	ConferenceID ConferenceID    `json:"conference_id"`
	UserID       UserID          `json:"user_id"`
	DisplayName  string          `json:"display_name"`
	Role         Role            `json:"role"`
	Admission    AdmissionStatus `json:"admission"`

	AudioMuted    bool `json:"audio_muted"`
	VideoOff      bool `json:"video_off"`
	HandRaised    bool `json:"hand_raised"`
	ScreenSharing bool `json:"screen_sharing"`

	Capabilities Capabilities `json:"capabilities"`

	// BreakoutRoom is nil in the main session; when set it must reference
	// an open room of the same conference.
	BreakoutRoom *int `json:"breakout_room,omitempty"`

	JoinedAt time.Time  `json:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty"`
}

func NewParticipant(conf ConferenceID, user UserID, name string, role Role) (*Participant, error) {
	if len(name) == 0 {
		return nil, ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	return &Participant{
		ID:           ParticipantID(uuid.NewString()),
		ConferenceID: conf,
		UserID:       user,
		DisplayName:  name,
		Role:         role,
	}, nil
}
