// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const MaxTopicLen = 128

var (
	ErrTopicEmpty   = errors.New("topic empty")
	ErrTopicTooLong = errors.New("topic too long")
)

type ConferenceID string

// ConferenceStatus moves monotonically along
// Scheduled -> InProgress -> {Ended|Cancelled}.
type ConferenceStatus string

const (
	StatusScheduled  ConferenceStatus = "scheduled"
	StatusInProgress ConferenceStatus = "in_progress"
	StatusEnded      ConferenceStatus = "ended"
	StatusCancelled  ConferenceStatus = "cancelled"
)

// Terminal reports whether no further lifecycle transition is possible.
func (s ConferenceStatus) Terminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// Features are the per-conference toggles the host picks at scheduling time.
type Features struct {
	Chat          bool `json:"chat"`
	ScreenShare   bool `json:"screen_share"`
	Recording     bool `json:"recording"`
	Whiteboard    bool `json:"whiteboard"`
	BreakoutRooms bool `json:"breakout_rooms"`
	WaitingRoom   bool `json:"waiting_room"`
}

type Conference struct {
	ID           ConferenceID     `json:"id"`
	Topic        string           `json:"topic"`
	HostID       UserID           `json:"host_id"`
	Status       ConferenceStatus `json:"status"`
	Capacity     int              `json:"capacity"`
	Features     Features         `json:"features"`
	LockMeeting  bool             `json:"lock_meeting"`
	MuteOnEntry  bool             `json:"mute_on_entry"`
	PasswordHash string           `json:"-"`

	ScheduledFor time.Time  `json:"scheduled_for"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`

	Recording RecordingState `json:"recording_state"`
}

// RecordingState is conference-level because the recording belongs to the
// meeting, not to the participant who pressed the button.
type RecordingState struct {
	Active      bool       `json:"active"`
	Paused      bool       `json:"paused"`
	StartedByID UserID     `json:"started_by,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	PausedAt    *time.Time `json:"-"`
	// PausedTotal accumulates completed pause intervals so duration
	// accounting can exclude them.
	PausedTotal time.Duration `json:"-"`
	ArtifactURL string        `json:"artifact_url,omitempty"`
}

// NewConference avoids raw struct literals in adapters and keeps
// construction obvious.
func NewConference(topic string, hostID UserID, capacity int, features Features) (*Conference, error) {
	if len(topic) == 0 {
		return nil, ErrTopicEmpty
	}
	if len(topic) > MaxTopicLen {
		return nil, ErrTopicTooLong
	}
	return &Conference{
		ID:       ConferenceID(uuid.NewString()),
		Topic:    topic,
		HostID:   hostID,
		Status:   StatusScheduled,
		Capacity: capacity,
		Features: features,
	}, nil
}
