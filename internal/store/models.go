// Package store persists conference facts through gorm. It is the
// durability collaborator of the session loop, never a second writer of
// live state.
package store

import (
	"time"

	"github.com/confkit/confkit/internal/domain"
)

type ConferenceRecord struct {
	ID           string    `gorm:"primarykey;size:36" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Topic        string    `gorm:"size:128;not null" json:"topic"`
	HostID       string    `gorm:"size:36;not null;index" json:"host_id"`
	Status       string    `gorm:"size:16;not null" json:"status"`
	Capacity     int       `gorm:"not null;default:0" json:"capacity"`
	LockMeeting  bool      `gorm:"not null;default:false" json:"lock_meeting"`
	MuteOnEntry  bool      `gorm:"not null;default:false" json:"mute_on_entry"`
	PasswordHash string    `gorm:"size:128" json:"-"`

	Features FeaturesRecord `gorm:"embedded;embeddedPrefix:feature_" json:"features"`

	ScheduledFor time.Time  `json:"scheduled_for"`
	StartedAt    *time.Time `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at"`

	RecordingActive    bool       `gorm:"not null;default:false" json:"recording_active"`
	RecordingStartedBy string     `gorm:"size:36" json:"recording_started_by"`
	RecordingStartedAt *time.Time `json:"recording_started_at"`
	RecordingURL       string     `gorm:"size:512" json:"recording_url"`
}

type FeaturesRecord struct {
	Chat          bool `gorm:"not null;default:true" json:"chat"`
	ScreenShare   bool `gorm:"not null;default:true" json:"screen_share"`
	Recording     bool `gorm:"not null;default:false" json:"recording"`
	Whiteboard    bool `gorm:"not null;default:false" json:"whiteboard"`
	BreakoutRooms bool `gorm:"not null;default:false" json:"breakout_rooms"`
	WaitingRoom   bool `gorm:"not null;default:false" json:"waiting_room"`
}

func (ConferenceRecord) TableName() string { return "conferences" }

type ParticipantRecord struct {
	ID           string    `gorm:"primarykey;size:36" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ConferenceID string    `gorm:"size:36;not null;index" json:"conference_id"`
	UserID       string    `gorm:"size:36;not null;index" json:"user_id"`
	DisplayName  string    `gorm:"size:64;not null" json:"display_name"`
	Role         string    `gorm:"size:16;not null" json:"role"`
	Admission    string    `gorm:"size:24;not null" json:"admission"`

	AudioMuted    bool `gorm:"not null;default:false" json:"audio_muted"`
	VideoOff      bool `gorm:"not null;default:false" json:"video_off"`
	HandRaised    bool `gorm:"not null;default:false" json:"hand_raised"`
	ScreenSharing bool `gorm:"not null;default:false" json:"screen_sharing"`

	CanShareScreen   bool `gorm:"not null;default:false" json:"can_share_screen"`
	CanRecord        bool `gorm:"not null;default:false" json:"can_record"`
	CanUseWhiteboard bool `gorm:"not null;default:false" json:"can_use_whiteboard"`

	BreakoutRoom *int `json:"breakout_room"`

	JoinedAt time.Time  `json:"joined_at"`
	LeftAt   *time.Time `json:"left_at"`
}

func (ParticipantRecord) TableName() string { return "participants" }

type BreakoutRoomRecord struct {
	ConferenceID string    `gorm:"primarykey;size:36" json:"conference_id"`
	Generation   int       `gorm:"primarykey" json:"generation"`
	Number       int       `gorm:"primarykey" json:"number"`
	Name         string    `gorm:"size:64;not null" json:"name"`
	Capacity     int       `gorm:"not null;default:0" json:"capacity"`
	IsOpen       bool      `gorm:"not null;default:false" json:"is_open"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (BreakoutRoomRecord) TableName() string { return "breakout_rooms" }

func toConferenceRecord(c *domain.Conference) ConferenceRecord {
	return ConferenceRecord{
		ID:           string(c.ID),
		Topic:        c.Topic,
		HostID:       string(c.HostID),
		Status:       string(c.Status),
		Capacity:     c.Capacity,
		LockMeeting:  c.LockMeeting,
		MuteOnEntry:  c.MuteOnEntry,
		PasswordHash: c.PasswordHash,
		Features: FeaturesRecord{
			Chat:          c.Features.Chat,
			ScreenShare:   c.Features.ScreenShare,
			Recording:     c.Features.Recording,
			Whiteboard:    c.Features.Whiteboard,
			BreakoutRooms: c.Features.BreakoutRooms,
			WaitingRoom:   c.Features.WaitingRoom,
		},
		ScheduledFor:       c.ScheduledFor,
		StartedAt:          c.StartedAt,
		EndedAt:            c.EndedAt,
		RecordingActive:    c.Recording.Active,
		RecordingStartedBy: string(c.Recording.StartedByID),
		RecordingStartedAt: c.Recording.StartedAt,
		RecordingURL:       c.Recording.ArtifactURL,
	}
}

func (r ConferenceRecord) toDomain() *domain.Conference {
	return &domain.Conference{
		ID:           domain.ConferenceID(r.ID),
		Topic:        r.Topic,
		HostID:       domain.UserID(r.HostID),
		Status:       domain.ConferenceStatus(r.Status),
		Capacity:     r.Capacity,
		LockMeeting:  r.LockMeeting,
		MuteOnEntry:  r.MuteOnEntry,
		PasswordHash: r.PasswordHash,
		Features: domain.Features{
			Chat:          r.Features.Chat,
			ScreenShare:   r.Features.ScreenShare,
			Recording:     r.Features.Recording,
			Whiteboard:    r.Features.Whiteboard,
			BreakoutRooms: r.Features.BreakoutRooms,
			WaitingRoom:   r.Features.WaitingRoom,
		},
		ScheduledFor: r.ScheduledFor,
		StartedAt:    r.StartedAt,
		EndedAt:      r.EndedAt,
		Recording: domain.RecordingState{
			Active:      r.RecordingActive,
			StartedByID: domain.UserID(r.RecordingStartedBy),
			StartedAt:   r.RecordingStartedAt,
			ArtifactURL: r.RecordingURL,
		},
	}
}

func toParticipantRecord(p *domain.Participant) ParticipantRecord {
	return ParticipantRecord{
		ID:               string(p.ID),
		ConferenceID:     string(p.ConferenceID),
		UserID:           string(p.UserID),
		DisplayName:      p.DisplayName,
		Role:             string(p.Role),
		Admission:        string(p.Admission),
		AudioMuted:       p.AudioMuted,
		VideoOff:         p.VideoOff,
		HandRaised:       p.HandRaised,
		ScreenSharing:    p.ScreenSharing,
		CanShareScreen:   p.Capabilities.ShareScreen,
		CanRecord:        p.Capabilities.Record,
		CanUseWhiteboard: p.Capabilities.UseWhiteboard,
		BreakoutRoom:     p.BreakoutRoom,
		JoinedAt:         p.JoinedAt,
		LeftAt:           p.LeftAt,
	}
}

func toRoomRecord(b *domain.BreakoutRoom) BreakoutRoomRecord {
	return BreakoutRoomRecord{
		ConferenceID: string(b.ConferenceID),
		Generation:   b.Generation,
		Number:       b.Number,
		Name:         b.Name,
		Capacity:     b.Capacity,
		IsOpen:       b.IsOpen,
	}
}
