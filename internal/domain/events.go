package domain

// EventType names a state change pushed to connected clients.
type EventType string

const (
	EventConferenceStarted   EventType = "conference_started"
	EventConferenceEnded     EventType = "conference_ended"
	EventConferenceCancelled EventType = "conference_cancelled"
	EventConferenceLocked    EventType = "conference_locked"
	EventWaitingRoomToggled  EventType = "waiting_room_toggled"

	EventParticipantWaiting  EventType = "participant_waiting"
	EventParticipantJoined   EventType = "participant_joined"
	EventParticipantAdmitted EventType = "participant_admitted"
	EventParticipantLeft     EventType = "participant_left"
	EventParticipantRemoved  EventType = "participant_removed"

	EventAudioMuted          EventType = "audio_muted"
	EventAudioUnmuted        EventType = "audio_unmuted"
	EventAllMuted            EventType = "all_muted"
	EventVideoToggled        EventType = "video_toggled"
	EventHandRaised          EventType = "hand_raised"
	EventHandLowered         EventType = "hand_lowered"
	EventCoHostPromoted      EventType = "cohost_promoted"
	EventCapabilitiesUpdated EventType = "capabilities_updated"

	EventBreakoutRoomsOpened EventType = "breakout_rooms_opened"
	EventBreakoutRoomsClosed EventType = "breakout_rooms_closed"
	EventBreakoutAssigned    EventType = "breakout_assigned"
	EventReturnedToMain      EventType = "returned_to_main"

	EventScreenShareStarted EventType = "screen_share_started"
	EventScreenShareStopped EventType = "screen_share_stopped"
	EventRecordingStarted   EventType = "recording_started"
	EventRecordingStopped   EventType = "recording_stopped"
	EventRecordingPaused    EventType = "recording_paused"
	EventRecordingResumed   EventType = "recording_resumed"

	EventChatMessage EventType = "chat_message"
)

// Event is one ordered notification for one conference. The core produces
// events; delivery is the broadcaster's problem.
type Event struct {
	ConferenceID ConferenceID `json:"conference_id"`
	Type         EventType    `json:"type"`
	Payload      any          `json:"payload,omitempty"`
}
