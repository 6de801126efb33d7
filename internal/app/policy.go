package app

import "github.com/confkit/confkit/internal/domain"

// Action identifies one operation for authorization purposes.
type Action int

const (
	ActStart Action = iota
	ActEnd
	ActCancel
	ActSetLock
	ActSetWaitingRoom
	ActSetPassword

	ActLeave
	ActRemove
	ActAdmit

	ActMute
	ActUnmute
	ActMuteAll
	ActSetVideo
	ActRaiseHand
	ActLowerHand
	ActPromoteCoHost
	ActUpdateCapabilities

	ActOpenRooms
	ActAssignRoom
	ActCloseRooms
	ActReturnToMain

	ActStartScreenShare
	ActStopScreenShare
	ActStartRecording
	ActStopRecording

	ActSendChat
)

// Allows is the pure authorization decision. Deterministic and side-effect
// free so the whole (role x action) matrix can be unit-tested.
//
// Priority order: host may do anything; co-host may moderate except the
// destructive conference-level actions reserved to the host; every
// participant may act on themselves for media-level actions; everything
// else is denied.
func Allows(role domain.Role, caps domain.Capabilities, action Action, self bool) bool {
	if role == domain.RoleHost {
		return true
	}

	switch action {
	// Reserved to the host alone.
	case ActStart, ActEnd, ActCancel, ActSetLock, ActSetWaitingRoom,
		ActSetPassword, ActPromoteCoHost,
		ActOpenRooms, ActAssignRoom, ActCloseRooms:
		return false

	// Moderation surface shared with co-hosts.
	case ActRemove, ActAdmit, ActMuteAll, ActUpdateCapabilities:
		return role.Moderator()

	case ActMute, ActUnmute, ActLowerHand:
		return role.Moderator() || self

	// Self-service actions any participant keeps.
	case ActLeave, ActRaiseHand, ActSetVideo, ActReturnToMain, ActSendChat:
		return self

	// Exclusive resources: moderators always, others on granted capability.
	case ActStartScreenShare, ActStopScreenShare:
		return role.Moderator() || (self && caps.ShareScreen)
	case ActStartRecording, ActStopRecording:
		return role.Moderator() || caps.Record
	}
	return false
}
