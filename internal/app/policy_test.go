package app

import (
	"testing"

	"github.com/confkit/confkit/internal/domain"
)

func TestAllowsHostDoesEverything(t *testing.T) {
	actions := []Action{
		ActStart, ActEnd, ActCancel, ActSetLock, ActSetWaitingRoom, ActSetPassword,
		ActLeave, ActRemove, ActAdmit,
		ActMute, ActUnmute, ActMuteAll, ActSetVideo, ActRaiseHand, ActLowerHand,
		ActPromoteCoHost, ActUpdateCapabilities,
		ActOpenRooms, ActAssignRoom, ActCloseRooms, ActReturnToMain,
		ActStartScreenShare, ActStopScreenShare, ActStartRecording, ActStopRecording,
		ActSendChat,
	}
	for _, a := range actions {
		if !Allows(domain.RoleHost, domain.Capabilities{}, a, false) {
			t.Errorf("host denied action %d", a)
		}
	}
}

func TestAllowsMatrix(t *testing.T) {
	none := domain.Capabilities{}
	tests := []struct {
		name   string
		role   domain.Role
		caps   domain.Capabilities
		action Action
		self   bool
		want   bool
	}{
		{"cohost cannot end", domain.RoleCoHost, domain.CoHostCapabilities, ActEnd, false, false},
		{"cohost cannot cancel", domain.RoleCoHost, domain.CoHostCapabilities, ActCancel, false, false},
		{"cohost cannot promote", domain.RoleCoHost, domain.CoHostCapabilities, ActPromoteCoHost, false, false},
		{"cohost cannot change password", domain.RoleCoHost, domain.CoHostCapabilities, ActSetPassword, false, false},
		{"cohost cannot lock", domain.RoleCoHost, domain.CoHostCapabilities, ActSetLock, false, false},
		{"cohost cannot open rooms", domain.RoleCoHost, domain.CoHostCapabilities, ActOpenRooms, false, false},

		{"cohost removes", domain.RoleCoHost, domain.CoHostCapabilities, ActRemove, false, true},
		{"cohost admits", domain.RoleCoHost, domain.CoHostCapabilities, ActAdmit, false, true},
		{"cohost mutes others", domain.RoleCoHost, domain.CoHostCapabilities, ActMute, false, true},
		{"cohost mutes all", domain.RoleCoHost, domain.CoHostCapabilities, ActMuteAll, false, true},
		{"cohost lowers any hand", domain.RoleCoHost, domain.CoHostCapabilities, ActLowerHand, false, true},
		{"cohost updates capabilities", domain.RoleCoHost, domain.CoHostCapabilities, ActUpdateCapabilities, false, true},
		{"cohost shares screen", domain.RoleCoHost, domain.CoHostCapabilities, ActStartScreenShare, true, true},
		{"cohost records", domain.RoleCoHost, domain.CoHostCapabilities, ActStartRecording, true, true},

		{"attendee mutes self", domain.RoleAttendee, none, ActMute, true, true},
		{"attendee unmutes self", domain.RoleAttendee, none, ActUnmute, true, true},
		{"attendee cannot mute others", domain.RoleAttendee, none, ActMute, false, false},
		{"attendee cannot mute all", domain.RoleAttendee, none, ActMuteAll, false, false},
		{"attendee raises own hand", domain.RoleAttendee, none, ActRaiseHand, true, true},
		{"attendee lowers own hand", domain.RoleAttendee, none, ActLowerHand, true, true},
		{"attendee cannot lower other hands", domain.RoleAttendee, none, ActLowerHand, false, false},
		{"attendee leaves", domain.RoleAttendee, none, ActLeave, true, true},
		{"attendee returns to main", domain.RoleAttendee, none, ActReturnToMain, true, true},
		{"attendee chats", domain.RoleAttendee, none, ActSendChat, true, true},
		{"attendee cannot remove", domain.RoleAttendee, none, ActRemove, false, false},
		{"attendee cannot admit", domain.RoleAttendee, none, ActAdmit, false, false},
		{"attendee cannot end", domain.RoleAttendee, none, ActEnd, false, false},

		{"attendee shares with grant", domain.RoleAttendee, domain.Capabilities{ShareScreen: true}, ActStartScreenShare, true, true},
		{"attendee cannot share without grant", domain.RoleAttendee, none, ActStartScreenShare, true, false},
		{"attendee records with grant", domain.RoleAttendee, domain.Capabilities{Record: true}, ActStartRecording, true, true},
		{"attendee cannot record without grant", domain.RoleAttendee, none, ActStartRecording, true, false},

		{"guest mutes self", domain.RoleGuest, none, ActMute, true, true},
		{"guest raises own hand", domain.RoleGuest, none, ActRaiseHand, true, true},
		{"guest cannot moderate", domain.RoleGuest, none, ActRemove, false, false},
		{"guest cannot share without grant", domain.RoleGuest, none, ActStartScreenShare, true, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Allows(tc.role, tc.caps, tc.action, tc.self); got != tc.want {
				t.Errorf("Allows(%s, %+v, %d, self=%v) = %v, want %v",
					tc.role, tc.caps, tc.action, tc.self, got, tc.want)
			}
		})
	}
}

func TestAllowsDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		if Allows(domain.RoleAttendee, domain.Capabilities{}, ActMuteAll, false) {
			t.Fatal("decision changed across calls")
		}
	}
}
