package app

import (
	"testing"
	"time"

	"github.com/confkit/confkit/internal/domain"
)

func arbiterFixture(t *testing.T) (*Arbiter, *Registry, *domain.Conference, *testClock) {
	t.Helper()
	conf, err := domain.NewConference("retro", "host", 0, domain.Features{ScreenShare: true, Recording: true})
	if err != nil {
		t.Fatalf("NewConference: %v", err)
	}
	conf.Status = domain.StatusInProgress
	reg := NewRegistry()
	clock := newTestClock()
	return NewArbiter(reg, clock.Now), reg, conf, clock
}

func TestArbiterScreenShare(t *testing.T) {
	arb, reg, conf, _ := arbiterFixture(t)
	host := addParticipant(t, reg, "host", domain.RoleHost)
	a := addParticipant(t, reg, "a", domain.RoleAttendee)
	a.Capabilities.ShareScreen = true

	cur, displaced, err := arb.StartScreenShare(conf, host.ID)
	if err != nil {
		t.Fatalf("StartScreenShare: %v", err)
	}
	if displaced != nil || cur.ID != host.ID {
		t.Fatalf("unexpected first share: cur=%v displaced=%v", cur, displaced)
	}

	cur, displaced, err = arb.StartScreenShare(conf, a.ID)
	if err != nil {
		t.Fatalf("hand-off: %v", err)
	}
	if displaced == nil || displaced.ID != host.ID {
		t.Fatal("previous holder not displaced")
	}
	if holder, ok := arb.Holder(); !ok || holder.ID != a.ID {
		t.Fatal("holder not handed off")
	}
	if host.ScreenSharing {
		t.Fatal("two holders at once")
	}

	t.Run("restart by the holder keeps the slot", func(t *testing.T) {
		_, displaced, err := arb.StartScreenShare(conf, a.ID)
		if err != nil || displaced != nil {
			t.Fatalf("restart: displaced=%v err=%v", displaced, err)
		}
	})

	t.Run("stop by non-holder is a no-op", func(t *testing.T) {
		if _, stopped, err := arb.StopScreenShare(host.ID); err != nil || stopped {
			t.Fatalf("stopped=%v err=%v", stopped, err)
		}
		if _, ok := arb.Holder(); !ok {
			t.Fatal("holder lost")
		}
	})

	t.Run("feature toggle gates the slot", func(t *testing.T) {
		conf.Features.ScreenShare = false
		if _, _, err := arb.StartScreenShare(conf, host.ID); !domain.IsKind(err, domain.KindConflict) {
			t.Fatalf("expected Conflict, got %v", err)
		}
	})
}

func TestArbiterRecordingClock(t *testing.T) {
	arb, reg, conf, clock := arbiterFixture(t)
	host := addParticipant(t, reg, "host", domain.RoleHost)

	if err := arb.StartRecording(conf, host.ID); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	started := *conf.Recording.StartedAt

	clock.Advance(2 * time.Minute)
	if err := arb.PauseRecording(conf, host.ID); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if got := *conf.Recording.StartedAt; !got.Equal(started) {
		t.Fatal("pause altered the start timestamp")
	}
	clock.Advance(5 * time.Minute)
	if err := arb.ResumeRecording(conf, host.ID); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	clock.Advance(1 * time.Minute)

	dur, err := arb.StopRecording(conf, host.ID)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if dur != 3*time.Minute {
		t.Fatalf("duration = %v, want 3m", dur)
	}
	if conf.Recording.Active || conf.Recording.Paused {
		t.Fatal("recording state not cleared")
	}
}

func TestArbiterRecordingStopWhilePaused(t *testing.T) {
	arb, reg, conf, clock := arbiterFixture(t)
	host := addParticipant(t, reg, "host", domain.RoleHost)

	if err := arb.StartRecording(conf, host.ID); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	clock.Advance(4 * time.Minute)
	if err := arb.PauseRecording(conf, host.ID); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	clock.Advance(10 * time.Minute)

	dur, err := arb.StopRecording(conf, host.ID)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if dur != 4*time.Minute {
		t.Fatalf("duration = %v, want 4m (tail pause excluded)", dur)
	}
}

func TestArbiterRecordingGuards(t *testing.T) {
	arb, reg, conf, _ := arbiterFixture(t)
	host := addParticipant(t, reg, "host", domain.RoleHost)
	att := addParticipant(t, reg, "att", domain.RoleAttendee)

	if err := arb.StartRecording(conf, att.ID); !domain.IsKind(err, domain.KindPermissionDenied) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
	if err := arb.PauseRecording(conf, host.ID); !domain.IsKind(err, domain.KindInvalidState) {
		t.Fatalf("expected InvalidState for pause while stopped, got %v", err)
	}
	if err := arb.ResumeRecording(conf, host.ID); !domain.IsKind(err, domain.KindInvalidState) {
		t.Fatalf("expected InvalidState for resume while stopped, got %v", err)
	}
	if _, err := arb.StopRecording(conf, host.ID); !domain.IsKind(err, domain.KindConflict) {
		t.Fatalf("expected Conflict for stop while stopped, got %v", err)
	}
}
