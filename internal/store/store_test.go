package store

import (
	"context"
	"testing"
	"time"

	"github.com/confkit/confkit/internal/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	return s
}

func testConference(t *testing.T) *domain.Conference {
	t.Helper()
	conf, err := domain.NewConference("kickoff", "host-user", 25, domain.Features{
		Chat:        true,
		ScreenShare: true,
		WaitingRoom: true,
	})
	if err != nil {
		t.Fatalf("NewConference: %v", err)
	}
	return conf
}

func TestStoreConferenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	conf := testConference(t)
	conf.MuteOnEntry = true
	conf.PasswordHash = "$2a$10$hash"

	if err := s.SaveConference(ctx, conf); err != nil {
		t.Fatalf("SaveConference: %v", err)
	}

	got, err := s.GetConference(ctx, conf.ID)
	if err != nil {
		t.Fatalf("GetConference: %v", err)
	}
	if got.Topic != conf.Topic || got.HostID != conf.HostID || got.Capacity != conf.Capacity {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
	if got.Features != conf.Features {
		t.Fatalf("features mismatch: %+v vs %+v", got.Features, conf.Features)
	}
	if !got.MuteOnEntry || got.PasswordHash != conf.PasswordHash {
		t.Fatalf("flags lost: %+v", got)
	}

	t.Run("save is an upsert", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Second)
		conf.Status = domain.StatusInProgress
		conf.StartedAt = &now
		if err := s.SaveConference(ctx, conf); err != nil {
			t.Fatalf("second SaveConference: %v", err)
		}
		got, err := s.GetConference(ctx, conf.ID)
		if err != nil {
			t.Fatalf("GetConference: %v", err)
		}
		if got.Status != domain.StatusInProgress || got.StartedAt == nil {
			t.Fatalf("update lost: %+v", got)
		}
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		if _, err := s.GetConference(ctx, "missing"); !domain.IsKind(err, domain.KindNotFound) {
			t.Fatalf("expected NotFound, got %v", err)
		}
	})
}

func TestStoreParticipants(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	conf := testConference(t)
	if err := s.SaveConference(ctx, conf); err != nil {
		t.Fatalf("SaveConference: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Second)
	var ps []*domain.Participant
	for i, name := range []string{"Alice", "Bob"} {
		p, err := domain.NewParticipant(conf.ID, domain.UserID(name), name, domain.RoleAttendee)
		if err != nil {
			t.Fatalf("NewParticipant: %v", err)
		}
		p.Admission = domain.AdmissionJoined
		p.JoinedAt = base.Add(time.Duration(i) * time.Minute)
		ps = append(ps, p)
	}
	if err := s.SaveParticipants(ctx, ps); err != nil {
		t.Fatalf("SaveParticipants: %v", err)
	}

	// Mutate one and save again through the single-record path.
	ps[0].AudioMuted = true
	n := 1
	ps[0].BreakoutRoom = &n
	if err := s.SaveParticipant(ctx, ps[0]); err != nil {
		t.Fatalf("SaveParticipant: %v", err)
	}

	recs, err := s.Participants(ctx, conf.ID)
	if err != nil {
		t.Fatalf("Participants: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].DisplayName != "Alice" || recs[1].DisplayName != "Bob" {
		t.Fatalf("join order not preserved: %s, %s", recs[0].DisplayName, recs[1].DisplayName)
	}
	if !recs[0].AudioMuted || recs[0].BreakoutRoom == nil || *recs[0].BreakoutRoom != 1 {
		t.Fatalf("upsert lost mutation: %+v", recs[0])
	}

	t.Run("empty batch is a no-op", func(t *testing.T) {
		if err := s.SaveParticipants(ctx, nil); err != nil {
			t.Fatalf("SaveParticipants(nil): %v", err)
		}
	})
}

func TestStoreRooms(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	conf := testConference(t)

	rooms := []*domain.BreakoutRoom{
		{ConferenceID: conf.ID, Generation: 1, Number: 1, Name: "Room 1", IsOpen: true},
		{ConferenceID: conf.ID, Generation: 1, Number: 2, Name: "Room 2", IsOpen: true},
	}
	if err := s.SaveRooms(ctx, rooms); err != nil {
		t.Fatalf("SaveRooms: %v", err)
	}

	// Close the generation and upsert it back.
	for _, r := range rooms {
		r.IsOpen = false
	}
	if err := s.SaveRooms(ctx, rooms); err != nil {
		t.Fatalf("SaveRooms close: %v", err)
	}

	var recs []BreakoutRoomRecord
	if err := s.db.WithContext(ctx).Where("conference_id = ?", string(conf.ID)).Find(&recs).Error; err != nil {
		t.Fatalf("query rooms: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d rooms, want 2", len(recs))
	}
	for _, rec := range recs {
		if rec.IsOpen {
			t.Errorf("room %d still open after upsert", rec.Number)
		}
	}
}
