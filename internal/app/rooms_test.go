package app

import "testing"

func TestRoomSetGenerations(t *testing.T) {
	rs := NewRoomSet("conf-1")

	first := rs.OpenGeneration(3, 5)
	if len(first) != 3 {
		t.Fatalf("created %d rooms, want 3", len(first))
	}
	for i, room := range first {
		if room.Number != i+1 {
			t.Errorf("room number = %d, want %d", room.Number, i+1)
		}
		if !room.IsOpen || room.Generation != 1 || room.Capacity != 5 {
			t.Errorf("unexpected room: %+v", room)
		}
	}

	second := rs.OpenGeneration(2, 0)
	if len(second) != 2 || second[0].Generation != 2 {
		t.Fatalf("unexpected second generation: %+v", second)
	}
	for _, room := range first {
		if room.IsOpen {
			t.Error("previous generation left open")
		}
	}
	if got := len(rs.OpenRooms()); got != 2 {
		t.Fatalf("open rooms = %d, want 2", got)
	}
	if got := len(rs.All()); got != 5 {
		t.Fatalf("total rooms = %d, want 5 across generations", got)
	}
}

func TestRoomSetLookup(t *testing.T) {
	rs := NewRoomSet("conf-1")
	if _, ok := rs.Open(1); ok {
		t.Fatal("found a room before any generation opened")
	}
	rs.OpenGeneration(2, 0)

	if room, ok := rs.Open(2); !ok || room.Number != 2 {
		t.Fatalf("Open(2) = %+v, %v", room, ok)
	}
	if _, ok := rs.Open(3); ok {
		t.Fatal("found a room outside the generation")
	}

	if !rs.CloseOpen() {
		t.Fatal("CloseOpen reported nothing closed")
	}
	if rs.AnyOpen() {
		t.Fatal("rooms open after close")
	}
	if rs.CloseOpen() {
		t.Fatal("second CloseOpen closed something")
	}
}
