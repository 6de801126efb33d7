package app

import (
	"fmt"

	"github.com/confkit/confkit/internal/domain"
)

// RoomSet owns every breakout-room generation of one conference and keeps
// the invariant that at most one generation is open. Like the registry it
// is only touched from the owning session loop.
type RoomSet struct {
	conf       domain.ConferenceID
	generation int
	rooms      []*domain.BreakoutRoom
}

func NewRoomSet(conf domain.ConferenceID) *RoomSet {
	return &RoomSet{conf: conf}
}

// OpenGeneration closes any open rooms and creates a fresh generation
// numbered 1..count. Closed rooms stay for history.
func (rs *RoomSet) OpenGeneration(count, capacity int) []*domain.BreakoutRoom {
	rs.closeOpen()
	rs.generation++
	created := make([]*domain.BreakoutRoom, 0, count)
	for n := 1; n <= count; n++ {
		room := &domain.BreakoutRoom{
			ConferenceID: rs.conf,
			Generation:   rs.generation,
			Number:       n,
			Name:         fmt.Sprintf("Room %d", n),
			Capacity:     capacity,
			IsOpen:       true,
		}
		rs.rooms = append(rs.rooms, room)
		created = append(created, room)
	}
	return created
}

// CloseOpen closes the current generation and reports whether any room
// was actually open.
func (rs *RoomSet) CloseOpen() bool {
	return rs.closeOpen() > 0
}

func (rs *RoomSet) closeOpen() int {
	n := 0
	for _, room := range rs.rooms {
		if room.IsOpen {
			room.IsOpen = false
			n++
		}
	}
	return n
}

// Open returns the open room with the given number, if one exists.
func (rs *RoomSet) Open(number int) (*domain.BreakoutRoom, bool) {
	for _, room := range rs.rooms {
		if room.IsOpen && room.Number == number {
			return room, true
		}
	}
	return nil, false
}

// OpenRooms lists the current generation in room-number order.
func (rs *RoomSet) OpenRooms() []*domain.BreakoutRoom {
	out := make([]*domain.BreakoutRoom, 0)
	for _, room := range rs.rooms {
		if room.IsOpen {
			out = append(out, room)
		}
	}
	return out
}

// AnyOpen reports whether a generation is currently open.
func (rs *RoomSet) AnyOpen() bool {
	for _, room := range rs.rooms {
		if room.IsOpen {
			return true
		}
	}
	return false
}

// All returns every room across generations.
func (rs *RoomSet) All() []*domain.BreakoutRoom {
	out := make([]*domain.BreakoutRoom, len(rs.rooms))
	copy(out, rs.rooms)
	return out
}
