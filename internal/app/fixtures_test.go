package app

import (
	"context"
	"sync"
	"time"

	"github.com/confkit/confkit/internal/domain"
)

// memStore satisfies DirectoryStore without a database.
type memStore struct {
	mu           sync.Mutex
	conferences  map[domain.ConferenceID]domain.Conference
	participants map[domain.ParticipantID]domain.Participant
	rooms        []domain.BreakoutRoom

	failNext error
}

func newMemStore() *memStore {
	return &memStore{
		conferences:  make(map[domain.ConferenceID]domain.Conference),
		participants: make(map[domain.ParticipantID]domain.Participant),
	}
}

func (m *memStore) takeErr() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memStore) SaveConference(ctx context.Context, c *domain.Conference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	m.conferences[c.ID] = *c
	return nil
}

func (m *memStore) GetConference(ctx context.Context, id domain.ConferenceID) (*domain.Conference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conferences[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "conference %s unknown", id)
	}
	return &c, nil
}

func (m *memStore) SaveParticipant(ctx context.Context, p *domain.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	m.participants[p.ID] = *p
	return nil
}

func (m *memStore) SaveParticipants(ctx context.Context, ps []*domain.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	for _, p := range ps {
		m.participants[p.ID] = *p
	}
	return nil
}

func (m *memStore) SaveRooms(ctx context.Context, rooms []*domain.BreakoutRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	m.rooms = m.rooms[:0]
	for _, r := range rooms {
		m.rooms = append(m.rooms, *r)
	}
	return nil
}

// busRecorder collects published events in order.
type busRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *busRecorder) Publish(e domain.Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

func (b *busRecorder) types() []domain.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.EventType, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

func (b *busRecorder) has(t domain.EventType) bool {
	for _, got := range b.types() {
		if got == t {
			return true
		}
	}
	return false
}

// testClock is a controllable time source.
type testClock struct {
	mu      sync.Mutex
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}

type urlStub struct{}

func (urlStub) ArtifactURL(conf domain.ConferenceID, started time.Time) string {
	return "https://recordings.test/" + string(conf)
}
