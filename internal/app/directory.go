package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/confkit/confkit/internal/domain"
)

// DirectoryStore adds the lookup the directory needs to revive a session
// for a conference whose live state was evicted.
type DirectoryStore interface {
	Store
	GetConference(ctx context.Context, id domain.ConferenceID) (*domain.Conference, error)
}

// Directory is the process-wide map from conference id to live session.
// It creates sessions on first activity and evicts them once the
// conference is over; it never mutates a session's internals.
type Directory struct {
	mu       sync.RWMutex
	sessions map[domain.ConferenceID]*Session

	ctx        context.Context
	store      DirectoryStore
	bus        Broadcaster
	recordings RecordingStore
	now        func() time.Time
}

func NewDirectory(ctx context.Context, store DirectoryStore, bus Broadcaster, recordings RecordingStore, now func() time.Time) *Directory {
	if now == nil {
		now = time.Now
	}
	return &Directory{
		sessions:   make(map[domain.ConferenceID]*Session),
		ctx:        ctx,
		store:      store,
		bus:        bus,
		recordings: recordings,
		now:        now,
	}
}

// ScheduleRequest is the host's conference setup.
type ScheduleRequest struct {
	Topic        string          `json:"topic"`
	HostID       domain.UserID   `json:"host_id"`
	Capacity     int             `json:"capacity"`
	Features     domain.Features `json:"features"`
	MuteOnEntry  bool            `json:"mute_on_entry"`
	Password     string          `json:"password"`
	ScheduledFor time.Time       `json:"scheduled_for"`
}

// Schedule creates and persists a conference and brings its session up.
func (d *Directory) Schedule(ctx context.Context, req ScheduleRequest) (domain.Conference, error) {
	conf, err := domain.NewConference(req.Topic, req.HostID, req.Capacity, req.Features)
	if err != nil {
		return domain.Conference{}, err
	}
	conf.MuteOnEntry = req.MuteOnEntry
	conf.ScheduledFor = req.ScheduledFor
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.Conference{}, err
		}
		conf.PasswordHash = string(hash)
	}
	if err := d.store.SaveConference(ctx, conf); err != nil {
		return domain.Conference{}, err
	}

	d.mu.Lock()
	d.sessions[conf.ID] = NewSession(d.ctx, conf, d.store, d.bus, d.recordings, d.now)
	d.mu.Unlock()

	log.Info().Str("module", "app.directory").Str("conf", string(conf.ID)).Str("host", string(req.HostID)).Msg("conference scheduled")
	return cloneConference(conf), nil
}

// Get resolves the live session, reviving it from the store when needed.
func (d *Directory) Get(ctx context.Context, id domain.ConferenceID) (*Session, error) {
	d.mu.RLock()
	s, ok := d.sessions[id]
	d.mu.RUnlock()
	if ok {
		return s, nil
	}

	conf, err := d.store.GetConference(ctx, id)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok = d.sessions[id]; ok {
		return s, nil
	}
	s = NewSession(d.ctx, conf, d.store, d.bus, d.recordings, d.now)
	d.sessions[id] = s
	log.Info().Str("module", "app.directory").Str("conf", string(id)).Msg("session revived")
	return s, nil
}

// Evict stops and drops the session if its conference is over.
func (d *Directory) Evict(ctx context.Context, id domain.ConferenceID) bool {
	d.mu.Lock()
	s, ok := d.sessions[id]
	d.mu.Unlock()
	if !ok || !s.Terminal(ctx) {
		return false
	}

	d.mu.Lock()
	delete(d.sessions, id)
	d.mu.Unlock()
	s.Stop()
	log.Info().Str("module", "app.directory").Str("conf", string(id)).Msg("session evicted")
	return true
}

// Sweep evicts every terminal session. Intended for a periodic ticker.
func (d *Directory) Sweep(ctx context.Context) int {
	d.mu.RLock()
	ids := make([]domain.ConferenceID, 0, len(d.sessions))
	for id := range d.sessions {
		ids = append(ids, id)
	}
	d.mu.RUnlock()

	n := 0
	for _, id := range ids {
		if d.Evict(ctx, id) {
			n++
		}
	}
	return n
}

// Len reports the number of live sessions.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}
