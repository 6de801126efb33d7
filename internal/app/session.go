package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/confkit/confkit/internal/domain"
)

// Store is the synchronous durability collaborator; each mutation commits
// through it before events are emitted.
type Store interface {
	SaveConference(ctx context.Context, c *domain.Conference) error
	SaveParticipant(ctx context.Context, p *domain.Participant) error
	SaveParticipants(ctx context.Context, ps []*domain.Participant) error
	SaveRooms(ctx context.Context, rooms []*domain.BreakoutRoom) error
}

// Broadcaster fans state-change notifications out to connected clients.
// Publish must not block the session loop.
type Broadcaster interface {
	Publish(e domain.Event)
}

// RecordingStore mints the artifact URL for a finished recording segment.
// The core never touches recording bytes.
type RecordingStore interface {
	ArtifactURL(conf domain.ConferenceID, started time.Time) string
}

type command struct {
	fn    func() error
	reply chan error
}

// Session is the aggregate root for one conference. A single goroutine owns
// the registry, room set, and arbiter; every mutation and query runs as a
// command on that goroutine, so compound invariants are always computed
// against one consistent snapshot. Different conferences never contend.
type Session struct {
	conf    *domain.Conference
	reg     *Registry
	rooms   *RoomSet
	arbiter *Arbiter

	store      Store
	bus        Broadcaster
	recordings RecordingStore
	now        func() time.Time

	cmds   chan command
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession starts the owning goroutine for the given conference.
func NewSession(parent context.Context, conf *domain.Conference, store Store, bus Broadcaster, recordings RecordingStore, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(parent)
	reg := NewRegistry()
	s := &Session{
		conf:       conf,
		reg:        reg,
		rooms:      NewRoomSet(conf.ID),
		arbiter:    NewArbiter(reg, now),
		store:      store,
		bus:        bus,
		recordings: recordings,
		now:        now,
		cmds:       make(chan command, 64),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case cmd := <-s.cmds:
			cmd.reply <- cmd.fn()
		}
	}
}

// Stop terminates the session loop. Pending callers get a closed-session
// error rather than hanging.
func (s *Session) Stop() {
	s.cancel()
	<-s.done
}

func (s *Session) do(ctx context.Context, fn func() error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return domain.E(domain.KindInvalidState, "conference session closed")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-s.done:
		return domain.E(domain.KindInvalidState, "conference session closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) emit(t domain.EventType, payload any) {
	s.bus.Publish(domain.Event{ConferenceID: s.conf.ID, Type: t, Payload: payload})
}

// requireHostUser guards lifecycle calls, which the host may issue before
// holding a participant record.
func (s *Session) requireHostUser(user domain.UserID) error {
	if user != s.conf.HostID {
		return domain.E(domain.KindPermissionDenied, "only the host may do this")
	}
	return nil
}

// requireActive resolves the caller's live membership.
func (s *Session) requireActive(user domain.UserID) (*domain.Participant, error) {
	p, ok := s.reg.ActiveByUser(user)
	if !ok {
		return nil, domain.E(domain.KindNotFound, "no active membership for user %s", user)
	}
	return p, nil
}

// ---- lifecycle ----

// Start moves the conference to InProgress. Host only, from Scheduled.
func (s *Session) Start(ctx context.Context, requester domain.UserID) error {
	return s.do(ctx, func() error {
		if err := s.requireHostUser(requester); err != nil {
			return err
		}
		if s.conf.Status != domain.StatusScheduled {
			return domain.E(domain.KindInvalidState, "cannot start a %s conference", s.conf.Status)
		}
		at := s.now()
		s.conf.Status = domain.StatusInProgress
		s.conf.StartedAt = &at
		if err := s.store.SaveConference(ctx, s.conf); err != nil {
			return err
		}
		log.Info().Str("module", "app.session").Str("conf", string(s.conf.ID)).Msg("conference started")
		s.emit(domain.EventConferenceStarted, cloneConference(s.conf))
		return nil
	})
}

// End terminates an in-progress conference, cascading over rooms, the
// share slot, recording, and every live membership.
func (s *Session) End(ctx context.Context, requester domain.UserID) error {
	return s.do(ctx, func() error {
		if err := s.requireHostUser(requester); err != nil {
			return err
		}
		if s.conf.Status != domain.StatusInProgress {
			return domain.E(domain.KindInvalidState, "cannot end a %s conference", s.conf.Status)
		}
		return s.finish(ctx, domain.StatusEnded, domain.EventConferenceEnded)
	})
}

// Cancel is reachable from any non-terminal state.
func (s *Session) Cancel(ctx context.Context, requester domain.UserID) error {
	return s.do(ctx, func() error {
		if err := s.requireHostUser(requester); err != nil {
			return err
		}
		if s.conf.Status.Terminal() {
			return domain.E(domain.KindInvalidState, "conference already %s", s.conf.Status)
		}
		return s.finish(ctx, domain.StatusCancelled, domain.EventConferenceCancelled)
	})
}

// finish applies the terminal cascade inside the session loop.
func (s *Session) finish(ctx context.Context, status domain.ConferenceStatus, event domain.EventType) error {
	at := s.now()

	var recStopped bool
	if s.conf.Recording.Active {
		if _, err := s.arbiter.stopRecording(s.conf); err == nil {
			recStopped = true
			if s.recordings != nil && s.conf.Recording.StartedAt != nil {
				s.conf.Recording.ArtifactURL = s.recordings.ArtifactURL(s.conf.ID, *s.conf.Recording.StartedAt)
			}
		}
	}
	roomsClosed := s.rooms.CloseOpen()

	var touched []*domain.Participant
	for _, p := range s.reg.All() {
		switch p.Admission {
		case domain.AdmissionJoined, domain.AdmissionInWaitingRoom:
			if _, ok := s.reg.MarkLeft(p.ID, at); ok {
				touched = append(touched, p)
			}
		}
	}

	s.conf.Status = status
	s.conf.EndedAt = &at

	if err := s.store.SaveConference(ctx, s.conf); err != nil {
		return err
	}
	if err := s.store.SaveParticipants(ctx, touched); err != nil {
		return err
	}
	if err := s.store.SaveRooms(ctx, s.rooms.All()); err != nil {
		return err
	}

	log.Info().Str("module", "app.session").Str("conf", string(s.conf.ID)).Str("status", string(status)).Msg("conference finished")
	if recStopped {
		s.emit(domain.EventRecordingStopped, cloneConference(s.conf).Recording)
	}
	if roomsClosed {
		s.emit(domain.EventBreakoutRoomsClosed, nil)
	}
	s.emit(event, cloneConference(s.conf))
	return nil
}

// SetLock toggles the lock flag. Host only.
func (s *Session) SetLock(ctx context.Context, requester domain.UserID, locked bool) error {
	return s.do(ctx, func() error {
		if err := s.requireHostUser(requester); err != nil {
			return err
		}
		if s.conf.Status.Terminal() {
			return domain.E(domain.KindInvalidState, "conference already %s", s.conf.Status)
		}
		s.conf.LockMeeting = locked
		if err := s.store.SaveConference(ctx, s.conf); err != nil {
			return err
		}
		s.emit(domain.EventConferenceLocked, locked)
		return nil
	})
}

// SetWaitingRoom toggles the waiting-room feature. Host only.
func (s *Session) SetWaitingRoom(ctx context.Context, requester domain.UserID, enabled bool) error {
	return s.do(ctx, func() error {
		if err := s.requireHostUser(requester); err != nil {
			return err
		}
		if s.conf.Status.Terminal() {
			return domain.E(domain.KindInvalidState, "conference already %s", s.conf.Status)
		}
		s.conf.Features.WaitingRoom = enabled
		if err := s.store.SaveConference(ctx, s.conf); err != nil {
			return err
		}
		s.emit(domain.EventWaitingRoomToggled, enabled)
		return nil
	})
}

// ---- admission ----

// JoinRequest carries the identity-provider claims for one join attempt.
// PreAuthorized marks invite-link callers who bypass lock and waiting room.
type JoinRequest struct {
	UserID        domain.UserID
	DisplayName   string
	Guest         bool
	Password      string
	PreAuthorized bool
}

// Join admits a caller into the conference, or into its waiting room.
func (s *Session) Join(ctx context.Context, req JoinRequest) (domain.Participant, error) {
	var out domain.Participant
	err := s.do(ctx, func() error {
		if s.conf.Status != domain.StatusInProgress {
			return domain.E(domain.KindInvalidState, "conference is %s", s.conf.Status)
		}
		if existing, ok := s.reg.ActiveByUser(req.UserID); ok {
			out = cloneParticipant(existing)
			return nil
		}
		if s.conf.PasswordHash != "" && req.UserID != s.conf.HostID {
			if bcrypt.CompareHashAndPassword([]byte(s.conf.PasswordHash), []byte(req.Password)) != nil {
				return domain.E(domain.KindAuthenticationFailed, "wrong password")
			}
		}
		if s.conf.LockMeeting && req.UserID != s.conf.HostID && !req.PreAuthorized {
			return domain.E(domain.KindConflict, "meeting is locked")
		}
		if s.conf.Capacity > 0 && s.reg.Admitted() >= s.conf.Capacity {
			return domain.E(domain.KindConflict, "conference is full")
		}

		role := domain.RoleAttendee
		switch {
		case req.UserID == s.conf.HostID:
			role = domain.RoleHost
		case req.Guest:
			role = domain.RoleGuest
		}
		p, err := domain.NewParticipant(s.conf.ID, req.UserID, req.DisplayName, role)
		if err != nil {
			return err
		}
		p.JoinedAt = s.now()
		p.AudioMuted = s.conf.MuteOnEntry
		if role == domain.RoleHost {
			p.Capabilities = domain.CoHostCapabilities
		}

		event := domain.EventParticipantJoined
		p.Admission = domain.AdmissionJoined
		if s.conf.Features.WaitingRoom && role != domain.RoleHost && !req.PreAuthorized {
			p.Admission = domain.AdmissionInWaitingRoom
			event = domain.EventParticipantWaiting
		}

		if err := s.store.SaveParticipant(ctx, p); err != nil {
			return err
		}
		s.reg.Add(p)
		out = cloneParticipant(p)
		log.Info().Str("module", "app.session").Str("conf", string(s.conf.ID)).Str("user", string(req.UserID)).Str("admission", string(p.Admission)).Msg("join")
		s.emit(event, out)
		return nil
	})
	return out, err
}

// Leave is idempotent; leaving twice is a no-op.
func (s *Session) Leave(ctx context.Context, requester domain.UserID) error {
	return s.do(ctx, func() error {
		p, ok := s.reg.ActiveByUser(requester)
		if !ok {
			return nil
		}
		wasSharing := p.ScreenSharing
		if _, changed := s.reg.MarkLeft(p.ID, s.now()); !changed {
			return nil
		}
		if err := s.store.SaveParticipant(ctx, p); err != nil {
			return err
		}
		if wasSharing {
			s.emit(domain.EventScreenShareStopped, cloneParticipant(p))
		}
		s.emit(domain.EventParticipantLeft, cloneParticipant(p))
		return nil
	})
}

// Remove expels the target. Removal is terminal for that membership.
func (s *Session) Remove(ctx context.Context, requester domain.UserID, target domain.ParticipantID) error {
	return s.do(ctx, func() error {
		req, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		tgt, ok := s.reg.Get(target)
		if !ok {
			return domain.E(domain.KindNotFound, "participant %s unknown", target)
		}
		if !Allows(req.Role, req.Capabilities, ActRemove, req.ID == target) {
			return domain.E(domain.KindPermissionDenied, "%s may not remove participants", req.Role)
		}
		wasSharing := tgt.ScreenSharing
		if _, changed := s.reg.MarkRemoved(target, s.now()); !changed {
			return domain.E(domain.KindInvalidState, "participant already %s", tgt.Admission)
		}
		if err := s.store.SaveParticipant(ctx, tgt); err != nil {
			return err
		}
		if wasSharing {
			s.emit(domain.EventScreenShareStopped, cloneParticipant(tgt))
		}
		s.emit(domain.EventParticipantRemoved, cloneParticipant(tgt))
		return nil
	})
}

// AdmitFromWaitingRoom moves a waiting participant into the session.
func (s *Session) AdmitFromWaitingRoom(ctx context.Context, requester domain.UserID, target domain.ParticipantID) (domain.Participant, error) {
	var out domain.Participant
	err := s.do(ctx, func() error {
		req, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		if !Allows(req.Role, req.Capabilities, ActAdmit, false) {
			return domain.E(domain.KindPermissionDenied, "%s may not admit participants", req.Role)
		}
		tgt, ok := s.reg.Get(target)
		if !ok {
			return domain.E(domain.KindNotFound, "participant %s unknown", target)
		}
		if tgt.Admission != domain.AdmissionInWaitingRoom {
			return domain.E(domain.KindInvalidState, "participant is %s, not waiting", tgt.Admission)
		}
		// JoinedAt stays at the waiting-room entry time so analytics see
		// when the user first arrived.
		tgt.Admission = domain.AdmissionJoined
		if err := s.store.SaveParticipant(ctx, tgt); err != nil {
			return err
		}
		out = cloneParticipant(tgt)
		s.emit(domain.EventParticipantAdmitted, out)
		return nil
	})
	return out, err
}

// ---- media / roles ----

// Mute and Unmute route through the registry's policy check: moderators may
// target anyone, everyone may target themselves.
func (s *Session) Mute(ctx context.Context, requester domain.UserID, target domain.ParticipantID) (domain.Participant, error) {
	return s.setMuted(ctx, requester, target, true, domain.EventAudioMuted)
}

func (s *Session) Unmute(ctx context.Context, requester domain.UserID, target domain.ParticipantID) (domain.Participant, error) {
	return s.setMuted(ctx, requester, target, false, domain.EventAudioUnmuted)
}

func (s *Session) setMuted(ctx context.Context, requester domain.UserID, target domain.ParticipantID, muted bool, event domain.EventType) (domain.Participant, error) {
	var out domain.Participant
	err := s.do(ctx, func() error {
		req, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		p, err := s.reg.SetMuted(req.ID, target, muted)
		if err != nil {
			return err
		}
		if err := s.store.SaveParticipant(ctx, p); err != nil {
			return err
		}
		out = cloneParticipant(p)
		s.emit(event, out)
		return nil
	})
	return out, err
}

// MuteAll mutes every joined participant in one sweep.
func (s *Session) MuteAll(ctx context.Context, requester domain.UserID) error {
	return s.do(ctx, func() error {
		req, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		muted, err := s.reg.MuteAll(req.ID)
		if err != nil {
			return err
		}
		if err := s.store.SaveParticipants(ctx, s.reg.Joined()); err != nil {
			return err
		}
		s.emit(domain.EventAllMuted, muted)
		return nil
	})
}

func (s *Session) SetVideo(ctx context.Context, requester domain.UserID, target domain.ParticipantID, off bool) (domain.Participant, error) {
	var out domain.Participant
	err := s.do(ctx, func() error {
		req, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		p, err := s.reg.SetVideo(req.ID, target, off)
		if err != nil {
			return err
		}
		if err := s.store.SaveParticipant(ctx, p); err != nil {
			return err
		}
		out = cloneParticipant(p)
		s.emit(domain.EventVideoToggled, out)
		return nil
	})
	return out, err
}

func (s *Session) SetHandRaised(ctx context.Context, requester domain.UserID, target domain.ParticipantID, raised bool) (domain.Participant, error) {
	event := domain.EventHandLowered
	if raised {
		event = domain.EventHandRaised
	}
	var out domain.Participant
	err := s.do(ctx, func() error {
		req, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		p, err := s.reg.SetHandRaised(req.ID, target, raised)
		if err != nil {
			return err
		}
		if err := s.store.SaveParticipant(ctx, p); err != nil {
			return err
		}
		out = cloneParticipant(p)
		s.emit(event, out)
		return nil
	})
	return out, err
}

// PromoteToCoHost grants the moderation bundle. Host only, idempotent.
func (s *Session) PromoteToCoHost(ctx context.Context, requester domain.UserID, target domain.ParticipantID) (domain.Participant, error) {
	var out domain.Participant
	err := s.do(ctx, func() error {
		req, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		p, err := s.reg.PromoteToCoHost(req.ID, target)
		if err != nil {
			return err
		}
		if err := s.store.SaveParticipant(ctx, p); err != nil {
			return err
		}
		out = cloneParticipant(p)
		s.emit(domain.EventCoHostPromoted, out)
		return nil
	})
	return out, err
}

func (s *Session) UpdateCapabilities(ctx context.Context, requester domain.UserID, target domain.ParticipantID, patch CapabilityPatch) (domain.Participant, error) {
	var out domain.Participant
	err := s.do(ctx, func() error {
		req, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		p, err := s.reg.UpdateCapabilities(req.ID, target, patch)
		if err != nil {
			return err
		}
		if err := s.store.SaveParticipant(ctx, p); err != nil {
			return err
		}
		out = cloneParticipant(p)
		s.emit(domain.EventCapabilitiesUpdated, out)
		return nil
	})
	return out, err
}

// ---- breakout rooms ----

// OpenRooms starts a fresh generation, detaching everyone from the old one.
func (s *Session) OpenRooms(ctx context.Context, requester domain.UserID, count, capacity int) ([]domain.BreakoutRoom, error) {
	var out []domain.BreakoutRoom
	err := s.do(ctx, func() error {
		req, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		if !Allows(req.Role, req.Capabilities, ActOpenRooms, false) {
			return domain.E(domain.KindPermissionDenied, "%s may not open rooms", req.Role)
		}
		if !s.conf.Features.BreakoutRooms {
			return domain.E(domain.KindConflict, "breakout rooms disabled for this conference")
		}
		if s.conf.Status != domain.StatusInProgress {
			return domain.E(domain.KindInvalidState, "conference is %s", s.conf.Status)
		}
		if count < 1 {
			return domain.E(domain.KindConflict, "room count must be positive")
		}
		for _, p := range s.reg.All() {
			p.BreakoutRoom = nil
		}
		created := s.rooms.OpenGeneration(count, capacity)
		if err := s.store.SaveRooms(ctx, s.rooms.All()); err != nil {
			return err
		}
		if err := s.store.SaveParticipants(ctx, s.reg.All()); err != nil {
			return err
		}
		for _, room := range created {
			out = append(out, *room)
		}
		log.Info().Str("module", "app.session").Str("conf", string(s.conf.ID)).Int("rooms", count).Msg("breakout rooms opened")
		s.emit(domain.EventBreakoutRoomsOpened, out)
		return nil
	})
	return out, err
}

// AssignParticipant moves the target into an open room of the current
// generation.
func (s *Session) AssignParticipant(ctx context.Context, requester domain.UserID, target domain.ParticipantID, roomNumber int) error {
	return s.do(ctx, func() error {
		req, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		if !Allows(req.Role, req.Capabilities, ActAssignRoom, false) {
			return domain.E(domain.KindPermissionDenied, "%s may not assign rooms", req.Role)
		}
		room, ok := s.rooms.Open(roomNumber)
		if !ok {
			return domain.E(domain.KindConflict, "room %d is not open", roomNumber)
		}
		tgt, ok := s.reg.Get(target)
		if !ok {
			return domain.E(domain.KindNotFound, "participant %s unknown", target)
		}
		if tgt.Admission != domain.AdmissionJoined {
			return domain.E(domain.KindInvalidState, "participant is %s", tgt.Admission)
		}
		if room.Capacity > 0 && s.roomCount(roomNumber) >= room.Capacity {
			return domain.E(domain.KindConflict, "room %d is full", roomNumber)
		}
		n := roomNumber
		tgt.BreakoutRoom = &n
		if err := s.store.SaveParticipant(ctx, tgt); err != nil {
			return err
		}
		s.emit(domain.EventBreakoutAssigned, cloneParticipant(tgt))
		return nil
	})
}

// CloseRooms ends the open generation and returns everyone to the main
// session.
func (s *Session) CloseRooms(ctx context.Context, requester domain.UserID) error {
	return s.do(ctx, func() error {
		req, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		if !Allows(req.Role, req.Capabilities, ActCloseRooms, false) {
			return domain.E(domain.KindPermissionDenied, "%s may not close rooms", req.Role)
		}
		if !s.rooms.AnyOpen() {
			return domain.E(domain.KindConflict, "no rooms are open")
		}
		s.rooms.CloseOpen()
		for _, p := range s.reg.All() {
			p.BreakoutRoom = nil
		}
		if err := s.store.SaveRooms(ctx, s.rooms.All()); err != nil {
			return err
		}
		if err := s.store.SaveParticipants(ctx, s.reg.All()); err != nil {
			return err
		}
		s.emit(domain.EventBreakoutRoomsClosed, nil)
		return nil
	})
}

// ReturnToMain is the self-service escape hatch out of a breakout room.
func (s *Session) ReturnToMain(ctx context.Context, requester domain.UserID) error {
	return s.do(ctx, func() error {
		p, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		if p.BreakoutRoom == nil {
			return nil
		}
		p.BreakoutRoom = nil
		if err := s.store.SaveParticipant(ctx, p); err != nil {
			return err
		}
		s.emit(domain.EventReturnedToMain, cloneParticipant(p))
		return nil
	})
}

// ---- exclusive resources ----

// StartScreenShare takes the share slot, displacing any current holder.
func (s *Session) StartScreenShare(ctx context.Context, requester domain.UserID) (domain.Participant, error) {
	var out domain.Participant
	err := s.do(ctx, func() error {
		p, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		cur, displaced, err := s.arbiter.StartScreenShare(s.conf, p.ID)
		if err != nil {
			return err
		}
		saved := []*domain.Participant{cur}
		if displaced != nil {
			saved = append(saved, displaced)
		}
		if err := s.store.SaveParticipants(ctx, saved); err != nil {
			return err
		}
		if displaced != nil {
			s.emit(domain.EventScreenShareStopped, cloneParticipant(displaced))
		}
		out = cloneParticipant(cur)
		s.emit(domain.EventScreenShareStarted, out)
		return nil
	})
	return out, err
}

// StopScreenShare clears the slot only for the current holder; otherwise a
// no-op.
func (s *Session) StopScreenShare(ctx context.Context, requester domain.UserID) error {
	return s.do(ctx, func() error {
		p, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		p, stopped, err := s.arbiter.StopScreenShare(p.ID)
		if err != nil || !stopped {
			return err
		}
		if err := s.store.SaveParticipant(ctx, p); err != nil {
			return err
		}
		s.emit(domain.EventScreenShareStopped, cloneParticipant(p))
		return nil
	})
}

func (s *Session) StartRecording(ctx context.Context, requester domain.UserID) error {
	return s.do(ctx, func() error {
		p, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		if err := s.arbiter.StartRecording(s.conf, p.ID); err != nil {
			return err
		}
		if err := s.store.SaveConference(ctx, s.conf); err != nil {
			return err
		}
		s.emit(domain.EventRecordingStarted, cloneConference(s.conf).Recording)
		return nil
	})
}

// StopRecording ends the segment and records the artifact URL.
func (s *Session) StopRecording(ctx context.Context, requester domain.UserID) (time.Duration, error) {
	var dur time.Duration
	err := s.do(ctx, func() error {
		p, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		started := s.conf.Recording.StartedAt
		dur, err = s.arbiter.StopRecording(s.conf, p.ID)
		if err != nil {
			return err
		}
		if s.recordings != nil && started != nil {
			s.conf.Recording.ArtifactURL = s.recordings.ArtifactURL(s.conf.ID, *started)
		}
		if err := s.store.SaveConference(ctx, s.conf); err != nil {
			return err
		}
		s.emit(domain.EventRecordingStopped, cloneConference(s.conf).Recording)
		return nil
	})
	return dur, err
}

func (s *Session) PauseRecording(ctx context.Context, requester domain.UserID) error {
	return s.do(ctx, func() error {
		p, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		if err := s.arbiter.PauseRecording(s.conf, p.ID); err != nil {
			return err
		}
		if err := s.store.SaveConference(ctx, s.conf); err != nil {
			return err
		}
		s.emit(domain.EventRecordingPaused, nil)
		return nil
	})
}

func (s *Session) ResumeRecording(ctx context.Context, requester domain.UserID) error {
	return s.do(ctx, func() error {
		p, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		if err := s.arbiter.ResumeRecording(s.conf, p.ID); err != nil {
			return err
		}
		if err := s.store.SaveConference(ctx, s.conf); err != nil {
			return err
		}
		s.emit(domain.EventRecordingResumed, nil)
		return nil
	})
}

// ---- chat ----

// ChatMessage is relayed through the broadcaster; chat has no storage here.
type ChatMessage struct {
	From domain.ParticipantID `json:"from"`
	Name string               `json:"name"`
	Text string               `json:"text"`
	At   time.Time            `json:"at"`
}

func (s *Session) SendChat(ctx context.Context, requester domain.UserID, text string) error {
	return s.do(ctx, func() error {
		p, err := s.requireActive(requester)
		if err != nil {
			return err
		}
		if !s.conf.Features.Chat {
			return domain.E(domain.KindConflict, "chat disabled for this conference")
		}
		if p.Admission != domain.AdmissionJoined {
			return domain.E(domain.KindInvalidState, "participant is %s", p.Admission)
		}
		s.emit(domain.EventChatMessage, ChatMessage{From: p.ID, Name: p.DisplayName, Text: text, At: s.now()})
		return nil
	})
}

// ---- queries ----

// RoomView is a breakout room plus its live occupancy.
type RoomView struct {
	domain.BreakoutRoom
	ParticipantCount int `json:"participant_count"`
}

// Snapshot is a consistent read of the whole conference.
type Snapshot struct {
	Conference   domain.Conference    `json:"conference"`
	Participants []domain.Participant `json:"participants"`
	OpenRooms    []RoomView           `json:"open_rooms"`
}

// Snapshot returns a deep copy taken on the session loop, so readers never
// observe a half-applied mutation.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() error {
		snap.Conference = cloneConference(s.conf)
		for _, p := range s.reg.Joined() {
			snap.Participants = append(snap.Participants, cloneParticipant(p))
		}
		snap.OpenRooms = s.roomViews()
		return nil
	})
	return snap, err
}

// Participants returns memberships for analytics; soft-retained leavers
// included when all is set.
func (s *Session) Participants(ctx context.Context, all bool) ([]domain.Participant, error) {
	var out []domain.Participant
	err := s.do(ctx, func() error {
		src := s.reg.Joined()
		if all {
			src = s.reg.All()
		}
		for _, p := range src {
			out = append(out, cloneParticipant(p))
		}
		return nil
	})
	return out, err
}

// BreakoutRooms reports the open generation with occupancy counts.
func (s *Session) BreakoutRooms(ctx context.Context) ([]RoomView, error) {
	var out []RoomView
	err := s.do(ctx, func() error {
		out = s.roomViews()
		return nil
	})
	return out, err
}

// Terminal reports whether the session reached a terminal lifecycle state.
func (s *Session) Terminal(ctx context.Context) bool {
	terminal := false
	_ = s.do(ctx, func() error {
		terminal = s.conf.Status.Terminal()
		return nil
	})
	return terminal
}

func (s *Session) roomViews() []RoomView {
	var out []RoomView
	for _, room := range s.rooms.OpenRooms() {
		out = append(out, RoomView{BreakoutRoom: *room, ParticipantCount: s.roomCount(room.Number)})
	}
	return out
}

func (s *Session) roomCount(number int) int {
	n := 0
	for _, p := range s.reg.Joined() {
		if p.BreakoutRoom != nil && *p.BreakoutRoom == number {
			n++
		}
	}
	return n
}

// ---- copies ----

// cloneParticipant copies a participant, re-pointing nested pointers so the
// copy never aliases loop-owned state.
func cloneParticipant(p *domain.Participant) domain.Participant {
	out := *p
	if p.BreakoutRoom != nil {
		n := *p.BreakoutRoom
		out.BreakoutRoom = &n
	}
	if p.LeftAt != nil {
		t := *p.LeftAt
		out.LeftAt = &t
	}
	return out
}

func cloneConference(c *domain.Conference) domain.Conference {
	out := *c
	if c.StartedAt != nil {
		t := *c.StartedAt
		out.StartedAt = &t
	}
	if c.EndedAt != nil {
		t := *c.EndedAt
		out.EndedAt = &t
	}
	if c.Recording.StartedAt != nil {
		t := *c.Recording.StartedAt
		out.Recording.StartedAt = &t
	}
	if c.Recording.PausedAt != nil {
		t := *c.Recording.PausedAt
		out.Recording.PausedAt = &t
	}
	return out
}
