package app

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/confkit/confkit/internal/domain"
)

// PauseStopsDurationClock pins the recording policy: paused intervals are
// excluded from the recorded duration.
const PauseStopsDurationClock = true

// Arbiter enforces the single-holder invariants of one conference. The
// screen-share holder is derived by scanning the registry rather than kept
// as separate state, so there is a single source of truth; the scan is safe
// because the arbiter only runs inside the session loop.
type Arbiter struct {
	reg *Registry
	now func() time.Time
}

func NewArbiter(reg *Registry, now func() time.Time) *Arbiter {
	if now == nil {
		now = time.Now
	}
	return &Arbiter{reg: reg, now: now}
}

// Holder returns the current screen-share holder, if any.
func (a *Arbiter) Holder() (*domain.Participant, bool) {
	for _, p := range a.reg.Joined() {
		if p.ScreenSharing {
			return p, true
		}
	}
	return nil, false
}

// StartScreenShare hands the share slot to the requester. A holder already
// presenting loses the slot rather than blocking the new share; the
// displaced participant is returned so an event can be emitted for them.
func (a *Arbiter) StartScreenShare(conf *domain.Conference, requester domain.ParticipantID) (cur, displaced *domain.Participant, err error) {
	if !conf.Features.ScreenShare {
		return nil, nil, domain.E(domain.KindConflict, "screen share disabled for this conference")
	}
	if conf.Status != domain.StatusInProgress {
		return nil, nil, domain.E(domain.KindInvalidState, "conference is %s", conf.Status)
	}
	p, ok := a.reg.Get(requester)
	if !ok {
		return nil, nil, domain.E(domain.KindNotFound, "participant %s unknown", requester)
	}
	if p.Admission != domain.AdmissionJoined {
		return nil, nil, domain.E(domain.KindInvalidState, "participant is %s", p.Admission)
	}
	if !Allows(p.Role, p.Capabilities, ActStartScreenShare, true) {
		return nil, nil, domain.E(domain.KindPermissionDenied, "no screen share capability")
	}
	if holder, ok := a.Holder(); ok && holder.ID != p.ID {
		holder.ScreenSharing = false
		displaced = holder
		log.Info().Str("module", "app.arbiter").Str("from", string(holder.ID)).Str("to", string(p.ID)).Msg("screen share hand-off")
	}
	p.ScreenSharing = true
	return p, displaced, nil
}

// StopScreenShare clears the slot only when the requester holds it.
func (a *Arbiter) StopScreenShare(requester domain.ParticipantID) (*domain.Participant, bool, error) {
	p, ok := a.reg.Get(requester)
	if !ok {
		return nil, false, domain.E(domain.KindNotFound, "participant %s unknown", requester)
	}
	if !p.ScreenSharing {
		return p, false, nil
	}
	p.ScreenSharing = false
	return p, true, nil
}

// StartRecording flips the conference-level recording state. Unlike the
// share slot, a second start is a conflict, not a hand-off.
func (a *Arbiter) StartRecording(conf *domain.Conference, requester domain.ParticipantID) error {
	if !conf.Features.Recording {
		return domain.E(domain.KindConflict, "recording disabled for this conference")
	}
	if conf.Status != domain.StatusInProgress {
		return domain.E(domain.KindInvalidState, "conference is %s", conf.Status)
	}
	p, ok := a.reg.Get(requester)
	if !ok {
		return domain.E(domain.KindNotFound, "participant %s unknown", requester)
	}
	if !Allows(p.Role, p.Capabilities, ActStartRecording, true) {
		return domain.E(domain.KindPermissionDenied, "no recording capability")
	}
	if conf.Recording.Active {
		return domain.E(domain.KindConflict, "already recording")
	}
	start := a.now()
	conf.Recording = domain.RecordingState{
		Active:      true,
		StartedByID: p.UserID,
		StartedAt:   &start,
	}
	return nil
}

// StopRecording ends the active segment and returns its effective duration,
// paused intervals excluded.
func (a *Arbiter) StopRecording(conf *domain.Conference, requester domain.ParticipantID) (time.Duration, error) {
	p, ok := a.reg.Get(requester)
	if !ok {
		return 0, domain.E(domain.KindNotFound, "participant %s unknown", requester)
	}
	if !Allows(p.Role, p.Capabilities, ActStopRecording, true) {
		return 0, domain.E(domain.KindPermissionDenied, "no recording capability")
	}
	return a.stopRecording(conf)
}

// stopRecording is the unauthorized inner stop, shared with the lifecycle
// cascade on End/Cancel.
func (a *Arbiter) stopRecording(conf *domain.Conference) (time.Duration, error) {
	rec := &conf.Recording
	if !rec.Active {
		return 0, domain.E(domain.KindConflict, "not recording")
	}
	end := a.now()
	if rec.Paused && rec.PausedAt != nil {
		rec.PausedTotal += end.Sub(*rec.PausedAt)
	}
	dur := end.Sub(*rec.StartedAt)
	if PauseStopsDurationClock {
		dur -= rec.PausedTotal
	}
	rec.Active = false
	rec.Paused = false
	rec.PausedAt = nil
	return dur, nil
}

// PauseRecording suspends capture without touching the start timestamp.
func (a *Arbiter) PauseRecording(conf *domain.Conference, requester domain.ParticipantID) error {
	p, ok := a.reg.Get(requester)
	if !ok {
		return domain.E(domain.KindNotFound, "participant %s unknown", requester)
	}
	if !Allows(p.Role, p.Capabilities, ActStopRecording, true) {
		return domain.E(domain.KindPermissionDenied, "no recording capability")
	}
	rec := &conf.Recording
	if !rec.Active {
		return domain.E(domain.KindInvalidState, "not recording")
	}
	if rec.Paused {
		return domain.E(domain.KindInvalidState, "already paused")
	}
	at := a.now()
	rec.Paused = true
	rec.PausedAt = &at
	return nil
}

// ResumeRecording restarts capture and banks the completed pause interval.
func (a *Arbiter) ResumeRecording(conf *domain.Conference, requester domain.ParticipantID) error {
	p, ok := a.reg.Get(requester)
	if !ok {
		return domain.E(domain.KindNotFound, "participant %s unknown", requester)
	}
	if !Allows(p.Role, p.Capabilities, ActStopRecording, true) {
		return domain.E(domain.KindPermissionDenied, "no recording capability")
	}
	rec := &conf.Recording
	if !rec.Active || !rec.Paused {
		return domain.E(domain.KindInvalidState, "not paused")
	}
	if rec.PausedAt != nil {
		rec.PausedTotal += a.now().Sub(*rec.PausedAt)
	}
	rec.Paused = false
	rec.PausedAt = nil
	return nil
}
