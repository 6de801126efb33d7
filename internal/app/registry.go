package app

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/confkit/confkit/internal/domain"
)

// MuteAllIncludesRequester pins the sweep policy: the requester's own entry
// is muted like any other joined participant.
const MuteAllIncludesRequester = true

// CapabilityPatch is a partial update of capability flags; nil fields are
// left untouched.
type CapabilityPatch struct {
	ShareScreen   *bool `json:"share_screen,omitempty"`
	Record        *bool `json:"record,omitempty"`
	UseWhiteboard *bool `json:"use_whiteboard,omitempty"`
}

// Registry owns the participant set of one conference. It is mutated only
// from the owning session loop and needs no locking of its own.
type Registry struct {
	byID   map[domain.ParticipantID]*domain.Participant
	byUser map[domain.UserID]domain.ParticipantID
	order  []domain.ParticipantID
}

func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[domain.ParticipantID]*domain.Participant),
		byUser: make(map[domain.UserID]domain.ParticipantID),
	}
}

// Add registers a fresh membership and makes it the user's active one.
func (r *Registry) Add(p *domain.Participant) {
	r.byID[p.ID] = p
	r.byUser[p.UserID] = p.ID
	r.order = append(r.order, p.ID)
}

func (r *Registry) Get(id domain.ParticipantID) (*domain.Participant, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// ActiveByUser resolves the user's current membership, skipping memberships
// already terminated by leave or removal.
func (r *Registry) ActiveByUser(uid domain.UserID) (*domain.Participant, bool) {
	id, ok := r.byUser[uid]
	if !ok {
		return nil, false
	}
	p := r.byID[id]
	if p.Admission == domain.AdmissionLeft || p.Admission == domain.AdmissionRemoved {
		return nil, false
	}
	return p, true
}

// All returns every membership in join order, soft-retained ones included.
func (r *Registry) All() []*domain.Participant {
	out := make([]*domain.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Joined returns the participants currently in the live session.
func (r *Registry) Joined() []*domain.Participant {
	out := make([]*domain.Participant, 0, len(r.order))
	for _, id := range r.order {
		if p := r.byID[id]; p.Admission == domain.AdmissionJoined {
			out = append(out, p)
		}
	}
	return out
}

// Admitted counts memberships occupying a capacity slot (waiting included).
func (r *Registry) Admitted() int {
	n := 0
	for _, p := range r.byID {
		if p.Admission == domain.AdmissionJoined || p.Admission == domain.AdmissionInWaitingRoom {
			n++
		}
	}
	return n
}

func (r *Registry) Host() (*domain.Participant, bool) {
	for _, id := range r.order {
		if p := r.byID[id]; p.Role == domain.RoleHost {
			return p, true
		}
	}
	return nil, false
}

// resolve looks up requester and target and runs the policy check.
func (r *Registry) resolve(requester, target domain.ParticipantID, action Action) (*domain.Participant, *domain.Participant, error) {
	req, ok := r.byID[requester]
	if !ok {
		return nil, nil, domain.E(domain.KindNotFound, "participant %s unknown", requester)
	}
	tgt, ok := r.byID[target]
	if !ok {
		return nil, nil, domain.E(domain.KindNotFound, "participant %s unknown", target)
	}
	if !Allows(req.Role, req.Capabilities, action, requester == target) {
		return nil, nil, domain.E(domain.KindPermissionDenied, "%s may not perform this action", req.Role)
	}
	return req, tgt, nil
}

// SetMuted applies a mute or unmute to the target after the policy check.
func (r *Registry) SetMuted(requester, target domain.ParticipantID, muted bool) (*domain.Participant, error) {
	action := ActMute
	if !muted {
		action = ActUnmute
	}
	_, tgt, err := r.resolve(requester, target, action)
	if err != nil {
		return nil, err
	}
	tgt.AudioMuted = muted
	return tgt, nil
}

// MuteAll sweeps every joined participant in one consistent pass and
// returns the ids actually muted.
func (r *Registry) MuteAll(requester domain.ParticipantID) ([]domain.ParticipantID, error) {
	req, ok := r.byID[requester]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "participant %s unknown", requester)
	}
	if !Allows(req.Role, req.Capabilities, ActMuteAll, false) {
		return nil, domain.E(domain.KindPermissionDenied, "%s may not mute all", req.Role)
	}
	var muted []domain.ParticipantID
	for _, id := range r.order {
		p := r.byID[id]
		if p.Admission != domain.AdmissionJoined {
			continue
		}
		if !MuteAllIncludesRequester && p.ID == requester {
			continue
		}
		p.AudioMuted = true
		muted = append(muted, p.ID)
	}
	log.Info().Str("module", "app.registry").Str("requester", string(requester)).Int("muted", len(muted)).Msg("mute all sweep")
	return muted, nil
}

func (r *Registry) SetVideo(requester, target domain.ParticipantID, off bool) (*domain.Participant, error) {
	_, tgt, err := r.resolve(requester, target, ActSetVideo)
	if err != nil {
		return nil, err
	}
	tgt.VideoOff = off
	return tgt, nil
}

// SetHandRaised raises or lowers a hand. Raising is self-only; moderators
// may force-lower any hand.
func (r *Registry) SetHandRaised(requester, target domain.ParticipantID, raised bool) (*domain.Participant, error) {
	action := ActLowerHand
	if raised {
		action = ActRaiseHand
	}
	_, tgt, err := r.resolve(requester, target, action)
	if err != nil {
		return nil, err
	}
	tgt.HandRaised = raised
	return tgt, nil
}

// PromoteToCoHost grants the co-host bundle. Idempotent.
func (r *Registry) PromoteToCoHost(requester, target domain.ParticipantID) (*domain.Participant, error) {
	_, tgt, err := r.resolve(requester, target, ActPromoteCoHost)
	if err != nil {
		return nil, err
	}
	if tgt.Role == domain.RoleHost {
		return nil, domain.E(domain.KindConflict, "host cannot be promoted")
	}
	tgt.Role = domain.RoleCoHost
	tgt.Capabilities = domain.CoHostCapabilities
	log.Info().Str("module", "app.registry").Str("target", string(target)).Msg("promoted to co-host")
	return tgt, nil
}

// UpdateCapabilities applies a partial capability update to the target.
func (r *Registry) UpdateCapabilities(requester, target domain.ParticipantID, patch CapabilityPatch) (*domain.Participant, error) {
	_, tgt, err := r.resolve(requester, target, ActUpdateCapabilities)
	if err != nil {
		return nil, err
	}
	if patch.ShareScreen != nil {
		tgt.Capabilities.ShareScreen = *patch.ShareScreen
	}
	if patch.Record != nil {
		tgt.Capabilities.Record = *patch.Record
	}
	if patch.UseWhiteboard != nil {
		tgt.Capabilities.UseWhiteboard = *patch.UseWhiteboard
	}
	return tgt, nil
}

// MarkLeft terminates the membership as a voluntary leave. Idempotent:
// already-terminated memberships are returned unchanged.
func (r *Registry) MarkLeft(id domain.ParticipantID, at time.Time) (*domain.Participant, bool) {
	p, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	if p.Admission == domain.AdmissionLeft || p.Admission == domain.AdmissionRemoved {
		return p, false
	}
	p.Admission = domain.AdmissionLeft
	p.LeftAt = &at
	p.HandRaised = false
	p.ScreenSharing = false
	p.BreakoutRoom = nil
	return p, true
}

// MarkRemoved terminates the membership by moderator action.
func (r *Registry) MarkRemoved(id domain.ParticipantID, at time.Time) (*domain.Participant, bool) {
	p, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	if p.Admission == domain.AdmissionLeft || p.Admission == domain.AdmissionRemoved {
		return p, false
	}
	p.Admission = domain.AdmissionRemoved
	p.LeftAt = &at
	p.HandRaised = false
	p.ScreenSharing = false
	p.BreakoutRoom = nil
	return p, true
}
