package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/confkit/confkit/internal/adapters/events"
	"github.com/confkit/confkit/internal/app"
	"github.com/confkit/confkit/internal/domain"
)

type Handlers struct {
	Dir *app.Directory
	Hub *events.Hub
	Ctx context.Context
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func statusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindPermissionDenied:
		return http.StatusForbidden
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindInvalidState:
		return http.StatusUnprocessableEntity
	case domain.KindAuthenticationFailed:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"error": err.Error()})
}

func userID(c *gin.Context) domain.UserID {
	return domain.UserID(c.GetString("user_id"))
}

// session resolves the addressed conference; a nil return means the
// response is already written.
func (h *Handlers) session(c *gin.Context) *app.Session {
	s, err := h.Dir.Get(c.Request.Context(), domain.ConferenceID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return nil
	}
	return s
}

func (h *Handlers) Schedule(c *gin.Context) {
	var req app.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	req.HostID = userID(c)
	conf, err := h.Dir.Schedule(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, conf)
}

func (h *Handlers) Snapshot(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}
	snap, err := s.Snapshot(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handlers) Participants(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}
	all := c.Query("all") == "1"
	ps, err := s.Participants(c.Request.Context(), all)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": ps})
}

func (h *Handlers) BreakoutRooms(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}
	rooms, err := s.BreakoutRooms(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// Events upgrades to a websocket subscribed to the conference's ordered
// event stream.
func (h *Handlers) Events(c *gin.Context) {
	id := domain.ConferenceID(c.Param("id"))
	if _, err := h.Dir.Get(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ws upgrade")
		return
	}
	h.Hub.Subscribe(h.Ctx, id, ws)
}

// ---- lifecycle ----

func (h *Handlers) lifecycle(c *gin.Context, fn func(*app.Session) error) {
	s := h.session(c)
	if s == nil {
		return
	}
	if err := fn(s); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) Start(c *gin.Context) {
	h.lifecycle(c, func(s *app.Session) error {
		return s.Start(c.Request.Context(), userID(c))
	})
}

func (h *Handlers) End(c *gin.Context) {
	h.lifecycle(c, func(s *app.Session) error {
		return s.End(c.Request.Context(), userID(c))
	})
}

func (h *Handlers) Cancel(c *gin.Context) {
	h.lifecycle(c, func(s *app.Session) error {
		return s.Cancel(c.Request.Context(), userID(c))
	})
}

func (h *Handlers) SetLock(c *gin.Context) {
	var body struct {
		Locked bool `json:"locked"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	h.lifecycle(c, func(s *app.Session) error {
		return s.SetLock(c.Request.Context(), userID(c), body.Locked)
	})
}

func (h *Handlers) SetWaitingRoom(c *gin.Context) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	h.lifecycle(c, func(s *app.Session) error {
		return s.SetWaitingRoom(c.Request.Context(), userID(c), body.Enabled)
	})
}

// ---- admission ----

func (h *Handlers) Join(c *gin.Context) {
	var body struct {
		DisplayName string `json:"display_name"`
		Guest       bool   `json:"guest"`
		Password    string `json:"password"`
		InviteToken string `json:"invite_token"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	s := h.session(c)
	if s == nil {
		return
	}
	p, err := s.Join(c.Request.Context(), app.JoinRequest{
		UserID:      userID(c),
		DisplayName: body.DisplayName,
		Guest:       body.Guest,
		Password:    body.Password,
		// Invite-link validation belongs to the identity provider; a
		// presented token marks the caller pre-admitted.
		PreAuthorized: body.InviteToken != "",
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handlers) Leave(c *gin.Context) {
	h.lifecycle(c, func(s *app.Session) error {
		return s.Leave(c.Request.Context(), userID(c))
	})
}

func (h *Handlers) Admit(c *gin.Context) {
	var body struct {
		ParticipantID string `json:"participant_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	s := h.session(c)
	if s == nil {
		return
	}
	p, err := s.AdmitFromWaitingRoom(c.Request.Context(), userID(c), domain.ParticipantID(body.ParticipantID))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handlers) Remove(c *gin.Context) {
	h.lifecycle(c, func(s *app.Session) error {
		return s.Remove(c.Request.Context(), userID(c), domain.ParticipantID(c.Param("pid")))
	})
}

// ---- media / roles ----

func (h *Handlers) participantOp(c *gin.Context, fn func(*app.Session, domain.ParticipantID) (domain.Participant, error)) {
	s := h.session(c)
	if s == nil {
		return
	}
	p, err := fn(s, domain.ParticipantID(c.Param("pid")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handlers) Mute(c *gin.Context) {
	h.participantOp(c, func(s *app.Session, pid domain.ParticipantID) (domain.Participant, error) {
		return s.Mute(c.Request.Context(), userID(c), pid)
	})
}

func (h *Handlers) Unmute(c *gin.Context) {
	h.participantOp(c, func(s *app.Session, pid domain.ParticipantID) (domain.Participant, error) {
		return s.Unmute(c.Request.Context(), userID(c), pid)
	})
}

func (h *Handlers) Hand(c *gin.Context) {
	var body struct {
		Raised bool `json:"raised"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	h.participantOp(c, func(s *app.Session, pid domain.ParticipantID) (domain.Participant, error) {
		return s.SetHandRaised(c.Request.Context(), userID(c), pid, body.Raised)
	})
}

func (h *Handlers) Video(c *gin.Context) {
	var body struct {
		Off bool `json:"off"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	h.participantOp(c, func(s *app.Session, pid domain.ParticipantID) (domain.Participant, error) {
		return s.SetVideo(c.Request.Context(), userID(c), pid, body.Off)
	})
}

func (h *Handlers) Promote(c *gin.Context) {
	h.participantOp(c, func(s *app.Session, pid domain.ParticipantID) (domain.Participant, error) {
		return s.PromoteToCoHost(c.Request.Context(), userID(c), pid)
	})
}

func (h *Handlers) Capabilities(c *gin.Context) {
	var patch app.CapabilityPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	h.participantOp(c, func(s *app.Session, pid domain.ParticipantID) (domain.Participant, error) {
		return s.UpdateCapabilities(c.Request.Context(), userID(c), pid, patch)
	})
}

func (h *Handlers) MuteAll(c *gin.Context) {
	h.lifecycle(c, func(s *app.Session) error {
		return s.MuteAll(c.Request.Context(), userID(c))
	})
}

// ---- breakout rooms ----

func (h *Handlers) OpenRooms(c *gin.Context) {
	var body struct {
		Count    int `json:"count"`
		Capacity int `json:"capacity"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	s := h.session(c)
	if s == nil {
		return
	}
	rooms, err := s.OpenRooms(c.Request.Context(), userID(c), body.Count, body.Capacity)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rooms": rooms})
}

func (h *Handlers) AssignRoom(c *gin.Context) {
	var body struct {
		ParticipantID string `json:"participant_id"`
		Room          int    `json:"room"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	h.lifecycle(c, func(s *app.Session) error {
		return s.AssignParticipant(c.Request.Context(), userID(c), domain.ParticipantID(body.ParticipantID), body.Room)
	})
}

func (h *Handlers) CloseRooms(c *gin.Context) {
	h.lifecycle(c, func(s *app.Session) error {
		return s.CloseRooms(c.Request.Context(), userID(c))
	})
}

func (h *Handlers) ReturnToMain(c *gin.Context) {
	h.lifecycle(c, func(s *app.Session) error {
		return s.ReturnToMain(c.Request.Context(), userID(c))
	})
}

// ---- exclusive resources ----

func (h *Handlers) StartShare(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}
	p, err := s.StartScreenShare(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handlers) StopShare(c *gin.Context) {
	h.lifecycle(c, func(s *app.Session) error {
		return s.StopScreenShare(c.Request.Context(), userID(c))
	})
}

func (h *Handlers) StartRecording(c *gin.Context) {
	h.lifecycle(c, func(s *app.Session) error {
		return s.StartRecording(c.Request.Context(), userID(c))
	})
}

func (h *Handlers) StopRecording(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}
	dur, err := s.StopRecording(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"duration_seconds": dur.Seconds()})
}

func (h *Handlers) PauseRecording(c *gin.Context) {
	h.lifecycle(c, func(s *app.Session) error {
		return s.PauseRecording(c.Request.Context(), userID(c))
	})
}

func (h *Handlers) ResumeRecording(c *gin.Context) {
	h.lifecycle(c, func(s *app.Session) error {
		return s.ResumeRecording(c.Request.Context(), userID(c))
	})
}

// ---- chat ----

func (h *Handlers) Chat(c *gin.Context) {
	var body struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	h.lifecycle(c, func(s *app.Session) error {
		return s.SendChat(c.Request.Context(), userID(c), body.Text)
	})
}
