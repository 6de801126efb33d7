// Package events fans conference notifications out to websocket
// subscribers. The core only produces events; delivery problems stay here.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/confkit/confkit/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

// Subscriber is one connected client. Owned by the hub; the hub closes it.
type Subscriber struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func (s *Subscriber) trySend(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("subscriber closed")
	}
	select {
	case s.send <- b:
		return nil
	default:
		return ErrBackpressure
	}
}

func (s *Subscriber) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.send)
	_ = s.conn.Close()
	s.mu.Unlock()
}

// Hub keeps the subscriber sets per conference. Publish is called from each
// session loop in serialization order; per-subscriber buffered channels
// preserve that order, and a subscriber too slow to keep up is dropped
// instead of seeing reordered events.
type Hub struct {
	mu   sync.RWMutex
	subs map[domain.ConferenceID]map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[domain.ConferenceID]map[*Subscriber]struct{})}
}

// Publish implements app.Broadcaster. It never blocks the caller.
func (h *Hub) Publish(e domain.Event) {
	b, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Str("module", "events.hub").Str("type", string(e.Type)).Msg("marshal event")
		return
	}

	h.mu.RLock()
	set := h.subs[e.ConferenceID]
	targets := make([]*Subscriber, 0, len(set))
	for sub := range set {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if err := sub.trySend(b); err != nil {
			log.Warn().Err(err).Str("module", "events.hub").Str("conf", string(e.ConferenceID)).Msg("dropping subscriber")
			h.detach(e.ConferenceID, sub)
			sub.Close()
		}
	}

	switch e.Type {
	case domain.EventConferenceEnded, domain.EventConferenceCancelled:
		h.CloseConference(e.ConferenceID)
	}
}

// Subscribe attaches a websocket to the conference's ordered stream and
// starts its write pump.
func (h *Hub) Subscribe(ctx context.Context, conf domain.ConferenceID, conn *websocket.Conn) *Subscriber {
	sub := &Subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	set, ok := h.subs[conf]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[conf] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	go h.writePump(ctx, conf, sub)
	go h.readPump(conf, sub)
	log.Info().Str("module", "events.hub").Str("conf", string(conf)).Msg("subscriber attached")
	return sub
}

// Observers reports the subscriber count for one conference.
func (h *Hub) Observers(conf domain.ConferenceID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[conf])
}

// CloseConference drops every subscriber once the conference is over.
func (h *Hub) CloseConference(conf domain.ConferenceID) {
	h.mu.Lock()
	set := h.subs[conf]
	delete(h.subs, conf)
	h.mu.Unlock()
	for sub := range set {
		sub.Close()
	}
}

func (h *Hub) detach(conf domain.ConferenceID, sub *Subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[conf]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, conf)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) writePump(ctx context.Context, conf domain.ConferenceID, sub *Subscriber) {
	defer func() {
		h.detach(conf, sub)
		sub.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-sub.send:
			if !ok {
				return
			}
			if err := sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "events.hub").Msg("writePump set deadline")
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "events.hub").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump drains the client so pings and close frames are processed.
func (h *Hub) readPump(conf domain.ConferenceID, sub *Subscriber) {
	defer func() {
		h.detach(conf, sub)
		sub.Close()
	}()
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}
