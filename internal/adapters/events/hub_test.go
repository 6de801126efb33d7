package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/confkit/confkit/internal/domain"
)

// dialHub connects a real websocket pair through httptest and subscribes
// the server side to conf.
func dialHub(t *testing.T, hub *Hub, conf domain.ConferenceID) *websocket.Conn {
	t.Helper()
	var up = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		hub.Subscribe(context.Background(), conf, ws)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var e domain.Event
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return e
}

func TestHubDeliversInOrder(t *testing.T) {
	hub := NewHub()
	client := dialHub(t, hub, "conf-1")

	// Wait for the subscriber to attach before publishing.
	deadline := time.Now().Add(time.Second)
	for hub.Observers("conf-1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never attached")
		}
		time.Sleep(5 * time.Millisecond)
	}

	published := []domain.EventType{
		domain.EventParticipantJoined,
		domain.EventAudioMuted,
		domain.EventParticipantLeft,
	}
	for _, typ := range published {
		hub.Publish(domain.Event{ConferenceID: "conf-1", Type: typ})
	}

	for i, want := range published {
		e := readEvent(t, client)
		if e.Type != want {
			t.Fatalf("event[%d] = %s, want %s", i, e.Type, want)
		}
		if e.ConferenceID != "conf-1" {
			t.Fatalf("event[%d] conference = %s", i, e.ConferenceID)
		}
	}
}

func TestHubIsolatesConferences(t *testing.T) {
	hub := NewHub()
	client := dialHub(t, hub, "conf-a")

	deadline := time.Now().Add(time.Second)
	for hub.Observers("conf-a") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never attached")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(domain.Event{ConferenceID: "conf-b", Type: domain.EventParticipantJoined})
	hub.Publish(domain.Event{ConferenceID: "conf-a", Type: domain.EventHandRaised})

	if e := readEvent(t, client); e.Type != domain.EventHandRaised {
		t.Fatalf("leaked event: %s", e.Type)
	}
}

func TestHubClosesOnConferenceEnd(t *testing.T) {
	hub := NewHub()
	client := dialHub(t, hub, "conf-1")

	deadline := time.Now().Add(time.Second)
	for hub.Observers("conf-1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never attached")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(domain.Event{ConferenceID: "conf-1", Type: domain.EventConferenceEnded})

	if e := readEvent(t, client); e.Type != domain.EventConferenceEnded {
		t.Fatalf("final event = %s", e.Type)
	}
	// After the terminal event the server side closes the socket.
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := client.ReadMessage(); err == nil {
		t.Fatal("connection still open after conference end")
	}
	if hub.Observers("conf-1") != 0 {
		t.Fatalf("observers = %d after end", hub.Observers("conf-1"))
	}
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub()
	// Must not panic or block.
	hub.Publish(domain.Event{ConferenceID: "nobody", Type: domain.EventChatMessage})
	if hub.Observers("nobody") != 0 {
		t.Fatal("phantom subscriber")
	}
}
