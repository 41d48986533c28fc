package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"lms-ai-backend/internal/domain/model"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newTestServer(t *testing.T, h *Hub, userID int64, topic string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.Subscribe(w, r, userID, topic)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForSubscriber(t *testing.T, h *Hub, userID int64, topic string) {
	t.Helper()
	key := subKey{userID: userID, topic: topic}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.RLock()
		n := len(h.subs[key])
		h.mu.RUnlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("subscriber never registered")
}

func readEvent(t *testing.T, conn *websocket.Conn) model.ResultEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev model.ResultEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestEventsArriveInPublishOrder(t *testing.T) {
	h := NewHub(testLogger())
	srv := newTestServer(t, h, 1, "s1")
	conn := dial(t, srv)
	waitForSubscriber(t, h, 1, "s1")

	msg := &model.ChatMessage{ID: "m1", SessionID: "s1", Sender: model.SenderUser, Content: "hi"}
	h.Publish(1, "s1", model.ResultEvent{SessionID: "s1", Kind: model.EventMessage, Message: msg})
	h.Publish(1, "s1", model.ResultEvent{SessionID: "s1", Kind: model.EventStatus, Stages: []model.Stage{{Name: "Preparing", State: model.StageInProgress}}})
	h.Publish(1, "s1", model.ResultEvent{SessionID: "s1", Kind: model.EventStatus, Stages: []model.Stage{{Name: "Preparing", State: model.StageDone}}})

	first := readEvent(t, conn)
	if first.Kind != model.EventMessage || first.Message == nil || first.Message.ID != "m1" {
		t.Fatalf("first event %+v, want the user echo", first)
	}
	second := readEvent(t, conn)
	if second.Kind != model.EventStatus || second.Stages[0].State != model.StageInProgress {
		t.Fatalf("second event %+v, want IN_PROGRESS snapshot", second)
	}
	third := readEvent(t, conn)
	if third.Stages[0].State != model.StageDone {
		t.Fatalf("third event %+v, want DONE snapshot", third)
	}
}

func TestPublishWithoutSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			h.Publish(1, "nobody-listening", model.ResultEvent{SessionID: "nobody-listening", Kind: model.EventStatus})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked without subscribers")
	}
}

func TestTopicsAreIsolated(t *testing.T) {
	h := NewHub(testLogger())
	srv := newTestServer(t, h, 1, "s1")
	conn := dial(t, srv)
	waitForSubscriber(t, h, 1, "s1")

	// Same topic name under a different user must not leak across.
	h.Publish(2, "s1", model.ResultEvent{SessionID: "s1", Kind: model.EventStatus})
	h.Publish(1, "s1", model.ResultEvent{SessionID: "s1", Kind: model.EventMessage, Message: &model.ChatMessage{ID: "mine"}})

	ev := readEvent(t, conn)
	if ev.Kind != model.EventMessage || ev.Message == nil || ev.Message.ID != "mine" {
		t.Fatalf("received %+v, want only the own-user event", ev)
	}
}

func TestPublishSurvivesConcurrentDisconnects(t *testing.T) {
	h := NewHub(testLogger())
	srv := newTestServer(t, h, 1, "s1")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					h.Publish(1, "s1", model.ResultEvent{SessionID: "s1", Kind: model.EventStatus})
				}
			}
		}()
	}

	// Churn subscribers while the publishers run. A disconnect racing a
	// publish must never take down the publishing goroutine.
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatal(err)
		}
		waitForSubscriber(t, h, 1, "s1")
		_ = conn.Close()
	}

	close(stop)
	wg.Wait()
}

func TestDisconnectedSubscriberIsRemoved(t *testing.T) {
	h := NewHub(testLogger())
	srv := newTestServer(t, h, 1, "s1")
	conn := dial(t, srv)
	waitForSubscriber(t, h, 1, "s1")

	_ = conn.Close()

	key := subKey{userID: 1, topic: "s1"}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.RLock()
		n := len(h.subs[key])
		h.mu.RUnlock()
		if n == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("closed subscriber still registered")
}
