package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestPublishAndStatus(t *testing.T) {
	d := New(0)

	d.Publish(RunStatus{Stage: "training", Detail: "trees=50", Progress: 0.5, Rows: 178})

	s := d.Status()
	if s.Stage != "training" {
		t.Errorf("Expected stage training, got %s", s.Stage)
	}
	if s.Progress != 0.5 {
		t.Errorf("Expected progress 0.5, got %f", s.Progress)
	}
	if s.Timestamp.IsZero() {
		t.Error("Publish did not stamp the snapshot")
	}
}

func TestPublishKeepsStartedAt(t *testing.T) {
	d := New(0)

	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d.Publish(RunStatus{Stage: "load", StartedAt: started})
	d.Publish(RunStatus{Stage: "audit"})

	if got := d.Status().StartedAt; !got.Equal(started) {
		t.Errorf("StartedAt not carried forward: %v", got)
	}
}

func TestStatusAPI(t *testing.T) {
	d := New(0)
	d.Publish(RunStatus{Stage: "grid-search", BestScore: 0.97})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	d.handleStatusAPI(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var s RunStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if s.Stage != "grid-search" || s.BestScore != 0.97 {
		t.Errorf("Unexpected status: %+v", s)
	}
}

func TestIndexPage(t *testing.T) {
	d := New(0)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	d.handleIndex(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Run Progress") {
		t.Error("Index page missing expected content")
	}
}

func TestWebSocketStreaming(t *testing.T) {
	d := New(0)
	d.Publish(RunStatus{Stage: "load", Rows: 178})
	go d.clientBroadcaster()
	defer close(d.stopChannel)

	srv := httptest.NewServer(http.HandlerFunc(d.handleWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	defer conn.Close()

	// The initial snapshot arrives on connect.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read initial snapshot: %v", err)
	}
	var s RunStatus
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if s.Stage != "load" || s.Rows != 178 {
		t.Errorf("Unexpected initial snapshot: %+v", s)
	}

	// A publish reaches the connected client.
	d.Publish(RunStatus{Stage: "evaluate", BestScore: 0.95})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("Failed to decode broadcast: %v", err)
	}
	if s.Stage != "evaluate" {
		t.Errorf("Unexpected broadcast: %+v", s)
	}
}

func TestWebSocketConnectDuringBroadcasts(t *testing.T) {
	// Clients connecting while the broadcaster is streaming must not see
	// interleaved writes on their conn: the on-connect snapshot is written
	// before the client joins the broadcast set.
	d := New(0)
	go d.clientBroadcaster()
	defer close(d.stopChannel)

	srv := httptest.NewServer(http.HandlerFunc(d.handleWebSocket))
	defer srv.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			d.Publish(RunStatus{Stage: "grid-search", Progress: float64(i) / 200})
		}
	}()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	for i := 0; i < 5; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("WebSocket dial %d failed: %v", i, err)
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Fatalf("Client %d failed to read snapshot: %v", i, err)
		}
		conn.Close()
	}
	<-done
}

func TestStartStop(t *testing.T) {
	d := New(18099)
	if err := d.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.Start(); err == nil {
		t.Error("Expected error starting twice")
	}
	if err := d.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	// Stopping a stopped dashboard is a no-op.
	if err := d.Stop(); err != nil {
		t.Errorf("Second stop failed: %v", err)
	}
}
