// Package dashboard serves a live view of the analysis pipeline: the current
// stage, progress through the parameter grid, and the best cross-validation
// score so far. It exposes a small JSON API and a WebSocket stream used by
// the inline HTML page.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// RunStatus is one snapshot of pipeline progress.
type RunStatus struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
	Detail    string    `json:"detail"`
	Progress  float64   `json:"progress"`  // 0..1 through the current stage
	BestScore float64   `json:"bestScore"` // best mean CV accuracy so far
	Rows      int       `json:"rows"`
	StartedAt time.Time `json:"startedAt"`
}

// Dashboard streams run status snapshots to connected clients.
type Dashboard struct {
	server           *http.Server
	upgrader         websocket.Upgrader
	clients          map[*websocket.Conn]bool
	clientsMu        sync.RWMutex
	broadcastChannel chan RunStatus
	stopChannel      chan struct{}
	isRunning        bool
	mu               sync.RWMutex

	statusMu sync.RWMutex
	status   RunStatus
}

// New creates a dashboard listening on the given port. Start must be called
// to begin serving.
func New(port int) *Dashboard {
	d := &Dashboard{
		upgrader:         websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:          make(map[*websocket.Conn]bool),
		broadcastChannel: make(chan RunStatus, 100),
		stopChannel:      make(chan struct{}),
		status:           RunStatus{Stage: "idle", Timestamp: time.Now()},
	}

	r := mux.NewRouter()
	r.HandleFunc("/", d.handleIndex).Methods("GET")
	r.HandleFunc("/api/status", d.handleStatusAPI).Methods("GET")
	r.HandleFunc("/ws", d.handleWebSocket).Methods("GET")

	d.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return d
}

// Start starts the dashboard server and the broadcast loop.
func (d *Dashboard) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isRunning {
		return fmt.Errorf("dashboard is already running")
	}

	go d.clientBroadcaster()

	go func() {
		log.Info().Str("address", d.server.Addr).Msg("starting dashboard server")
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("dashboard server failed")
		}
	}()

	d.isRunning = true
	return nil
}

// Stop closes client connections and shuts the server down.
func (d *Dashboard) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isRunning {
		return nil
	}

	close(d.stopChannel)

	d.clientsMu.Lock()
	for client := range d.clients {
		client.Close()
	}
	d.clients = make(map[*websocket.Conn]bool)
	d.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown dashboard server")
		return err
	}

	d.isRunning = false
	log.Info().Msg("dashboard stopped")
	return nil
}

// Publish records a new status snapshot and queues it for broadcast.
// Snapshots are dropped when the broadcast queue is full.
func (d *Dashboard) Publish(status RunStatus) {
	status.Timestamp = time.Now()

	d.statusMu.Lock()
	if status.StartedAt.IsZero() {
		status.StartedAt = d.status.StartedAt
	}
	d.status = status
	d.statusMu.Unlock()

	select {
	case d.broadcastChannel <- status:
	default:
		// Channel full, skip this update
	}
}

// Status returns the most recent snapshot.
func (d *Dashboard) Status() RunStatus {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	return d.status
}

// clientBroadcaster forwards published snapshots to all connected clients.
func (d *Dashboard) clientBroadcaster() {
	for {
		select {
		case status := <-d.broadcastChannel:
			d.broadcastToClients(status)
		case <-d.stopChannel:
			return
		}
	}
}

func (d *Dashboard) broadcastToClients(status RunStatus) {
	d.clientsMu.Lock()
	defer d.clientsMu.Unlock()

	data, err := json.Marshal(status)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal status for broadcast")
		return
	}

	for client := range d.clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Msg("failed to send message to WebSocket client")
			client.Close()
			delete(d.clients, client)
		}
	}
}

func (d *Dashboard) handleStatusAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(d.Status()); err != nil {
		http.Error(w, "Failed to encode status", http.StatusInternalServerError)
	}
}

func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	// Send the current snapshot before registering the client: once the conn
	// is in d.clients the broadcaster may write to it, and gorilla conns do
	// not allow concurrent writers.
	data, err := json.Marshal(d.Status())
	if err == nil {
		err = conn.WriteMessage(websocket.TextMessage, data)
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to send snapshot to WebSocket client")
		conn.Close()
		return
	}

	d.clientsMu.Lock()
	d.clients[conn] = true
	d.clientsMu.Unlock()

	go func() {
		defer func() {
			d.clientsMu.Lock()
			delete(d.clients, conn)
			d.clientsMu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (d *Dashboard) handleIndex(w http.ResponseWriter, r *http.Request) {
	const page = `<!DOCTYPE html>
<html>
<head>
    <title>Winepress - Run Progress</title>
    <meta charset="UTF-8">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 700px; margin: 0 auto; }
        .card { background: white; border-radius: 10px; padding: 20px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); margin-bottom: 20px; }
        .card h3 { margin-top: 0; color: #333; border-bottom: 2px solid #eee; padding-bottom: 10px; }
        .metric { display: flex; justify-content: space-between; padding: 8px 0; border-bottom: 1px solid #eee; }
        .metric:last-child { border-bottom: none; }
        .metric-label { font-weight: 500; color: #666; }
        .metric-value { font-weight: bold; color: #333; }
        .progress-bar { width: 100%; height: 20px; background-color: #eee; border-radius: 10px; overflow: hidden; margin: 10px 0; }
        .progress-fill { height: 100%; background-color: #28a745; transition: width 0.3s ease; }
    </style>
</head>
<body>
    <div class="container">
        <div class="card">
            <h3>Run Progress</h3>
            <div class="progress-bar"><div class="progress-fill" id="progress" style="width:0%"></div></div>
            <div class="metric"><span class="metric-label">Stage</span><span class="metric-value" id="stage">idle</span></div>
            <div class="metric"><span class="metric-label">Detail</span><span class="metric-value" id="detail">-</span></div>
            <div class="metric"><span class="metric-label">Rows</span><span class="metric-value" id="rows">0</span></div>
            <div class="metric"><span class="metric-label">Best CV accuracy</span><span class="metric-value" id="best">-</span></div>
            <div class="metric"><span class="metric-label">Last update</span><span class="metric-value" id="updated">-</span></div>
        </div>
    </div>
    <script>
        const ws = new WebSocket('ws://' + window.location.host + '/ws');
        ws.onmessage = function(event) {
            const s = JSON.parse(event.data);
            document.getElementById('progress').style.width = (s.progress * 100).toFixed(0) + '%';
            document.getElementById('stage').textContent = s.stage;
            document.getElementById('detail').textContent = s.detail || '-';
            document.getElementById('rows').textContent = s.rows;
            document.getElementById('best').textContent = s.bestScore ? s.bestScore.toFixed(4) : '-';
            document.getElementById('updated').textContent = new Date(s.timestamp).toLocaleTimeString();
        };
    </script>
</body>
</html>`
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, page)
}
