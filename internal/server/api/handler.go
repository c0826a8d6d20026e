package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"alertgraph/internal/logger"
	"alertgraph/internal/pipeline"
	"alertgraph/pkg/models"
)

var log = logger.Named("api")

// Analyzer is the pipeline surface the API needs.
type Analyzer interface {
	Current() *models.Snapshot
	Run(ctx context.Context) (*models.Snapshot, error)
}

// Options configures optional routes and the websocket broadcast.
type Options struct {
	MetricsPath       string
	Metrics           http.Handler
	BroadcastInterval time.Duration
}

// Handler serves the analysis REST API and pushes published snapshots to
// websocket clients. It doubles as a pipeline result writer.
type Handler struct {
	analyzer Analyzer
	opts     Options

	router   *mux.Router
	upgrader websocket.Upgrader

	wsMu      sync.Mutex
	wsClients map[*websocket.Conn]struct{}
	// gorilla connections allow a single concurrent writer.
	sendMu    sync.Mutex
	wsStopCh  chan struct{}
	wsDoneCh  chan struct{}
	started   atomic.Bool
	closeOnce sync.Once
}

// NewHandler creates a handler with all routes registered.
func NewHandler(analyzer Analyzer, opts Options) *Handler {
	h := &Handler{
		analyzer: analyzer,
		opts:     opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		wsClients: make(map[*websocket.Conn]struct{}),
		wsStopCh:  make(chan struct{}),
		wsDoneCh:  make(chan struct{}),
	}

	h.router = mux.NewRouter()
	h.registerRoutes()
	return h
}

// Router returns the configured HTTP router.
func (h *Handler) Router() http.Handler {
	return corsMiddleware(h.router)
}

func (h *Handler) registerRoutes() {
	h.router.MethodNotAllowedHandler = http.HandlerFunc(h.handleMethodNotAllowed)
	h.router.NotFoundHandler = http.HandlerFunc(h.handleNotFound)

	h.router.HandleFunc("/api/analysis", h.handleGetAnalysis).Methods("GET")
	h.router.HandleFunc("/api/reload", h.handleReload).Methods("POST")
	h.router.HandleFunc("/api/status", h.handleGetStatus).Methods("GET")
	h.router.HandleFunc("/api/ws", h.handleWS)

	h.router.HandleFunc("/healthz", h.handleHealth).Methods("GET")
	if h.opts.Metrics != nil && h.opts.MetricsPath != "" {
		h.router.Handle(h.opts.MetricsPath, h.opts.Metrics).Methods("GET")
	}
}

func (h *Handler) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

// -----------------------------------------------------------------------
// REST endpoints
// -----------------------------------------------------------------------

type missingResponse struct {
	Error string `json:"error"`
	Path  string `json:"path"`
}

type statusResponse struct {
	ID         string          `json:"id,omitempty"`
	Status     string          `json:"status"`
	Source     string          `json:"source"`
	AnalyzedAt *time.Time      `json:"analyzed_at,omitempty"`
	Stats      models.RunStats `json:"stats"`
	Clients    int             `json:"ws_clients"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	snap := h.analyzer.Current()
	switch snap.Status {
	case models.StatusOK:
		writeJSON(w, http.StatusOK, snap.Result)
	case models.StatusSourceMissing:
		writeJSON(w, http.StatusNotFound, missingResponse{Error: "Log file not found", Path: snap.Source})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "not analyzed"})
	}
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.analyzer.Run(r.Context())
	if errors.Is(err, pipeline.ErrSourceMissing) {
		writeJSON(w, http.StatusNotFound, missingResponse{Error: "Log file not found", Path: h.analyzer.Current().Source})
		return
	}
	if err != nil {
		log.Errorf("Reload failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded", "id": snap.ID})
}

func (h *Handler) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.analyzer.Current()
	resp := statusResponse{
		ID:      snap.ID,
		Status:  snap.Status,
		Source:  snap.Source,
		Stats:   snap.Stats,
		Clients: h.clientCount(),
	}
	if !snap.AnalyzedAt.IsZero() {
		at := snap.AnalyzedAt
		resp.AnalyzedAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}

// -----------------------------------------------------------------------
// WebSocket
// -----------------------------------------------------------------------

func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Websocket upgrade failed: %v", err)
		return
	}

	h.wsMu.Lock()
	h.wsClients[conn] = struct{}{}
	h.wsMu.Unlock()
	log.Infof("Websocket client connected: %s", conn.RemoteAddr())

	// Reads only detect disconnects; inbound messages are discarded.
	go func() {
		defer func() {
			h.dropClient(conn)
			log.Infof("Websocket client disconnected: %s", conn.RemoteAddr())
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// StartBroadcast periodically re-sends the current result so idle clients
// stay in sync.
func (h *Handler) StartBroadcast() {
	if h.opts.BroadcastInterval <= 0 || !h.started.CompareAndSwap(false, true) {
		return
	}
	go h.broadcastLoop()
}

func (h *Handler) broadcastLoop() {
	defer close(h.wsDoneCh)

	ticker := time.NewTicker(h.opts.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if snap := h.analyzer.Current(); snap.Status == models.StatusOK {
				h.broadcast(snap)
			}
		case <-h.wsStopCh:
			return
		}
	}
}

// Name identifies the handler as a result writer.
func (h *Handler) Name() string {
	return "websocket"
}

// WriteResult pushes a newly published snapshot to every client.
func (h *Handler) WriteResult(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil {
		return nil
	}
	return h.broadcast(snap)
}

func (h *Handler) broadcast(snap *models.Snapshot) error {
	clients := h.snapshotClients()
	if len(clients) == 0 {
		return nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	for _, conn := range clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debugf("Failed to write to websocket client %s: %v", conn.RemoteAddr(), err)
			h.dropClient(conn)
		}
	}
	return nil
}

// Close stops the broadcast loop and closes all websocket connections.
func (h *Handler) Close() error {
	h.closeOnce.Do(func() {
		close(h.wsStopCh)
		if h.started.Load() {
			<-h.wsDoneCh
		}

		h.wsMu.Lock()
		for conn := range h.wsClients {
			conn.Close()
		}
		h.wsClients = make(map[*websocket.Conn]struct{})
		h.wsMu.Unlock()
	})
	return nil
}

func (h *Handler) snapshotClients() []*websocket.Conn {
	h.wsMu.Lock()
	defer h.wsMu.Unlock()
	clients := make([]*websocket.Conn, 0, len(h.wsClients))
	for conn := range h.wsClients {
		clients = append(clients, conn)
	}
	return clients
}

func (h *Handler) dropClient(conn *websocket.Conn) {
	h.wsMu.Lock()
	delete(h.wsClients, conn)
	h.wsMu.Unlock()
	conn.Close()
}

func (h *Handler) clientCount() int {
	h.wsMu.Lock()
	defer h.wsMu.Unlock()
	return len(h.wsClients)
}

// -----------------------------------------------------------------------
// JSON response helpers
// -----------------------------------------------------------------------

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Debugf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
