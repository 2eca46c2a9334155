// Package monitor provides the HTTP status/monitoring surface of the CNC
// controller: a REST status endpoint, a request endpoint mapping to the
// motion-interruption requests, a WebSocket status push channel, and a
// server-sent-events state stream.
//
// The Controller handed to this package must marshal requests onto the
// control loop itself; the monitor calls it from HTTP goroutines.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package monitor

import (
	"encoding/json"
	"io"
	stdlog "log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"cnc-go-migration/pkg/log"
	"cnc-go-migration/pkg/report"
)

// Controller is the status and request surface the monitor exposes.
type Controller interface {
	GetStatus() map[string]interface{}
	RequestFeedholdDefault()
	RequestCycleStart()
	RequestQueueFlush()
	RequestFeedholdAbort()
}

// Config holds server configuration.
type Config struct {
	// Addr is the HTTP address to listen on (e.g., "127.0.0.1:7125").
	Addr string

	Controller Controller
	Reports    *report.Broker
	Logger     *log.Logger
}

// Server is the monitoring HTTP server.
type Server struct {
	ctrl    Controller
	reports *report.Broker
	logger  *log.Logger

	httpServer *http.Server
	router     *mux.Router
	addr       string

	wsUpgrader websocket.Upgrader
	wsClients  map[int64]*wsClient
	wsClientMu sync.RWMutex
	nextWSID   atomic.Int64

	sse *sse.Server

	running   atomic.Bool
	done      chan struct{}
	startTime time.Time
}

// New creates a monitor server and starts its broadcast loop. Stop releases
// it.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetLogger("monitor")
	}
	reports := cfg.Reports
	if reports == nil {
		reports = report.NewBroker()
	}

	s := &Server{
		ctrl:      cfg.Controller,
		reports:   reports,
		logger:    logger,
		addr:      cfg.Addr,
		wsClients: make(map[int64]*wsClient),
		done:      make(chan struct{}),
		startTime: time.Now(),
		sse: sse.NewServer(&sse.Options{
			Logger: stdlog.New(io.Discard, "", 0),
		}),
	}

	s.wsUpgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // local monitoring UIs connect cross-origin
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/request/{name}", s.handleRequest).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.handleWebSocket)
	r.PathPrefix("/events/").Handler(s.sse)
	s.router = r

	s.running.Store(true)
	go s.broadcastLoop()

	return s
}

// Handler returns the server's HTTP handler, CORS-wrapped.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.router)
}

// Start serves HTTP on the configured address. Blocks until the server
// closes.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}
	s.logger.WithField("addr", s.addr).Info("monitor server starting")
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	close(s.done)

	s.wsClientMu.Lock()
	for _, client := range s.wsClients {
		client.close()
	}
	s.wsClients = make(map[int64]*wsClient)
	s.wsClientMu.Unlock()

	s.sse.Shutdown()

	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// handleStatus serves the controller status snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{"result": s.statusSnapshot()})
}

// handleRequest maps a named request to the controller's request surface.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	switch name {
	case "feedhold":
		s.ctrl.RequestFeedholdDefault()
	case "cycle-start":
		s.ctrl.RequestCycleStart()
	case "queue-flush":
		s.ctrl.RequestQueueFlush()
	case "abort":
		s.ctrl.RequestFeedholdAbort()
	default:
		s.writeError(w, http.StatusBadRequest, "unknown request: "+name)
		return
	}

	s.logger.WithField("request", name).Debug("monitor request dispatched")
	s.writeJSON(w, map[string]interface{}{"result": "ok"})
}

func (s *Server) statusSnapshot() map[string]interface{} {
	status := map[string]interface{}{}
	if s.ctrl != nil {
		status = s.ctrl.GetStatus()
	}
	status["eventtime"] = float64(time.Since(s.startTime).Milliseconds()) / 1000.0
	return status
}

// broadcastLoop pushes status to WebSocket clients and the SSE state
// channel: immediately when the report broker signals, and at 4 Hz
// otherwise.
func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.reports.Notify():
		case <-ticker.C:
		}

		s.reports.ConsumeStatusRequest()
		s.reports.ConsumeQueueRequest()
		s.broadcastStatus()
	}
}

func (s *Server) broadcastStatus() {
	status := s.statusSnapshot()

	data, err := json.Marshal(status)
	if err != nil {
		s.logger.WithError(err).Error("status marshal failed")
		return
	}
	s.sse.SendMessage("/events/state", sse.SimpleMessage(string(data)))

	notification := map[string]interface{}{
		"method": "status_update",
		"params": status,
	}

	s.wsClientMu.RLock()
	for _, client := range s.wsClients {
		client.send(notification)
	}
	s.wsClientMu.RUnlock()
}

// CORS middleware so browser monitoring UIs can connect from other origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	})
}

// wsClient is one WebSocket status subscriber.
type wsClient struct {
	id     int64
	conn   *websocket.Conn
	server *Server
	sendCh chan interface{}
	done   chan struct{}
	mu     sync.Mutex
}

func (s *Server) newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		id:     s.nextWSID.Add(1),
		conn:   conn,
		server: s,
		sendCh: make(chan interface{}, 64),
		done:   make(chan struct{}),
	}
}

// send queues a message; a slow client drops messages rather than stalling
// the broadcast.
func (c *wsClient) send(msg interface{}) {
	select {
	case c.sendCh <- msg:
	case <-c.done:
	default:
		c.server.logger.Warn("dropping message to websocket client %d", c.id)
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	c.conn.Close()
}

// readPump drains the connection until it closes; subscribers do not send
// commands over the socket.
func (c *wsClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.close()
	}()

	c.conn.SetReadLimit(4 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Debug("websocket read error: %v", err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.logger.Debug("websocket write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// handleWebSocket upgrades the connection and registers the subscriber. The
// first status push arrives on the next broadcast.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := s.newWSClient(conn)

	s.wsClientMu.Lock()
	s.wsClients[client.id] = client
	s.wsClientMu.Unlock()

	s.logger.Debug("websocket client %d connected", client.id)

	go client.writePump()
	client.send(map[string]interface{}{
		"method": "status_update",
		"params": s.statusSnapshot(),
	})

	client.readPump()
}

func (s *Server) removeClient(client *wsClient) {
	s.wsClientMu.Lock()
	delete(s.wsClients, client.id)
	s.wsClientMu.Unlock()
	s.logger.Debug("websocket client %d disconnected", client.id)
}
