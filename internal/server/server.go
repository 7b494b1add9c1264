// Package server exposes the operator-facing HTTP surface: websocket
// streams for video and telemetry, command endpoints for teleop and SLAM
// control, and the health/status/config endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"rover-ops-go/internal/camera"
	"rover-ops-go/internal/config"
	"rover-ops-go/internal/slam"
	"rover-ops-go/internal/telemetry"
	"rover-ops-go/internal/teleop"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

type Server struct {
	upgrader websocket.Upgrader
	cfg      config.AppConfig
	streamer *camera.Streamer
	slam     *slam.Supervisor
	sink     teleop.Sink // nil when the motion bridge is unavailable

	mu      sync.Mutex
	clients map[*websocket.Conn]*sync.Mutex
}

func New(cfg config.AppConfig, streamer *camera.Streamer, supervisor *slam.Supervisor, sink teleop.Sink) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cfg:      cfg,
		streamer: streamer,
		slam:     supervisor,
		sink:     sink,
		clients:  make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Run serves until ctx is cancelled, then shuts the listener down with a
// bounded grace period.
func Run(ctx context.Context, cfg config.AppConfig, streamer *camera.Streamer, supervisor *slam.Supervisor, sink teleop.Sink) error {
	srv := New(cfg, streamer, supervisor, sink)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	return httpServer.ListenAndServe()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/teleop", s.handleTeleop)
	mux.HandleFunc("/slam", s.handleSlam)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/config", s.handleConfig)
	mux.HandleFunc("/ws/zed", s.handleVideoWS)
	mux.HandleFunc("/ws/telemetry", s.handleTelemetryWS)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, map[string]any{"status": "ok"})
}

type teleopRequest struct {
	Direction string `json:"direction"`
}

func (s *Server) handleTeleop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req teleopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, errorBody("invalid request body"))
		return
	}

	msg, err := teleop.Map(req.Direction, teleop.Speeds{
		Linear:  s.cfg.LinearSpeed,
		Angular: s.cfg.AngularSpeed,
	})
	if err != nil {
		writeJSONResponse(w, errorBody("invalid direction"))
		return
	}
	if s.sink == nil {
		writeJSONResponse(w, errorBody("cmd_vel bridge not available"))
		return
	}
	if err := s.sink.Publish(msg); err != nil {
		log.Printf("teleop publish failed: %v", err)
		writeJSONResponse(w, errorBody("cmd_vel publish failed"))
		return
	}
	writeJSONResponse(w, map[string]any{"status": "ok"})
}

type slamRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleSlam(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req slamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, errorBody("invalid request body"))
		return
	}

	var state string
	switch strings.ToLower(req.Action) {
	case "start":
		var err error
		state, err = s.slam.Start()
		if err != nil {
			log.Printf("slam start failed: %v", err)
			writeJSONResponse(w, errorBody("failed to start slam"))
			return
		}
	case "stop":
		state = s.slam.Stop()
	case "status":
		state = s.slam.Status()
	default:
		writeJSONResponse(w, errorBody("invalid action"))
		return
	}
	writeJSONResponse(w, map[string]any{"status": "ok", "state": state})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	cmdVel := "unavailable"
	if s.sink != nil {
		cmdVel = "connected"
	}
	source, captureStatus, lastFrame := s.streamer.Snapshot()
	writeJSONResponse(w, map[string]any{
		"slam":           s.slam.Status(),
		"cmd_vel":        cmdVel,
		"ws_clients":     s.clientCount(),
		"camera":         source,
		"capture_status": captureStatus,
		"last_frame":     lastFrame,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, map[string]any{
		"port":               s.cfg.Port,
		"frame_interval_ms":  float64(time.Duration(s.cfg.FrameInterval)) / float64(time.Millisecond),
		"telemetry_interval": time.Duration(s.cfg.TelemetryInterval).String(),
		"max_stream_width":   s.cfg.MaxStreamWidth,
		"jpeg_quality":       s.cfg.JPEGQuality,
		"linear_speed":       s.cfg.LinearSpeed,
		"angular_speed":      s.cfg.AngularSpeed,
	})
}

func (s *Server) handleVideoWS(w http.ResponseWriter, r *http.Request) {
	conn := s.acceptWS(w, r)
	if conn == nil {
		return
	}
	go s.serveStream(conn, r, "video", time.Duration(s.cfg.FrameInterval), func() any {
		return s.streamer.Latest()
	})
}

func (s *Server) handleTelemetryWS(w http.ResponseWriter, r *http.Request) {
	conn := s.acceptWS(w, r)
	if conn == nil {
		return
	}
	// Each connection owns its synthesizer and tick counter.
	synth := telemetry.NewSynthesizer(s.cfg.ThermalRoot)
	tick := 0
	go s.serveStream(conn, r, "telemetry", time.Duration(s.cfg.TelemetryInterval), func() any {
		sample := synth.Sample(tick)
		tick++
		return sample
	})
}

func (s *Server) acceptWS(w http.ResponseWriter, r *http.Request) *websocket.Conn {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil
	}
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return conn
}

// serveStream runs one connection's push loop: read latest state, push,
// sleep until the next tick. A disconnect ends the loop quietly; it is
// normal termination, not an error.
func (s *Server) serveStream(conn *websocket.Conn, r *http.Request, kind string, interval time.Duration, next func() any) {
	if interval <= 0 {
		interval = time.Second
	}

	writeMu := &sync.Mutex{}
	s.mu.Lock()
	s.clients[conn] = writeMu
	s.mu.Unlock()
	defer s.removeClient(conn)

	id := uuid.NewString()[:8]
	log.Printf("ws %s client %s connected (%s)", kind, id, r.RemoteAddr)
	defer log.Printf("ws %s client %s disconnected", kind, id)

	// Read pump: the UI never sends data on these sockets; this services
	// pong frames and notices disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pusher := time.NewTicker(interval)
	defer pusher.Stop()
	pinger := time.NewTicker(pingEvery)
	defer pinger.Stop()

	for {
		select {
		case <-done:
			return
		case <-pinger.C:
			if err := s.writeMessage(conn, writeMu, websocket.PingMessage, nil); err != nil {
				return
			}
		case <-pusher.C:
			if err := s.writeJSON(conn, writeMu, next()); err != nil {
				return
			}
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) writeJSON(conn *websocket.Conn, writeMu *sync.Mutex, payload any) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(payload)
}

func (s *Server) writeMessage(conn *websocket.Conn, writeMu *sync.Mutex, messageType int, payload []byte) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, payload)
}

func errorBody(detail string) map[string]any {
	return map[string]any{"status": "error", "detail": detail}
}

func writeJSONResponse(w http.ResponseWriter, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
