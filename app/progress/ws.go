package progress

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/muhammad-febriansyah/chatcepat-sub007/repository"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// WSServer serves campaign progress over websocket on its own listener,
// separate from the API server.
type WSServer struct {
	hub          *Hub
	campaignRepo repository.CampaignRepository
	upgrader     websocket.Upgrader
	logger       *log.Logger
	server       *http.Server
}

// NewWSServer creates a websocket progress server
func NewWSServer(hub *Hub, campaignRepo repository.CampaignRepository, logger *log.Logger) *WSServer {
	return &WSServer{
		hub:          hub,
		campaignRepo: campaignRepo,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Start listens on addr until the context is cancelled. The returned stop
// func shuts the listener down.
func (s *WSServer) Start(ctx context.Context, addr string) func() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/campaigns/", s.handleProgress)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Printf("progress websocket listening on %s", addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("progress websocket server error: %v", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
}

// handleProgress upgrades GET /ws/campaigns/{uuid}/progress and streams the
// campaign's events until the client disconnects.
func (s *WSServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	campaignUUID, ok := parseProgressPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	id, err := uuid.Parse(campaignUUID)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	campaign, err := s.campaignRepo.ByUUID(r.Context(), id)
	if err != nil {
		http.Error(w, "campaign lookup failed", http.StatusInternalServerError)
		return
	}
	if campaign == nil {
		http.NotFound(w, r)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	events, cancel := s.hub.Subscribe(campaign.ID)
	defer cancel()
	defer ws.Close()

	var writeMu sync.Mutex
	writeJSON := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return ws.WriteJSON(v)
	}

	// Drain client frames so close and pong handling work.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case event, open := <-events:
			if !open {
				return
			}
			if err := writeJSON(event); err != nil {
				s.logger.Printf("progress write failed for campaign %s: %v", campaignUUID, err)
				return
			}
		case <-ping.C:
			writeMu.Lock()
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			err := ws.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// parseProgressPath extracts the campaign uuid from
// /ws/campaigns/{uuid}/progress
func parseProgressPath(path string) (string, bool) {
	trimmed := strings.TrimPrefix(path, "/ws/campaigns/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[1] != "progress" || parts[0] == "" {
		return "", false
	}
	return parts[0], true
}

// Addr formats a host/port pair for the listener
func Addr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
