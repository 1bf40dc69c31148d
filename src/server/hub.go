package server

import (
	"context"
	"encoding/json"
	"net/http"

	"market-metrics/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *QueryServer) handleWebsockets() {
	for {
		select {
		case <-s.done:
			s.stateMutex.Lock()
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.stateMutex.Unlock()
			return

		case client := <-s.register:
			s.stateMutex.Lock()
			s.clients[client] = struct{}{}
			s.stateMutex.Unlock()
			// Send recent runs on connect
			client.send <- s.snapshot(nil)

		case client := <-s.resync:
			s.stateMutex.RLock()
			_, ok := s.clients[client]
			s.stateMutex.RUnlock()
			if ok {
				select {
				case client.send <- s.snapshot(client.filter()):
				default:
				}
			}

		case client := <-s.unregister:
			s.stateMutex.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
			s.stateMutex.Unlock()

		case report := <-s.broadcast:
			s.record(report)

			message := &models.MRunMessage{
				Type:      models.MessageUpdate,
				Runs:      []models.MRunReport{report},
				Timestamp: report.FinishedAt.Unix(),
			}

			s.stateMutex.Lock()
			for client := range s.clients {
				if !client.wants(report.Symbol) {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Client too slow, drop it rather than block the hub
					delete(s.clients, client)
					close(client.send)
				}
			}
			s.stateMutex.Unlock()
		}
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast queues a report for websocket clients and /api/runs. When the
// queue is full the report is recorded without being pushed.
func (s *QueryServer) Broadcast(report models.MRunReport) {
	s.startHub()
	select {
	case s.broadcast <- report:
	case <-s.done:
	default:
		s.Logger.Warning("Broadcast queue full, report for %s not pushed", report.Symbol)
		s.record(report)
	}
}

// Publish lets the server act as a report sink.
func (s *QueryServer) Publish(_ context.Context, report models.MRunReport) error {
	s.Broadcast(report)
	return nil
}

// Close is a no-op; Stop shuts the server down.
func (s *QueryServer) Close() error {
	return nil
}

// -----------------------------------------------------------------------------
// Helper Methods
// -----------------------------------------------------------------------------

func (s *QueryServer) record(report models.MRunReport) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	s.runs = append(s.runs, report)
	if over := len(s.runs) - s.maxRuns; over > 0 {
		s.runs = append([]models.MRunReport(nil), s.runs[over:]...)
	}
	s.lastUpdate = report.FinishedAt.Unix()
}

// -----------------------------------------------------------------------------

// RecentRuns returns up to limit reports, newest first, optionally for one symbol.
func (s *QueryServer) RecentRuns(symbol string, limit int) []models.MRunReport {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	out := make([]models.MRunReport, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if symbol != "" && s.runs[i].Symbol != symbol {
			continue
		}
		out = append(out, s.runs[i])
	}
	return out
}

// -----------------------------------------------------------------------------

func (s *QueryServer) snapshot(symbols []string) *models.MRunMessage {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	runs := make([]models.MRunReport, 0, len(s.runs))
	for _, r := range s.runs {
		if len(symbols) == 0 || contains(symbols, r.Symbol) {
			runs = append(runs, r)
		}
	}
	return &models.MRunMessage{
		Type:      models.MessageInitial,
		Runs:      runs,
		Timestamp: s.lastUpdate,
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *QueryServer) handleWebSocket(c *gin.Context) {
	s.startHub()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan *models.MRunMessage, 256),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *QueryServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	client.subscribe(cmd.Symbols)

	// the hub owns client.send, so it answers with the filtered snapshot
	select {
	case s.resync <- client:
	case <-s.done:
	}
}
