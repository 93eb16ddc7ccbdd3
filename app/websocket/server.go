package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"PosPrint/app/models"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	TypeJobQueued     MessageType = "job_queued"
	TypeJobCompleted  MessageType = "job_completed"
	TypeJobFailed     MessageType = "job_failed"
	TypePrinterStatus MessageType = "printer_status"
	TypeHeartbeat     MessageType = "heartbeat"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// JobEvent is the payload broadcast on print-job transitions
type JobEvent struct {
	JobID     uint   `json:"job_id"`
	BillID    string `json:"bill_id"`
	Kind      string `json:"kind"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	LastError string `json:"last_error,omitempty"`
}

// Client represents a connected WebSocket client
type Client struct {
	ID          string
	Connection  *websocket.Conn
	Send        chan []byte
	Server      *Server
	ConnectedAt time.Time
	RemoteAddr  string
}

// Server broadcasts print-job and printer status events to order terminals
type Server struct {
	clients    map[string]*Client
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	upgrader   websocket.Upgrader
	mu         sync.RWMutex
	port       int
	handlers   *RESTHandlers
	mdns       *zeroconf.Server
	done       chan struct{}
}

// NewServer creates a new WebSocket server on the given port
func NewServer(port int) *Server {
	return &Server{
		clients:    make(map[string]*Client),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		port:       port,
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Terminals connect from the local network
				return true
			},
		},
	}
}

// SetHandlers attaches the REST API surface
func (s *Server) SetHandlers(h *RESTHandlers) {
	s.handlers = h
}

// Start runs the hub and the HTTP listener
func (s *Server) Start() error {
	go s.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	if s.handlers != nil {
		s.handlers.Register(mux)
	}

	addr := fmt.Sprintf(":%d", s.port)
	log.Printf("WebSocket server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

// Announce advertises the print agent over mDNS so terminals can find it
// without manual configuration
func (s *Server) Announce(instanceName string) error {
	server, err := zeroconf.Register(instanceName, "_posprint._tcp", "local.", s.port,
		[]string{"version=1"}, nil)
	if err != nil {
		return fmt.Errorf("failed to announce service: %w", err)
	}
	s.mdns = server
	log.Printf("Announced %s on mDNS port %d", instanceName, s.port)
	return nil
}

// Stop shuts down the hub and withdraws the mDNS announcement
func (s *Server) Stop() {
	close(s.done)
	if s.mdns != nil {
		s.mdns.Shutdown()
	}
}

// NotifyJob broadcasts a print-job transition. Satisfies the dispatcher's
// notifier contract.
func (s *Server) NotifyJob(job *models.PrintJob, event string) {
	payload, err := json.Marshal(JobEvent{
		JobID:     job.ID,
		BillID:    job.BillID,
		Kind:      string(job.Kind),
		Role:      string(job.Role),
		Status:    string(job.Status),
		LastError: job.LastError,
	})
	if err != nil {
		return
	}
	s.Broadcast(MessageType(event), payload)
}

// NotifyPrinterStatus broadcasts a printer reachability change
func (s *Server) NotifyPrinterStatus(printer *models.PrinterConfig, online bool, detail string) {
	payload, _ := json.Marshal(map[string]interface{}{
		"printer_id": printer.ID,
		"name":       printer.Name,
		"role":       printer.Role,
		"online":     online,
		"detail":     detail,
	})
	s.Broadcast(TypePrinterStatus, payload)
}

// Broadcast sends a message to every connected client
func (s *Server) Broadcast(msgType MessageType, data json.RawMessage) {
	msg := Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WebSocket: failed to marshal %s message: %v", msgType, err)
		return
	}
	select {
	case s.broadcast <- raw:
	default:
		log.Printf("WebSocket: broadcast queue full, dropping %s message", msgType)
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) run() {
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client.ID] = client
			s.mu.Unlock()
			log.Printf("WebSocket: client %s connected from %s", client.ID, client.RemoteAddr)

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client.ID]; ok {
				delete(s.clients, client.ID)
				close(client.Send)
			}
			s.mu.Unlock()
			log.Printf("WebSocket: client %s disconnected", client.ID)

		case raw := <-s.broadcast:
			s.mu.RLock()
			for _, client := range s.clients {
				select {
				case client.Send <- raw:
				default:
					// Slow client, skip this message
				}
			}
			s.mu.RUnlock()

		case <-heartbeat.C:
			s.Broadcast(TypeHeartbeat, json.RawMessage(`{}`))

		case <-s.done:
			return
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket: upgrade failed: %v", err)
		return
	}

	client := &Client{
		ID:          fmt.Sprintf("client-%d", time.Now().UnixNano()),
		Connection:  conn,
		Send:        make(chan []byte, 32),
		Server:      s,
		ConnectedAt: time.Now(),
		RemoteAddr:  r.RemoteAddr,
	}

	s.register <- client

	go client.writePump()
	go client.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Connection.Close()
	}()

	for {
		select {
		case raw, ok := <-c.Send:
			c.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Connection.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}

		case <-ticker.C:
			c.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.Server.unregister <- c
		c.Connection.Close()
	}()

	c.Connection.SetReadLimit(4096)
	c.Connection.SetReadDeadline(time.Now().Add(90 * time.Second))
	c.Connection.SetPongHandler(func(string) error {
		c.Connection.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		// Clients only listen; drain anything they send
		if _, _, err := c.Connection.ReadMessage(); err != nil {
			return
		}
	}
}
