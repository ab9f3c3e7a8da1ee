package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/SimplyPrint/nfc-tagid/internal/core"
	"github.com/SimplyPrint/nfc-tagid/internal/logging"
	"github.com/SimplyPrint/nfc-tagid/internal/settings"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local use
	},
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string          `json:"type"`              // Message type
	ID      string          `json:"id,omitempty"`      // Request ID for request/response matching
	Payload json.RawMessage `json:"payload,omitempty"` // Message payload
	Error   string          `json:"error,omitempty"`   // Error message if any
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	hub       *WSHub
	mu        sync.Mutex
	closed    bool
	pollStops map[string]chan struct{} // Subscribed readers, closed to stop polling
	lastUIDs  map[string]string        // Track last seen UID per reader
}

// WSHub manages all WebSocket connections
type WSHub struct {
	clients    map[*WSClient]bool
	register   chan *WSClient
	unregister chan *WSClient
	mu         sync.RWMutex
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the hub's main loop
func (h *WSHub) Run() {
	// Re-panic after logging since hub crash is fatal
	defer logging.RecoverAndLog("WebSocket hub", true)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Global hub instance
var wsHub *WSHub

// InitWebSocket initializes the WebSocket hub and returns the handler
func InitWebSocket() http.HandlerFunc {
	wsHub = NewWSHub()
	go wsHub.Run()

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Error(logging.CatWebSocket, "WebSocket upgrade failed", map[string]any{
				"error":      err.Error(),
				"remoteAddr": r.RemoteAddr,
			})
			return
		}

		client := &WSClient{
			id:        uuid.NewString(),
			conn:      conn,
			send:      make(chan []byte, 256),
			hub:       wsHub,
			pollStops: make(map[string]chan struct{}),
			lastUIDs:  make(map[string]string),
		}

		logging.Info(logging.CatWebSocket, "Client connected", map[string]any{
			"client":     client.id,
			"remoteAddr": r.RemoteAddr,
		})

		wsHub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

func (c *WSClient) readPump() {
	// Recover from panics (runs last due to LIFO)
	defer logging.RecoverAndLog("WebSocket readPump", false)
	defer func() {
		c.stopPolling()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(64 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn(logging.CatWebSocket, "WebSocket unexpected close", map[string]any{
					"client": c.id,
					"error":  err.Error(),
				})
			} else {
				logging.Debug(logging.CatWebSocket, "Client disconnected", map[string]any{
					"client": c.id,
				})
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("", "invalid message format")
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer logging.RecoverAndLog("WebSocket writePump", false)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close shuts the send channel once. Poll goroutines check closed before sending.
func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) stopPolling() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for reader, stop := range c.pollStops {
		close(stop)
		delete(c.pollStops, reader)
	}
}

func (c *WSClient) handleMessage(msg WSMessage) {
	logging.Debug(logging.CatWebSocket, "Received message", map[string]any{
		"client": c.id,
		"type":   msg.Type,
		"id":     msg.ID,
	})

	switch msg.Type {
	case "list_readers":
		c.sendResponse(msg.ID, "readers", readerOps.ListReaders())
	case "read_uid":
		c.handleReadUID(msg.ID, msg.Payload)
	case "format_uid":
		c.handleFormatUID(msg.ID, msg.Payload)
	case "parse_uid":
		c.handleParseUID(msg.ID, msg.Payload)
	case "subscribe":
		c.handleSubscribe(msg.ID, msg.Payload)
	case "unsubscribe":
		c.handleUnsubscribe(msg.ID, msg.Payload)
	case "version":
		c.sendResponse(msg.ID, "version", versionInfo())
	case "health":
		c.sendResponse(msg.ID, "health", healthInfo())
	default:
		logging.Warn(logging.CatWebSocket, "Unknown message type", map[string]any{
			"type": msg.Type,
		})
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

func (c *WSClient) enqueue(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enqueueLocked(b)
}

// enqueueLocked queues b without blocking. Caller holds c.mu.
func (c *WSClient) enqueueLocked(b []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
		logging.Warn(logging.CatWebSocket, "Client send buffer full, dropping message", map[string]any{
			"client": c.id,
		})
	}
}

func encodeResponse(id string, msgType string, payload interface{}) []byte {
	payloadBytes, _ := json.Marshal(payload)
	responseBytes, _ := json.Marshal(WSMessage{
		Type:    msgType,
		ID:      id,
		Payload: payloadBytes,
	})
	return responseBytes
}

func (c *WSClient) sendResponse(id string, msgType string, payload interface{}) {
	c.enqueue(encodeResponse(id, msgType, payload))
}

func (c *WSClient) sendError(id string, errMsg string) {
	responseBytes, _ := json.Marshal(WSMessage{
		Type:  "error",
		ID:    id,
		Error: errMsg,
	})
	c.enqueue(responseBytes)
}

type readerRequest struct {
	ReaderIndex int `json:"readerIndex"`
}

// decodeReader parses a readerIndex payload and resolves the reader.
func (c *WSClient) decodeReader(id string, payload json.RawMessage, req interface{ index() int }) (core.Reader, bool) {
	if err := json.Unmarshal(payload, req); err != nil {
		c.sendError(id, "invalid payload")
		return core.Reader{}, false
	}
	reader, err := readerAt(req.index())
	if err != nil {
		c.sendError(id, err.Error())
		return core.Reader{}, false
	}
	return reader, true
}

func (r *readerRequest) index() int { return r.ReaderIndex }

func (c *WSClient) handleReadUID(id string, payload json.RawMessage) {
	var req readerRequest
	reader, ok := c.decodeReader(id, payload, &req)
	if !ok {
		return
	}

	card, err := readCard(reader.Name)
	if err != nil {
		c.sendError(id, cardErrorMessage(err))
		return
	}
	c.sendResponse(id, "uid", card)
}

func (c *WSClient) handleFormatUID(id string, payload json.RawMessage) {
	var req formatRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		c.sendError(id, "invalid payload")
		return
	}
	resp, err := req.format()
	if err != nil {
		c.sendError(id, err.Error())
		return
	}
	c.sendResponse(id, "formatted_uid", resp)
}

func (c *WSClient) handleParseUID(id string, payload json.RawMessage) {
	var req parseRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		c.sendError(id, "invalid payload")
		return
	}
	resp, err := req.parse()
	if err != nil {
		c.sendError(id, err.Error())
		return
	}
	c.sendResponse(id, "parsed_uid", resp)
}

type subscribeRequest struct {
	ReaderIndex int `json:"readerIndex"`
	IntervalMs  int `json:"intervalMs"`
}

func (r *subscribeRequest) index() int { return r.ReaderIndex }

// pollInterval picks the subscription interval: the saved default when
// unset, never faster than the minimum.
func pollInterval(requested int) int {
	if requested <= 0 {
		return settings.Get().PollIntervalMs
	}
	return max(requested, settings.MinPollIntervalMs)
}

func (c *WSClient) handleSubscribe(id string, payload json.RawMessage) {
	var req subscribeRequest
	reader, ok := c.decodeReader(id, payload, &req)
	if !ok {
		return
	}

	req.IntervalMs = pollInterval(req.IntervalMs)
	readerKey := reader.Name

	c.mu.Lock()
	if stop, ok := c.pollStops[readerKey]; ok {
		close(stop)
	}
	stop := make(chan struct{})
	c.pollStops[readerKey] = stop
	c.mu.Unlock()

	go c.poll(stop, time.Duration(req.IntervalMs)*time.Millisecond, reader)

	logging.Info(logging.CatWebSocket, "Client subscribed to reader", map[string]any{
		"client":     c.id,
		"reader":     readerKey,
		"intervalMs": req.IntervalMs,
	})
	c.sendResponse(id, "subscribed", map[string]interface{}{
		"readerIndex": req.ReaderIndex,
		"intervalMs":  req.IntervalMs,
	})
}

// poll reads the reader on every tick and emits tag_detected when the UID
// changes and tag_removed when a seen tag goes away. A tag without an
// identifier counts as no tag. Once stop is closed a read still in flight
// is discarded, so nothing follows the unsubscribed reply.
func (c *WSClient) poll(stop <-chan struct{}, interval time.Duration, reader core.Reader) {
	defer logging.RecoverAndLog("WebSocket poll goroutine", false)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	readerKey := reader.Name
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		card, err := readCard(readerKey)
		uid := ""
		if err == nil {
			uid = card.UID
		}

		c.mu.Lock()
		select {
		case <-stop:
			c.mu.Unlock()
			return
		default:
		}
		lastUID := c.lastUIDs[readerKey]
		c.lastUIDs[readerKey] = uid
		if event := tagEvent(reader, lastUID, uid, card); event != nil {
			c.enqueueLocked(event)
		}
		c.mu.Unlock()
	}
}

// tagEvent encodes the event for a UID change on reader, or nil if the UID
// did not change.
func tagEvent(reader core.Reader, lastUID, uid string, card *core.Card) []byte {
	switch {
	case uid == lastUID:
		return nil
	case uid == "":
		logging.Info(logging.CatCard, "Tag removed", map[string]any{
			"reader": reader.Name,
			"uid":    lastUID,
		})
		return encodeResponse("", "tag_removed", map[string]interface{}{
			"readerIndex": reader.Index,
			"readerName":  reader.Name,
			"uid":         lastUID,
		})
	default:
		logging.Info(logging.CatCard, "Tag detected", map[string]any{
			"reader": reader.Name,
			"uid":    uid,
			"family": string(card.Family),
		})
		return encodeResponse("", "tag_detected", map[string]interface{}{
			"readerIndex": reader.Index,
			"readerName":  reader.Name,
			"card":        card,
		})
	}
}

func (c *WSClient) handleUnsubscribe(id string, payload json.RawMessage) {
	var req readerRequest
	reader, ok := c.decodeReader(id, payload, &req)
	if !ok {
		return
	}

	c.mu.Lock()
	if stop, ok := c.pollStops[reader.Name]; ok {
		close(stop)
		delete(c.pollStops, reader.Name)
	}
	delete(c.lastUIDs, reader.Name)
	c.mu.Unlock()

	logging.Info(logging.CatWebSocket, "Client unsubscribed from reader", map[string]any{
		"client": c.id,
		"reader": reader.Name,
	})
	c.sendResponse(id, "unsubscribed", map[string]interface{}{
		"readerIndex": req.ReaderIndex,
	})
}
