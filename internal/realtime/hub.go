package realtime

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/studyhall/internal/auth"
	"github.com/charlesng35/studyhall/internal/study"
	"github.com/charlesng35/studyhall/pkg/logger"
	"github.com/charlesng35/studyhall/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultMaxMessageSize = 64 << 10
	defaultSendBuffer     = 64
)

// ChatRoom is the hub room of a chat.
func ChatRoom(id string) string { return "chat:" + id }

// CallRoom is the hub room of a video call.
func CallRoom(id string) string { return "call:" + id }

// HubConfig tunes connection buffers and origin checks.
type HubConfig struct {
	SendBuffer     int
	MaxMessageSize int64
	// AllowedOrigins lists extra browser origins; "*" allows any. Same-origin and loopback
	// origins are always accepted.
	AllowedOrigins []string
}

// Hub tracks websocket connections and the rooms they belong to.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}
	conns map[*Conn]struct{}

	upgrader       websocket.Upgrader
	sendBuffer     int
	maxMessageSize int64
	log            *zap.Logger
}

// NewHub constructs a realtime hub.
func NewHub(cfg HubConfig) *Hub {
	h := &Hub{
		rooms:          make(map[string]map[*Conn]struct{}),
		conns:          make(map[*Conn]struct{}),
		sendBuffer:     cfg.SendBuffer,
		maxMessageSize: cfg.MaxMessageSize,
		log:            logger.WithModule("realtime"),
	}
	if h.sendBuffer <= 0 {
		h.sendBuffer = defaultSendBuffer
	}
	if h.maxMessageSize <= 0 {
		h.maxMessageSize = defaultMaxMessageSize
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if origin = strings.ToLower(strings.TrimSpace(origin)); origin != "" {
			allowed[strings.TrimSuffix(origin, "/")] = struct{}{}
		}
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowed["*"]; ok {
				return true
			}
			if _, ok := allowed[strings.ToLower(strings.TrimSuffix(origin, "/"))]; ok {
				return true
			}
			originHost := hostWithoutPort(origin)
			return originHost == hostWithoutPort(r.Host) || isLoopback(originHost)
		},
	}
	return h
}

// Upgrade switches the request to a websocket and registers the connection.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request, identity auth.Identity) (*Conn, error) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		id:       uuid.NewString(),
		hub:      h,
		socket:   socket,
		identity: identity,
		send:     make(chan []byte, h.sendBuffer),
		done:     make(chan struct{}),
		rooms:    make(map[string]struct{}),
		calls:    make(map[string]struct{}),
	}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	metrics.RealtimeConnections.Inc()
	return c, nil
}

// Join adds the connection to a room. It reports whether the connection was newly added.
func (h *Hub) Join(c *Conn, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; !ok {
		return false
	}
	if _, ok := c.rooms[room]; ok {
		return false
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[*Conn]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
	return true
}

// Leave removes the connection from a room.
func (h *Hub) Leave(c *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Conn, room string) {
	delete(c.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Broadcast delivers an event to every connection in the room.
func (h *Hub) Broadcast(room, event string, data any) {
	h.BroadcastExcept(room, nil, event, data)
}

// BroadcastExcept delivers an event to the room, skipping one connection.
func (h *Hub) BroadcastExcept(room string, except *Conn, event string, data any) {
	frame, ok := h.encode(event, data)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		if c != except {
			h.enqueue(c, frame)
		}
	}
}

// BroadcastRooms delivers an event once to every connection in any of the rooms.
func (h *Hub) BroadcastRooms(rooms []string, event string, data any) {
	h.BroadcastRoomsExcept(rooms, nil, event, data)
}

// BroadcastRoomsExcept delivers an event once to every connection in any of the rooms,
// skipping one connection.
func (h *Hub) BroadcastRoomsExcept(rooms []string, except *Conn, event string, data any) {
	frame, ok := h.encode(event, data)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[*Conn]struct{})
	if except != nil {
		seen[except] = struct{}{}
	}
	for _, room := range rooms {
		for c := range h.rooms[room] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			h.enqueue(c, frame)
		}
	}
}

// Send delivers an event to a single connection.
func (h *Hub) Send(c *Conn, event string, data any) {
	frame, ok := h.encode(event, data)
	if !ok {
		return
	}
	h.enqueue(c, frame)
}

// Publish implements study.Notifier by broadcasting to the chat room.
func (h *Hub) Publish(roomID string, ev study.Event) {
	h.Broadcast(ChatRoom(roomID), ev.EventName(), ev)
}

// RoomSize returns the number of connections in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close disconnects every connection.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.Close()
	}
}

func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; !ok {
		return
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	delete(h.conns, c)
	metrics.RealtimeConnections.Dec()
}

func (h *Hub) encode(event string, data any) ([]byte, bool) {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		h.log.Error("failed to encode frame", zap.String("event", event), zap.Error(err))
		return nil, false
	}
	return frame, true
}

// enqueue never blocks. A connection whose buffer is full is dropped.
func (h *Hub) enqueue(c *Conn, frame []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- frame:
	default:
		metrics.RealtimeDropped.Inc()
		h.log.Warn("dropping slow connection", zap.String("conn_id", c.id), zap.String("user_id", c.identity.UserID))
		go c.Close()
	}
}

// Conn is one authenticated websocket connection.
type Conn struct {
	id       string
	hub      *Hub
	socket   *websocket.Conn
	identity auth.Identity
	send     chan []byte
	done     chan struct{}
	once     sync.Once

	rooms map[string]struct{} // guarded by hub.mu
	calls map[string]struct{} // owned by the event loop
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// Identity returns the authenticated user.
func (c *Conn) Identity() auth.Identity { return c.identity }

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Serve pumps frames until the socket fails or the connection is closed. handle is called
// for every inbound text frame, one at a time.
func (c *Conn) Serve(handle func(payload []byte)) {
	go c.writeLoop()
	c.readLoop(handle)
}

// Close disconnects and unregisters the connection.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		c.hub.unregister(c)
		_ = c.socket.Close()
	})
}

func (c *Conn) readLoop(handle func([]byte)) {
	defer c.Close()

	c.socket.SetReadLimit(c.hub.maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.hub.log.Debug("unexpected close", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		if len(payload) == 0 {
			continue
		}
		handle(payload)
	}
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if strings.Contains(host, "://") {
		if parsed, err := url.Parse(host); err == nil {
			return hostWithoutPort(parsed.Host)
		}
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
