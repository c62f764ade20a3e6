package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pveneroso/gogoame-2/internal/control"
	"github.com/pveneroso/gogoame-2/internal/game"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	// maxInboundMessage bounds one client command
	maxInboundMessage = 4096

	writeWait = 2 * time.Second
)

// Hub event names
const (
	EventState = "game:state"
	EventGame  = "game:event"
	EventError = "game:error"
	EventHello = "game:hello"
	EventHelp  = "game:help"
)

// wsCodec selects the frame encoding of one client
type wsCodec uint8

const (
	codecJSON wsCodec = iota
	codecMsgpack
)

// wsMessage is the envelope of every server push
type wsMessage struct {
	Event string      `json:"event" msgpack:"event"`
	Data  interface{} `json:"data" msgpack:"data"`
}

// encode renders msg for the codec: JSON text frames or msgpack binary frames.
func (m wsMessage) encode(codec wsCodec) (int, []byte, error) {
	if codec == codecMsgpack {
		b, err := marshalMsgpack(m)
		return websocket.BinaryMessage, b, err
	}
	b, err := json.Marshal(m)
	return websocket.TextMessage, b, err
}

// wsClient tracks a WebSocket connection with its source IP
type wsClient struct {
	id      string
	conn    *websocket.Conn
	ip      string
	codec   wsCodec
	writeMu sync.Mutex
}

func (c *wsClient) writeFrame(msgType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(msgType, data)
}

func (c *wsClient) send(event string, data interface{}) error {
	msgType, b, err := wsMessage{Event: event, Data: data}.encode(c.codec)
	if err != nil {
		return err
	}
	IncrementWSMessages("out")
	return c.writeFrame(msgType, b)
}

// BroadcastSource is what the hub pushes to clients.
type BroadcastSource interface {
	GetSnapshot() *game.GameSnapshot
	Subscribe(buffer int) (<-chan game.Event, func(), error)
}

// HubConfig tunes connection limits and command processing.
type HubConfig struct {
	Origins  []string // Allowed browser origins; nil uses DefaultOrigins
	MaxTotal int
	MaxPerIP int
	Queue    control.QueueConfig
}

// WebSocketHub manages all WebSocket connections with DoS protection.
// Clients receive game:state snapshots and game:event events and may send
// text or JSON commands, which are parsed by the control package.
type WebSocketHub struct {
	clients    map[*wsClient]struct{}
	broadcast  chan wsMessage
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex

	// Connection limiting per IP
	wsLimiter *WebSocketRateLimiter
	maxTotal  int
	upgrader  websocket.Upgrader

	handler  *control.Handler
	commands *control.CommandQueue

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWebSocketHub creates a new hub with connection limiting.
// No goroutines run until Start.
func NewWebSocketHub(handler *control.Handler, cfg HubConfig) *WebSocketHub {
	if cfg.MaxTotal <= 0 {
		cfg.MaxTotal = MaxWSConnectionsTotal
	}
	if cfg.MaxPerIP <= 0 {
		cfg.MaxPerIP = MaxWSConnectionsPerIP
	}
	origins := cfg.Origins
	if origins == nil {
		origins = DefaultOrigins
	}

	h := &WebSocketHub{
		clients:    make(map[*wsClient]struct{}),
		broadcast:  make(chan wsMessage, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		wsLimiter:  NewWebSocketRateLimiter(cfg.MaxPerIP),
		maxTotal:   cfg.MaxTotal,
		handler:    handler,
		commands:   control.NewCommandQueue(handler, cfg.Queue),
		stopChan:   make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if originAllowed(origin, origins) {
				return true
			}

			// Log rejected origin for security monitoring
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Start launches the hub loop and the command workers.
func (h *WebSocketHub) Start() {
	h.commands.Start()
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.Run()
	}()
}

// Stop closes every connection and stops all hub goroutines. Idempotent.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
		h.wg.Wait()
		h.commands.Stop()

		h.mu.Lock()
		for c := range h.clients {
			c.conn.Close()
			h.wsLimiter.Release(c.ip)
			delete(h.clients, c)
		}
		h.mu.Unlock()
		UpdateWSConnections(0)
	})
}

// Run is the hub loop; it returns when Stop is called.
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.stopChan:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client %s connected from %s (%d total)", client.id[:8], client.ip, count)
			UpdateWSConnections(count)

		case client := <-h.unregister:
			h.drop(client)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *WebSocketHub) drop(client *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		// Release the connection slot for this IP
		h.wsLimiter.Release(client.ip)
		delete(h.clients, client)
		client.conn.Close()
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.handler.Forget(client.id)
		log.Printf("📱 Client %s disconnected (%d remaining)", client.id[:8], count)
		UpdateWSConnections(count)
	}
}

// deliver encodes msg at most once per codec and writes it to every client.
func (h *WebSocketHub) deliver(msg wsMessage) {
	type frame struct {
		msgType int
		data    []byte
		err     error
	}
	var frames [2]*frame

	var dead []*wsClient
	h.mu.RLock()
	for c := range h.clients {
		f := frames[c.codec]
		if f == nil {
			f = &frame{}
			f.msgType, f.data, f.err = msg.encode(c.codec)
			frames[c.codec] = f
		}
		if f.err != nil {
			continue
		}
		if err := c.writeFrame(f.msgType, f.data); err != nil {
			dead = append(dead, c)
			continue
		}
		IncrementWSMessages("out")
	}
	h.mu.RUnlock()

	for _, c := range dead {
		h.drop(c)
	}
}

// Broadcast queues a message for all connected clients
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	select {
	case h.broadcast <- wsMessage{Event: event, Data: data}:
	default:
		// Channel full, skip (backpressure)
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CommandStats returns inbound command queue statistics
func (h *WebSocketHub) CommandStats() control.QueueStats {
	return h.commands.Stats()
}

// StartBroadcastLoop pushes a snapshot every interval while clients are
// connected and forwards every simulation event as it happens.
func (h *WebSocketHub) StartBroadcastLoop(source BroadcastSource, interval time.Duration) error {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	events, cancel, err := source.Subscribe(1024)
	if err != nil {
		return err
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var lastSeq uint64
		for {
			select {
			case <-h.stopChan:
				return
			case <-ticker.C:
				if h.ClientCount() == 0 {
					continue
				}
				snap := source.GetSnapshot()
				if snap.Sequence == lastSeq && !snap.Paused {
					continue
				}
				lastSeq = snap.Sequence
				h.Broadcast(EventState, snap)
			}
		}
	}()

	go func() {
		defer h.wg.Done()
		defer cancel()
		for {
			select {
			case <-h.stopChan:
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				if h.ClientCount() > 0 {
					h.Broadcast(EventGame, e)
				}
			}
		}
	}()
	return nil
}

// HandleWebSocket handles incoming WebSocket connections with DoS protection
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	// Check total connection limit
	if total := h.ClientCount(); total >= h.maxTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", total)
		RecordConnectionRejected("ws_total_limit")
		writeError(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	// Check per-IP connection limit
	if !h.wsLimiter.Allow(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		writeError(w, "too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.wsLimiter.Release(ip) // Release the slot we reserved
		return
	}
	conn.SetReadLimit(maxInboundMessage)

	client := &wsClient{id: uuid.NewString(), conn: conn, ip: ip}
	if r.URL.Query().Get("codec") == "msgpack" {
		client.codec = codecMsgpack
	}

	select {
	case h.register <- client:
	case <-h.stopChan:
		conn.Close()
		h.wsLimiter.Release(ip)
		return
	}
	client.send(EventHello, map[string]string{"clientId": client.id, "help": control.Help()})

	go h.readLoop(client)
}

// readLoop turns inbound frames into queued commands until the connection
// closes.
func (h *WebSocketHub) readLoop(client *wsClient) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.stopChan:
		}
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		IncrementWSMessages("in")

		cmd, err := control.Parse(message, client.id)
		if err != nil {
			RecordCommandRejected("parse")
			client.send(EventError, map[string]string{"error": err.Error()})
			continue
		}
		if cmd.Kind == control.CmdHelp {
			client.send(EventHelp, control.Help())
			continue
		}

		cmd.Reply = func(err error) {
			if err != nil {
				RecordCommandRejected(rejectReason(err))
				client.send(EventError, map[string]string{"error": err.Error(), "cmd": cmd.Kind.String()})
			}
		}
		if !h.commands.Enqueue(cmd) {
			RecordCommandRejected("queue_full")
			client.send(EventError, map[string]string{"error": "server busy", "cmd": cmd.Kind.String()})
		}
	}
}
