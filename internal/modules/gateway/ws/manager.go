package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/frankieli/raffle_engine/pkg/logger"
)

type CloseReason string

const (
	ReasonWriteError CloseReason = "write_error"
	ReasonPingError  CloseReason = "ping_error"
	ReasonReadError  CloseReason = "read_error"
	ReasonShutdown   CloseReason = "server_shutdown"
	ReasonBufferFull CloseReason = "buffer_full"
)

var ErrManagerClosed = errors.New("ws manager closed")

// Options tune the per-connection pumps.
type Options struct {
	PingInterval   time.Duration
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int
	NodeID         int64
}

func (o Options) withDefaults() Options {
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 512
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	return o
}

// Connection is one websocket peer. UserID is empty for anonymous observers.
type Connection struct {
	ID      int64
	UserID  string
	Conn    *websocket.Conn
	Send    chan []byte
	manager *Manager

	closeOnce sync.Once
}

// Manager tracks live connections. A user may hold several connections.
type Manager struct {
	opts Options
	node *snowflake.Node

	clients map[int64]*Connection
	byUser  map[string]map[int64]*Connection
	mu      sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	done       chan struct{}
	closeOnce  sync.Once
}

func NewManager(opts Options) (*Manager, error) {
	opts = opts.withDefaults()
	node, err := snowflake.NewNode(opts.NodeID)
	if err != nil {
		return nil, err
	}
	return &Manager{
		opts:       opts,
		node:       node,
		clients:    make(map[int64]*Connection),
		byUser:     make(map[string]map[int64]*Connection),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		done:       make(chan struct{}),
	}, nil
}

// Register hands conn to the Run loop. Run must be active.
func (m *Manager) Register(conn *websocket.Conn, userID string) (*Connection, error) {
	c := &Connection{
		ID:      m.node.Generate().Int64(),
		UserID:  userID,
		Conn:    conn,
		Send:    make(chan []byte, m.opts.SendBuffer),
		manager: m,
	}
	select {
	case m.register <- c:
		return c, nil
	case <-m.done:
		return nil, ErrManagerClosed
	}
}

// Run owns registration until ctx is cancelled, then closes every connection.
func (m *Manager) Run(ctx context.Context) {
	defer m.Shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-m.register:
			m.add(c)
		case c := <-m.unregister:
			m.remove(c)
		}
	}
}

func (m *Manager) add(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = c
	if c.UserID != "" {
		conns, ok := m.byUser[c.UserID]
		if !ok {
			conns = make(map[int64]*Connection)
			m.byUser[c.UserID] = conns
		}
		conns[c.ID] = c
	}
}

func (m *Manager) remove(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, c.ID)
	if conns, ok := m.byUser[c.UserID]; ok {
		delete(conns, c.ID)
		if len(conns) == 0 {
			delete(m.byUser, c.UserID)
		}
	}
}

// Count returns the number of registered connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Broadcast queues message on every connection. Slow peers are dropped.
func (m *Manager) Broadcast(message []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.clients {
		c.enqueue(message)
	}
}

// SendToUser queues message on every connection of userID.
func (m *Manager) SendToUser(userID string, message []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.byUser[userID] {
		c.enqueue(message)
	}
}

// Shutdown closes all connections. Safe to call more than once.
func (m *Manager) Shutdown() {
	m.closeOnce.Do(func() { close(m.done) })

	m.mu.Lock()
	conns := make([]*Connection, 0, len(m.clients))
	for _, c := range m.clients {
		conns = append(conns, c)
	}
	m.clients = make(map[int64]*Connection)
	m.byUser = make(map[string]map[int64]*Connection)
	m.mu.Unlock()

	for _, c := range conns {
		c.CloseWithReason(ReasonShutdown, nil)
	}
}

func (c *Connection) enqueue(message []byte) {
	select {
	case c.Send <- message:
	default:
		c.CloseWithReason(ReasonBufferFull, nil)
	}
}

// CloseWithReason closes the socket once; ReadPump then unregisters it.
func (c *Connection) CloseWithReason(r CloseReason, err error) {
	c.closeOnce.Do(func() {
		var ev *zerolog.Event
		if err != nil {
			ev = logger.WarnGlobal().Err(err)
		} else {
			ev = logger.InfoGlobal()
		}
		ev.Int64("conn_id", c.ID).
			Str("user_id", c.UserID).
			Str("reason", string(r)).
			Msg("ws connection closed")
		c.Conn.Close()
	})
}

// WritePump drains Send to the socket and keeps the peer alive with pings.
func (c *Connection) WritePump() {
	opts := c.manager.opts
	ticker := time.NewTicker(opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.CloseWithReason(ReasonWriteError, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.CloseWithReason(ReasonPingError, err)
				return
			}

		case <-c.manager.done:
			return
		}
	}
}

// ReadPump reads client frames until the socket fails, passing each to handle.
func (c *Connection) ReadPump(handle func(c *Connection, message []byte)) {
	var readErr error
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.done:
		}
		c.CloseWithReason(ReasonReadError, readErr)
	}()

	opts := c.manager.opts
	c.Conn.SetReadLimit(opts.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				readErr = err
			}
			return
		}
		handle(c, message)
	}
}

// Reply queues message for this connection only.
func (c *Connection) Reply(message []byte) {
	c.enqueue(message)
}
