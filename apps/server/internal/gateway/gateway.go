package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"rpg-lite/apps/server/internal/auth"
	"rpg-lite/apps/server/internal/codec"
	"rpg-lite/apps/server/internal/engine"
)

const (
	readLimit    = 1 << 20
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 256
	maxInFlight  = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Bridges are servers holding a signed token, not browsers.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type outbound struct {
	frame codec.Frame
	data  []byte
}

// Connection is one authenticated chat bridge. Every request it sends runs
// on its own goroutine; replies and pushes share the write pump.
type Connection struct {
	ID    string
	BotID string

	conn    *websocket.Conn
	send    chan outbound
	gateway *Gateway
	ctx     context.Context
	cancel  context.CancelFunc
	slots   chan struct{}
	wg      sync.WaitGroup
}

// Gateway accepts chat bridges on /ws.
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	nextConnID  uint64
	engine      *engine.Engine
	tokens      *auth.BridgeTokens
}

func New(eng *engine.Engine, tokens *auth.BridgeTokens) *Gateway {
	return &Gateway{
		connections: make(map[string]*Connection),
		engine:      eng,
		tokens:      tokens,
	}
}

func (g *Gateway) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", g.HandleWebSocket)
}

func tokenFrom(r *http.Request) string {
	if tok := auth.BearerToken(r.Header.Get("Authorization")); tok != "" {
		return tok
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// HandleWebSocket authenticates the bridge token and upgrades.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	botID, err := g.tokens.Verify(tokenFrom(r))
	if err != nil {
		log.Printf("[Gateway] rejected bridge from %s: %v", r.RemoteAddr, err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] Upgrade error: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.mu.Lock()
	g.nextConnID++
	c := &Connection{
		ID:      fmt.Sprintf("conn_%d", g.nextConnID),
		BotID:   botID,
		conn:    conn,
		send:    make(chan outbound, sendBuffer),
		gateway: g,
		ctx:     ctx,
		cancel:  cancel,
		slots:   make(chan struct{}, maxInFlight),
	}
	g.connections[c.ID] = c
	total := len(g.connections)
	g.mu.Unlock()

	log.Printf("[Gateway] Bridge connected: %s (bot=%s), total: %d", c.ID, botID, total)

	go c.readPump()
	go c.writePump()
}

// Count reports live connections.
func (g *Gateway) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connections)
}

// Close cancels every connection; in-flight requests see a cancelled context.
func (g *Gateway) Close() {
	g.mu.RLock()
	conns := make([]*Connection, 0, len(g.connections))
	for _, c := range g.connections {
		conns = append(conns, c)
	}
	g.mu.RUnlock()
	for _, c := range conns {
		c.cancel()
		c.conn.Close()
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.cancel()
		c.wg.Wait()
		c.gateway.removeConnection(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] Read error: %v", err)
			}
			return
		}

		frame := codec.FrameText
		if messageType == websocket.BinaryMessage {
			frame = codec.FrameBinary
		}
		req, err := codec.DecodeRequest(frame, message)
		if err != nil {
			c.reply(frame, codec.Reply{ID: req.ID, Op: req.Op, Code: codeBadRequest, Error: err.Error()})
			continue
		}

		select {
		case c.slots <- struct{}{}:
		case <-c.ctx.Done():
			return
		}
		c.wg.Add(1)
		go func() {
			defer func() {
				<-c.slots
				c.wg.Done()
			}()
			c.dispatch(frame, req)
		}()
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			kind := websocket.TextMessage
			if msg.frame == codec.FrameBinary {
				kind = websocket.BinaryMessage
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(kind, msg.data); err != nil {
				c.cancel()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// enqueue hands an envelope to the write pump. Replies wait for buffer room;
// pushes are dropped when the bridge is not keeping up.
func (c *Connection) enqueue(frame codec.Frame, v any, mayDrop bool) {
	data, err := codec.Encode(frame, v)
	if err != nil {
		log.Printf("[Gateway] encode %T: %v", v, err)
		return
	}
	msg := outbound{frame: frame, data: data}
	if mayDrop {
		select {
		case c.send <- msg:
		case <-c.ctx.Done():
		default:
			log.Printf("[Gateway] %s: push dropped, send buffer full", c.ID)
		}
		return
	}
	select {
	case c.send <- msg:
	case <-c.ctx.Done():
	}
}

func (c *Connection) reply(frame codec.Frame, r codec.Reply) { c.enqueue(frame, r, false) }

func (c *Connection) push(frame codec.Frame, p codec.Push) { c.enqueue(frame, p, true) }

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.connections, c.ID)
	log.Printf("[Gateway] Bridge disconnected: %s, total: %d", c.ID, len(g.connections))
}
