package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	// Time allowed for a NEW_GAME command to generate the population.
	commandTimeout = 5 * time.Second
)

// Command types accepted from clients.
const (
	CommandFeed    = "FEED"
	CommandJump    = "JUMP"
	CommandNewGame = "NEW_GAME"
)

// Reply types sent back to the client that issued a command.
const (
	ReplyAck   = "ACK"
	ReplyError = "ERROR"
)

// ClientCommand represents an incoming command from a client.
type ClientCommand struct {
	Type string `json:"type"`
}

// CommandReply tells a client how its command was handled.
type CommandReply struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Ended   bool   `json:"ended,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client is an active WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu             sync.Mutex
	lastActionTime time.Time
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// Register adds the client to the hub.
func (c *Client) Register() {
	c.hub.enqueue(c.hub.register, c)
}

func (c *Client) remote() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// ReadPump pumps commands from the websocket connection to the engine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.enqueue(c.hub.unregister, c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.metrics.RecordWSError()
				c.hub.logger.Warn("websocket read failed", "remote", c.remote(), "error", err)
			}
			break
		}
		c.hub.metrics.RecordWSMessage(true)

		var cmd ClientCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.hub.logger.Warn("failed to parse client command", "remote", c.remote(), "error", err)
			c.reply(CommandReply{Type: ReplyError, Error: "invalid command"})
			continue
		}

		c.reply(c.handleCommand(cmd))
	}
}

func (c *Client) handleCommand(cmd ClientCommand) CommandReply {
	reply := CommandReply{Type: ReplyAck, Command: cmd.Type}

	if !c.allow(time.Now()) {
		c.hub.logger.Warn("rate limit exceeded", "remote", c.remote(), "command", cmd.Type)
		reply.Type, reply.Error = ReplyError, "rate limited"
		return reply
	}

	var err error
	switch cmd.Type {
	case CommandFeed:
		err = c.hub.commander.Feed()
	case CommandJump:
		reply.Ended, err = c.hub.commander.Jump()
	case CommandNewGame:
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		err = c.hub.commander.NewGame(ctx)
		cancel()
	default:
		c.hub.logger.Warn("unknown client command", "command", cmd.Type)
		reply.Type, reply.Error = ReplyError, "unknown command"
		return reply
	}
	if err != nil {
		reply.Type, reply.Error = ReplyError, err.Error()
		return reply
	}
	c.hub.logger.Event("CLIENT_COMMAND", c.remote(), cmd.Type)
	return reply
}

// allow applies the per-client rate limit.
func (c *Client) allow(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lastActionTime.IsZero() && now.Sub(c.lastActionTime) < c.hub.rateLimit {
		return false
	}
	c.lastActionTime = now
	return true
}

func (c *Client) reply(r CommandReply) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	c.hub.send(c, data)
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				c.hub.metrics.RecordWSError()
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				c.hub.metrics.RecordWSError()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
