package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wicaksana/sapa-server/domain/entities"
	"github.com/wicaksana/sapa-server/domain/repositories"
	"github.com/wicaksana/sapa-server/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Frames and utterances come
	// base64 encoded inside JSON.
	maxMessageSize = 4 * 1024 * 1024

	// Deadline for one full media cycle.
	cycleTimeout = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Kiosks authenticate with a JWT before the upgrade.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// StreamFactory opens a new face link for one session.
type StreamFactory func() repositories.FaceStream

// Hub maintains the set of active clients.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	service   *usecase.ReceptionService
	newStream StreamFactory

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(service *usecase.ReceptionService, newStream StreamFactory, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		service:    service,
		newStream:  newStream,
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.kioskID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("kioskID", client.kioskID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.kioskID]; ok {
				delete(h.clients, client.kioskID)
				client.closeSend()
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("kioskID", client.kioskID))
		}
	}
}

type WriteData struct {
	// Type is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Kiosk ID for this client
	kioskID string

	// Per-connection orchestration state
	session *usecase.Session

	// Guards send against writes after unregister; a cycle goroutine can
	// outlive the connection that spawned it.
	sendMu     sync.Mutex
	sendClosed bool

	// Logger
	logger *zap.Logger
}

// HandleWebSocketWithAuth handles websocket requests with pre-authenticated kiosk ID
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, kioskID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan WriteData, 256),
		kioskID: kioskID,
		session: usecase.NewSession(kioskID, hub.newStream()),
		logger:  logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.session.Close(ctx); err != nil {
			c.logger.Warn("Session close failed", zap.Error(err))
		}
		cancel()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}
		if messageType != websocket.TextMessage {
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
			continue
		}
		if stop := c.processMessage(message); stop {
			break
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
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

// processMessage dispatches one inbound message. Returns true when the
// session should end.
func (c *Client) processMessage(message []byte) bool {
	msg, kind, err := ParseClientMessage(message)
	if err != nil {
		c.logger.Warn("Rejected client message", zap.Error(err))
		c.reply(NewErrorReply(err.Error()))
		return false
	}

	switch kind {
	case MessageKindConfigure:
		c.handleConfigure(msg)
	case MessageKindClose:
		c.logger.Info("Client requested close", zap.String("kioskID", c.kioskID))
		return true
	case MessageKindAudio:
		c.handleAudio(msg.Audio)
	case MessageKindVideo:
		c.handleVideo(msg.Video)
	}
	return false
}

func (c *Client) handleConfigure(msg *ClientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := repositories.FaceStreamConfig{Threshold: msg.Threshold, MaxFaces: msg.MaxFaces}
	if err := c.hub.service.Configure(ctx, c.session, cfg); err != nil {
		c.logger.Error("Configure failed", zap.Error(err))
		c.reply(NewErrorReply("configure failed"))
		return
	}
	c.logger.Info("Session configured",
		zap.String("kioskID", c.kioskID),
		zap.Float64("threshold", msg.Threshold),
		zap.Int("maxFaces", msg.MaxFaces))
}

// handleAudio launches one utterance cycle. A cycle already in flight
// means this utterance is dropped, never queued.
func (c *Client) handleAudio(encoded string) {
	pcm, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		c.reply(NewErrorReply("invalid audio encoding"))
		return
	}

	if !c.session.TryBeginAudio() {
		c.logger.Debug("Dropping utterance, audio cycle in flight",
			zap.String("kioskID", c.kioskID))
		return
	}

	go func() {
		defer c.session.EndAudio()
		ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
		defer cancel()

		reply, err := c.hub.service.ProcessAudio(ctx, c.session, pcm)
		if err != nil {
			c.replyError("audio", err)
			return
		}
		c.replyMedia(reply)
	}()
}

// handleVideo launches one frame cycle with the same drop-don't-queue rule.
func (c *Client) handleVideo(encoded string) {
	jpeg, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		c.reply(NewErrorReply("invalid video encoding"))
		return
	}

	if !c.session.TryBeginVideo() {
		c.logger.Debug("Dropping frame, video cycle in flight",
			zap.String("kioskID", c.kioskID))
		return
	}

	go func() {
		defer c.session.EndVideo()
		ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
		defer cancel()

		reply, err := c.hub.service.ProcessVideo(ctx, c.session, jpeg)
		if err != nil {
			c.replyError("video", err)
			return
		}
		c.replyMedia(reply)
	}()
}

func (c *Client) replyMedia(reply *usecase.Reply) {
	out := MediaReply{
		Valid:      reply.Valid,
		Lipsync:    reply.Lipsync,
		IsGreeting: reply.IsGreeting,
	}
	if len(reply.Audio) > 0 {
		out.Audio = base64.StdEncoding.EncodeToString(reply.Audio)
	}

	payload, err := json.Marshal(out)
	if err != nil {
		c.logger.Error("Failed to marshal reply", zap.Error(err))
		return
	}
	c.reply(payload)
}

func (c *Client) replyError(channel string, err error) {
	c.logger.Error("Media cycle failed",
		zap.String("kioskID", c.kioskID),
		zap.String("channel", channel),
		zap.Error(err))

	if errors.Is(err, entities.ErrLinkClosed) {
		// Session is going away; nothing useful to tell the kiosk.
		return
	}

	// Malformed units and provider failures both yield an invalid reply:
	// the kiosk stays idle and retries on the next naturally arriving unit.
	payload, _ := json.Marshal(MediaReply{Valid: false})
	c.reply(payload)
}

// closeSend shuts the send channel exactly once. Called by the hub on
// unregister.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

func (c *Client) reply(payload []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		c.logger.Debug("Client gone, dropping reply",
			zap.String("kioskID", c.kioskID))
		return
	}

	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Send buffer full, dropping reply",
			zap.String("kioskID", c.kioskID))
	}
}
