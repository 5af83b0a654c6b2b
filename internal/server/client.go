package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/chatline/internal/domain"
	"github.com/nfrund/chatline/internal/hub"
	"github.com/nfrund/chatline/internal/transport"
)

const writeTimeout = 10 * time.Second

// client is a middleman between one websocket connection and the hub.
type client struct {
	conn       *websocket.Conn
	subscriber *hub.Subscriber
	server     *Server
	logger     *slog.Logger
}

// ServeWS upgrades the request and starts the connection pumps.
func (s *Server) ServeWS(c echo.Context) error {
	logger := loggerFrom(c.Request().Context(), s.logger)

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		// Local development relay; any origin may connect.
		InsecureSkipVerify: true,
	})
	if err != nil {
		// Accept has already written the HTTP error response.
		logger.Error("Failed to upgrade WebSocket connection", "error", err)
		return nil
	}

	sub := hub.NewSubscriber(uuid.NewString(), s.sendBuffer)
	cl := &client{
		conn:       conn,
		subscriber: sub,
		server:     s,
		logger:     logger.With("client_id", sub.ID),
	}

	ctx := c.Request().Context()
	select {
	case s.hub.Register <- sub:
	case <-s.hub.Done():
		conn.Close(websocket.StatusGoingAway, "relay shutting down")
		return nil
	case <-ctx.Done():
		conn.CloseNow()
		return nil
	}

	go cl.writePump()
	cl.readPump(ctx)
	return nil
}

// readPump reads frames until the connection ends. It is the only reader.
func (c *client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.server.hub.Unregister <- c.subscriber:
		case <-c.server.hub.Done():
		case <-ctx.Done():
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, frame, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				c.logger.Info("WebSocket closed normally")
			} else {
				c.logger.Debug("readPump ended", "error", err)
			}
			return
		}

		env, err := transport.Decode(frame)
		if err != nil {
			c.logger.Warn("Dropping malformed frame", "error", err)
			continue
		}

		switch env.Event {
		case transport.EventJoin:
			c.handleJoin(env.Data)
		case transport.EventMessage:
			c.handleMessage(ctx, env.Data, frame)
		default:
			c.logger.Debug("Ignoring unknown event", "event", env.Event)
		}
	}
}

func (c *client) handleJoin(data json.RawMessage) {
	var name string
	if err := json.Unmarshal(data, &name); err != nil || domain.Blank(name) {
		c.logger.Warn("Ignoring invalid join", "data", string(data))
		return
	}
	c.subscriber.Name = name
	c.logger = c.logger.With("username", name)
	c.logger.Info("Client joined")
}

func (c *client) handleMessage(ctx context.Context, data json.RawMessage, frame []byte) {
	var msg domain.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("Ignoring undecodable message", "error", err)
		return
	}
	if err := c.server.validate.Struct(msg); err != nil {
		c.logger.Warn("Ignoring invalid message", "error", err)
		return
	}

	select {
	case c.server.hub.Broadcast <- frame:
	case <-c.server.hub.Done():
	case <-ctx.Done():
	}
}

// writePump forwards hub frames to the connection until the hub closes Send.
func (c *client) writePump() {
	defer c.conn.Close(websocket.StatusNormalClosure, "")

	for frame := range c.subscriber.Send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, frame)
		cancel()
		if err != nil {
			c.logger.Error("writePump error", "error", err)
			return
		}
	}
}
