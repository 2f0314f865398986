package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxFrameSize = 64 * 1024

// MessageProcessor handles one inbound frame and returns the reply, if any.
type MessageProcessor interface {
	Process(ctx context.Context, source string, raw []byte) ([]byte, error)
}

// Connection is one device stream.
type Connection struct {
	id           string
	source       string
	ws           *websocket.Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	logger       *zap.Logger
	processor    MessageProcessor
	writeTimeout time.Duration
	pingInterval time.Duration
	frameTimeout time.Duration
	onClose      func(id string)
}

// NewConnection builds connection wrapper.
func NewConnection(id, source string, ws *websocket.Conn, processor MessageProcessor, opts Options, logger *zap.Logger, onClose func(string)) *Connection {
	opts = opts.withDefaults()
	return &Connection{
		id:           id,
		source:       source,
		ws:           ws,
		send:         make(chan []byte, 16),
		done:         make(chan struct{}),
		logger:       logger.With(zap.String("conn_id", id), zap.String("source", source)),
		processor:    processor,
		writeTimeout: opts.WriteTimeout,
		pingInterval: opts.PingInterval,
		frameTimeout: opts.FrameTimeout,
		onClose:      onClose,
	}
}

// ID returns the connection identifier.
func (c *Connection) ID() string {
	return c.id
}

// Start runs the write pump in the background and reads until the peer goes away.
func (c *Connection) Start(ctx context.Context) {
	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Connection) pongWait() time.Duration {
	return 2 * c.pingInterval
}

func (c *Connection) readPump(ctx context.Context) {
	defer c.cleanup()
	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	for {
		if ctx.Err() != nil {
			return
		}

		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("stream closed unexpectedly", zap.Error(err))
			} else {
				c.logger.Info("stream closed", zap.Error(err))
			}
			return
		}

		response, err := c.process(ctx, message)
		if err != nil {
			c.logger.Warn("failed to process frame", zap.Error(err))
			continue
		}
		if response != nil {
			c.Send(response)
		}
	}
}

func (c *Connection) process(ctx context.Context, message []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.frameTimeout)
	defer cancel()
	return c.processor.Process(ctx, c.source, message)
}

func (c *Connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send enqueues a reply. Replies to a closed or saturated connection are dropped.
func (c *Connection) Send(msg []byte) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		c.logger.Warn("dropping outgoing message, buffer full")
	}
}

// Close asks the peer to close and unblocks the pumps.
func (c *Connection) Close() {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
		time.Now().Add(c.writeTimeout))
	_ = c.ws.Close()
}

func (c *Connection) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Connection) cleanup() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.onClose != nil {
			c.onClose(c.id)
		}
	})
}
