package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultFrameTimeout = 5 * time.Second
)

// Options tunes keepalive and write deadlines.
type Options struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	// FrameTimeout bounds the processing of one inbound frame.
	FrameTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = defaultPingInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.FrameTimeout <= 0 {
		o.FrameTimeout = defaultFrameTimeout
	}
	return o
}

// Server upgrades HTTP requests to device telemetry streams.
type Server struct {
	manager   *Manager
	processor MessageProcessor
	logger    *zap.Logger
	opts      Options
	upgrader  websocket.Upgrader
}

// NewServer builds ws server.
func NewServer(manager *Manager, processor MessageProcessor, opts Options, logger *zap.Logger) *Server {
	return &Server{
		manager:   manager,
		processor: processor,
		logger:    logger,
		opts:      opts.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is the HTTP handler for the stream endpoint. The optional source query
// parameter labels the producer in logs.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		source = r.RemoteAddr
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	connection := NewConnection(id, source, conn, s.processor, s.opts, s.logger, func(id string) {
		s.manager.Remove(id)
		cancel()
		_ = conn.Close()
	})
	s.manager.Add(connection)

	go connection.Start(ctx)
	s.logger.Info("stream connected", zap.String("conn_id", id), zap.String("source", source))
}
