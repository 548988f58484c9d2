package gateway

import (
	"context"
	"net/http"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livetrivia/go/internal/broadcast"
	"github.com/mcdev12/livetrivia/go/internal/presence"
)

// Service is one process's slice of the fan-out plane: it holds the local
// websocket connections, keeps the shared presence registry in sync with
// them, and consumes the cross-process broadcast subject so events raised
// on any process reach the viewers attached here.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	consumer          *broadcast.Consumer
	tracker           *presence.Tracker
}

// Config holds the gateway's transport settings.
type Config struct {
	Connection ConnectionConfig
	Subject    string
}

func DefaultConfig() Config {
	return Config{
		Connection: DefaultConnectionConfig(),
		Subject:    broadcast.DefaultSubject,
	}
}

func NewService(config Config, nc *nats.Conn, router *Router, tracker *presence.Tracker, ids IdentityProvider) *Service {
	cm := NewConnectionManager(config.Connection)
	wsHandler := NewWebSocketHandler(cm, router, ids)
	consumer := broadcast.NewConsumer(nc, config.Subject, cm.Deliver)

	cm.onRegister = func(conn *Connection) {
		if err := tracker.TrackConnect(context.Background(), conn.ID); err != nil {
			// The viewer can still play; only the shared count is stale.
			log.Warn().Err(err).Str("connection_id", conn.ID).Msg("presence registration failed")
		}
	}
	cm.onUnregister = func(conn *Connection) {
		tracker.TrackDisconnect(context.Background(), conn.ID)
	}

	return &Service{
		connectionManager: cm,
		wsHandler:         wsHandler,
		consumer:          consumer,
		tracker:           tracker,
	}
}

// Start runs the broadcast consumer until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.wsHandler.SetBaseContext(ctx)
	log.Info().Msg("gateway service starting")
	return s.consumer.Start(ctx)
}

// RegisterRoutes wires the websocket endpoints onto the mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("gateway routes registered")
}

// LocalConnectionCount is exposed for the health endpoint.
func (s *Service) LocalConnectionCount() int {
	return s.connectionManager.LocalConnectionCount()
}
