package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livetrivia/go/internal/identity"
)

// IdentityProvider resolves a connection token to a viewer identity.
type IdentityProvider interface {
	Resolve(ctx context.Context, token string) (*identity.Viewer, error)
}

// WebSocketHandler upgrades viewer and admin connections.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	router            *Router
	ids               IdentityProvider

	// baseCtx outlives individual HTTP requests; request contexts die when
	// the upgrade handler returns, long before the connection does.
	baseCtx context.Context
}

func NewWebSocketHandler(cm *ConnectionManager, router *Router, ids IdentityProvider) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		router:            router,
		ids:               ids,
		baseCtx:           context.Background(),
	}
}

// SetBaseContext ties connection lifetimes to the service context.
func (h *WebSocketHandler) SetBaseContext(ctx context.Context) {
	h.baseCtx = ctx
}

// HandleViewerConnection upgrades a viewer websocket. The token identifies
// the viewer; the connection ID is fresh per physical connection.
func (h *WebSocketHandler) HandleViewerConnection(w http.ResponseWriter, r *http.Request) {
	h.handleConnection(w, r, false)
}

// HandleAdminConnection upgrades a privileged connection allowed to drive
// the state machine. The token must carry the admin role.
func (h *WebSocketHandler) HandleAdminConnection(w http.ResponseWriter, r *http.Request) {
	h.handleConnection(w, r, true)
}

func (h *WebSocketHandler) handleConnection(w http.ResponseWriter, r *http.Request, wantAdmin bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token is required", http.StatusUnauthorized)
		return
	}

	viewer, err := h.ids.Resolve(r.Context(), token)
	if err != nil {
		log.Warn().Err(err).Msg("connection token rejected")
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if wantAdmin && !viewer.Admin {
		log.Warn().Str("user_id", viewer.UserID).Msg("admin connection attempt without admin role")
		http.Error(w, "admin role required", http.StatusForbidden)
		return
	}

	wsConn, err := h.connectionManager.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	conn := &Connection{
		ID:          uuid.New().String(),
		Viewer:      viewer,
		Conn:        wsConn,
		Send:        make(chan []byte, 256),
		Manager:     h.connectionManager,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}
	h.connectionManager.registerConnection(conn)

	go conn.writePump()
	go conn.readPump(h.baseCtx, h.router)

	// Late joiners get the current game state immediately; the admin
	// console wants it too.
	h.router.SendWelcome(h.baseCtx, conn)

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", viewer.UserID).
		Bool("admin", viewer.Admin).
		Msg("websocket connection established")
}

// RegisterRoutes wires the websocket endpoints onto the mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/viewer", h.HandleViewerConnection)
	mux.HandleFunc("/ws/admin", h.HandleAdminConnection)
}
