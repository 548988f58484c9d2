package presence

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livetrivia/go/internal/game"
	"github.com/mcdev12/livetrivia/go/internal/store"
)

// Tracker maintains and reads the cross-process registry of connected
// viewers. Every process adds its connections to the shared livePlayers
// set, so any process can answer "how many viewers right now". The view is
// eventually consistent: staleness equals the store's propagation delay.
type Tracker struct {
	store store.Store
}

func New(st store.Store) *Tracker {
	return &Tracker{store: st}
}

// TrackConnect registers a connection in the shared registry.
func (t *Tracker) TrackConnect(ctx context.Context, connID string) error {
	if err := t.store.SAdd(ctx, game.KeyLivePlayers, connID); err != nil {
		return fmt.Errorf("track connect %s: %w", connID, err)
	}
	return nil
}

// TrackDisconnect removes a connection from the shared registry. Best
// effort: a crashed process leaves stale members until its IDs cycle out,
// which the eventual-consistency contract tolerates.
func (t *Tracker) TrackDisconnect(ctx context.Context, connID string) {
	if err := t.store.SRem(ctx, game.KeyLivePlayers, connID); err != nil {
		log.Warn().Err(err).Str("connection_id", connID).Msg("failed to remove connection from presence registry")
	}
}

// CurrentViewerCount returns the point-in-time number of connected viewers
// across all processes. A registry failure is ErrPresenceUnavailable, never
// a count of zero.
func (t *Tracker) CurrentViewerCount(ctx context.Context) (int64, error) {
	n, err := t.store.SCard(ctx, game.KeyLivePlayers)
	if err != nil {
		return 0, fmt.Errorf("count live players: %w: %w", game.ErrPresenceUnavailable, err)
	}
	return n, nil
}
