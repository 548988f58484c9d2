package presence

import (
	"context"
	"errors"
	"testing"

	"github.com/mcdev12/livetrivia/go/internal/game"
	"github.com/mcdev12/livetrivia/go/internal/store"
)

func TestTrackerCountsAcrossConnections(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	tracker := New(mem)

	for _, id := range []string{"a", "b", "c"} {
		if err := tracker.TrackConnect(ctx, id); err != nil {
			t.Fatalf("TrackConnect(%s): %v", id, err)
		}
	}
	// Re-adding an already tracked connection is a no-op.
	if err := tracker.TrackConnect(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	n, err := tracker.CurrentViewerCount(ctx)
	if err != nil {
		t.Fatalf("CurrentViewerCount: %v", err)
	}
	if n != 3 {
		t.Errorf("viewer count = %d, want 3", n)
	}

	tracker.TrackDisconnect(ctx, "b")
	n, err = tracker.CurrentViewerCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("viewer count after disconnect = %d, want 2", n)
	}
}

func TestViewerCountUnavailableIsNotZero(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	tracker := New(mem)

	if err := tracker.TrackConnect(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	mem.FailOp("scard", store.ErrUnavailable)
	_, err := tracker.CurrentViewerCount(ctx)
	if !errors.Is(err, game.ErrPresenceUnavailable) {
		t.Fatalf("CurrentViewerCount with registry down = %v, want ErrPresenceUnavailable", err)
	}
}
