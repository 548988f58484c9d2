package broadcast

import "context"

// Broadcaster fans engine events out to viewers. Broadcast reaches every
// connection on every process; Unicast reaches exactly one connection, on
// whichever process holds it. Delivery is at-least-once; viewers handle
// duplicates idempotently, so the broadcaster itself never retries.
type Broadcaster interface {
	Broadcast(ctx context.Context, typ EventType, payload any) error
	Unicast(ctx context.Context, connID string, typ EventType, payload any) error
}
