package game

import "errors"

// Engine error taxonomy. Callers classify with errors.Is; the gateway maps
// each to a unicast error event and never leaks raw store errors to viewers.
var (
	// ErrStoreUnavailable: transient shared-store failure. Retryable by the
	// caller; never auto-retried inside the engine.
	ErrStoreUnavailable = errors.New("shared store unavailable")

	// ErrPresenceUnavailable: the viewer-count registry could not be read.
	// Distinct from a count of zero.
	ErrPresenceUnavailable = errors.New("presence unavailable")

	// ErrInvalidTransition: a state-machine command was issued from a state
	// whose preconditions do not allow it.
	ErrInvalidTransition = errors.New("invalid game transition")

	// ErrConflictingTransition: the command lost a race to another process;
	// the store committed the other side's transition first.
	ErrConflictingTransition = errors.New("conflicting game transition")

	// ErrStaleSubmission: answer submitted for a question that is not the
	// one currently posted (past, future, revealed, or no game at all).
	ErrStaleSubmission = errors.New("stale answer submission")

	// ErrAlreadyAnswered: this connection already scored this question.
	ErrAlreadyAnswered = errors.New("question already answered")

	// ErrScoringUnavailable: the store failed mid-submission; the viewer's
	// analytics were left untouched.
	ErrScoringUnavailable = errors.New("scoring unavailable")

	// ErrNoLiveGame / ErrNoUpcomingGame: expected conditions, surfaced to
	// viewers as informational events rather than failures.
	ErrNoLiveGame     = errors.New("no live game")
	ErrNoUpcomingGame = errors.New("no upcoming game")
)
