package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livetrivia/go/internal/broadcast"
	"github.com/mcdev12/livetrivia/go/internal/game"
	"github.com/mcdev12/livetrivia/go/internal/presence"
	"github.com/mcdev12/livetrivia/go/internal/scoring"
	"github.com/mcdev12/livetrivia/go/internal/session"
)

// ClientMessage is the frame viewers and admins send over the websocket.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Viewer commands.
const (
	CmdSubmitAnswer       = "submitAnswer"
	CmdRequestPlayerCount = "requestRealTimePlayerCount"
	CmdRequestNextGame    = "requestNextGame"
)

// Admin commands; rejected for non-admin connections.
const (
	CmdStartGame    = "startGame"
	CmdNextQuestion = "nextQuestion"
	CmdRevealAnswer = "revealAnswer"
	CmdEndGame      = "endGame"
	CmdScheduleGame = "scheduleGame"
)

// Router dispatches client messages to the engine. Every failure becomes a
// unicast error-<operation> event on the issuing connection; viewers never
// see raw store errors and admin failures never reach viewers.
type Router struct {
	machine     *session.Machine
	scorer      *scoring.Scorer
	presence    *presence.Tracker
	broadcaster broadcast.Broadcaster
}

func NewRouter(machine *session.Machine, scorer *scoring.Scorer, tracker *presence.Tracker, b broadcast.Broadcaster) *Router {
	return &Router{
		machine:     machine,
		scorer:      scorer,
		presence:    tracker,
		broadcaster: b,
	}
}

// Handle processes one message from a connection.
func (r *Router) Handle(ctx context.Context, conn *Connection, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn().Err(err).Str("connection_id", conn.ID).Msg("malformed client message")
		return
	}

	switch msg.Type {
	case CmdSubmitAnswer:
		r.handleSubmitAnswer(ctx, conn, msg.Payload)
	case CmdRequestPlayerCount:
		r.handlePlayerCount(ctx, conn)
	case CmdRequestNextGame:
		r.handleNextGame(ctx, conn)
	case CmdStartGame, CmdNextQuestion, CmdRevealAnswer, CmdEndGame, CmdScheduleGame:
		r.handleAdmin(ctx, conn, msg)
	default:
		log.Warn().
			Str("connection_id", conn.ID).
			Str("type", msg.Type).
			Msg("unknown command")
	}
}

type submitAnswerPayload struct {
	QuestionIndex int `json:"questionIndex"`
	ChosenOption  int `json:"chosenOption"`
}

func (r *Router) handleSubmitAnswer(ctx context.Context, conn *Connection, payload json.RawMessage) {
	var req submitAnswerPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		r.unicastError(ctx, conn, CmdSubmitAnswer, "Your answer could not be read.", "badRequest")
		return
	}

	result, err := r.scorer.SubmitAnswer(ctx, conn.ID, req.QuestionIndex, req.ChosenOption)
	switch {
	case err == nil:
	case errors.Is(err, game.ErrAlreadyAnswered):
		r.unicastError(ctx, conn, CmdSubmitAnswer, "You already answered this question.", "alreadyAnswered")
		return
	case errors.Is(err, game.ErrStaleSubmission):
		r.unicastError(ctx, conn, CmdSubmitAnswer, "That question is no longer accepting answers.", "staleSubmission")
		return
	default:
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("answer submission failed")
		r.unicastError(ctx, conn, CmdSubmitAnswer,
			"Sorry, an error occurred and your answer could not be submitted. Please try again.", "scoringUnavailable")
		return
	}

	if result.Correct {
		r.unicast(ctx, conn, broadcast.EventCorrectAnswer, broadcast.ScorePayload{
			Message: fmt.Sprintf("Congratulations! That was the correct answer. You just won %d%s.",
				result.Prize.Amount, result.Prize.Currency),
			Index: result.QuestionIndex,
			Prize: &result.Prize,
		})
		return
	}
	r.unicast(ctx, conn, broadcast.EventIncorrectAnswer, broadcast.ScorePayload{
		Message: fmt.Sprintf("Sorry, that was not the correct answer. You won 0%s for this question.",
			result.Prize.Currency),
		Index: result.QuestionIndex,
	})
}

func (r *Router) handlePlayerCount(ctx context.Context, conn *Connection) {
	count, err := r.presence.CurrentViewerCount(ctx)
	if err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("player count unavailable")
		r.unicastError(ctx, conn, CmdRequestPlayerCount,
			"Error in fetching the real-time player count.", "presenceUnavailable")
		return
	}
	r.unicast(ctx, conn, broadcast.EventPlayerCount, broadcast.PlayerCountPayload{Players: count})
}

func (r *Router) handleNextGame(ctx context.Context, conn *Connection) {
	upcoming, err := r.machine.NextGame(ctx)
	switch {
	case err == nil:
		r.unicast(ctx, conn, broadcast.EventNextGame, broadcast.UpcomingGamePayload{
			GameID:  upcoming.GameID,
			Name:    upcoming.Name,
			AirTime: upcoming.AirTime,
		})
	case errors.Is(err, game.ErrNoUpcomingGame):
		r.unicast(ctx, conn, broadcast.EventNoUpcomingGame, broadcast.MessagePayload{
			Message: "No upcoming game is scheduled yet.",
		})
	default:
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("next game lookup failed")
		r.unicastError(ctx, conn, CmdRequestNextGame, "Error in fetching the next game.", "storeUnavailable")
	}
}

type startGamePayload struct {
	GameID string `json:"gameId"`
}

func (r *Router) handleAdmin(ctx context.Context, conn *Connection, msg ClientMessage) {
	if !conn.Viewer.Admin {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("user_id", conn.Viewer.UserID).
			Str("type", msg.Type).
			Msg("admin command from non-admin connection")
		r.unicastError(ctx, conn, msg.Type, "You are not allowed to do that.", "forbidden")
		return
	}

	var err error
	switch msg.Type {
	case CmdStartGame:
		var req startGamePayload
		if jsonErr := json.Unmarshal(msg.Payload, &req); jsonErr != nil || req.GameID == "" {
			r.unicastError(ctx, conn, CmdStartGame, "startGame needs a gameId.", "badRequest")
			return
		}
		err = r.machine.StartGame(ctx, req.GameID)
	case CmdNextQuestion:
		err = r.machine.AdvanceQuestion(ctx)
	case CmdRevealAnswer:
		err = r.machine.RevealAnswer(ctx)
	case CmdEndGame:
		err = r.machine.EndGame(ctx)
	case CmdScheduleGame:
		var req startGamePayload
		if jsonErr := json.Unmarshal(msg.Payload, &req); jsonErr != nil || req.GameID == "" {
			r.unicastError(ctx, conn, CmdScheduleGame, "scheduleGame needs a gameId.", "badRequest")
			return
		}
		err = r.machine.ScheduleNextGame(ctx, req.GameID)
	}
	if err == nil {
		return
	}

	// Transition failures go to the admin connection only, never to viewers.
	log.Error().Err(err).Str("operation", msg.Type).Msg("admin transition failed")
	switch {
	case errors.Is(err, game.ErrInvalidTransition):
		r.unicastError(ctx, conn, msg.Type, "That command is not valid in the current game state.", "invalidTransition")
	case errors.Is(err, game.ErrConflictingTransition):
		r.unicastError(ctx, conn, msg.Type, "Another admin command won the race; check the game state and retry if needed.", "conflictingTransition")
	case errors.Is(err, game.ErrNoLiveGame):
		r.unicastError(ctx, conn, msg.Type, "There is no live game.", "noLiveGame")
	default:
		r.unicastError(ctx, conn, msg.Type, "The command failed against the shared store; retry explicitly.", "storeUnavailable")
	}
}

// SendWelcome delivers the connect-time snapshot: the live game (or the
// no-game notice) and, for late joiners, the question currently on air,
// text and options only.
func (r *Router) SendWelcome(ctx context.Context, conn *Connection) {
	snapshot, err := r.machine.Snapshot(ctx)
	switch {
	case errors.Is(err, game.ErrNoLiveGame):
		r.unicast(ctx, conn, broadcast.EventNoLiveGame, broadcast.MessagePayload{
			Message: "Sorry, there is no game being aired right now. Please come back later.",
		})
		return
	case err != nil:
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("live game snapshot failed")
		r.unicastError(ctx, conn, "liveGame", "Error in fetching the live game.", "storeUnavailable")
		return
	}

	r.unicast(ctx, conn, broadcast.EventLiveGame, broadcast.GamePayload{
		GameID:        snapshot.GameID,
		Name:          snapshot.Name,
		QuestionCount: snapshot.QuestionCount,
	})
	if snapshot.Question != nil {
		r.unicast(ctx, conn, broadcast.EventLiveQuestion, broadcast.QuestionFromPublic(*snapshot.Question))
	}
	if snapshot.Phase == game.PhaseOver {
		r.unicast(ctx, conn, broadcast.EventGameOver, broadcast.MessagePayload{
			Message: "That's all folks!",
		})
	}
}

// unicast routes through the cross-process broadcaster rather than writing
// to the local socket directly, so responses still arrive if the connection
// has been rebalanced to another process between request and reply.
func (r *Router) unicast(ctx context.Context, conn *Connection, typ broadcast.EventType, payload any) {
	if err := r.broadcaster.Unicast(ctx, conn.ID, typ, payload); err != nil {
		log.Error().Err(err).
			Str("connection_id", conn.ID).
			Str("event_type", string(typ)).
			Msg("failed to unicast event")
	}
}

func (r *Router) unicastError(ctx context.Context, conn *Connection, operation, message, category string) {
	r.unicast(ctx, conn, broadcast.ErrorEvent(operation), broadcast.ErrorPayload{
		Message: message,
		Err:     category,
	})
}
