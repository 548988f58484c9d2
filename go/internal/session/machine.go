package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livetrivia/go/internal/broadcast"
	"github.com/mcdev12/livetrivia/go/internal/game"
	"github.com/mcdev12/livetrivia/go/internal/store"
)

// ContentRepository defines what the state machine needs from the external
// game-content store. Read-only: the engine never writes back.
type ContentRepository interface {
	GetGame(ctx context.Context, gameID string) (*game.GameInfo, error)
	LoadQuestions(ctx context.Context, gameID string) ([]game.Question, error)
	NextScheduledGame(ctx context.Context) (*game.UpcomingGame, error)
}

// Machine owns the lifecycle of the currently airing game. It keeps no
// local state: the canonical copy lives in the shared store, so a command
// may land on any process and observe the same game. Admin commands are
// serialized by precondition checks; when two processes race anyway, the
// store's optimistic transaction lets exactly one commit and the loser
// reports ErrConflictingTransition instead of double-advancing.
type Machine struct {
	store       store.Store
	content     ContentRepository
	broadcaster broadcast.Broadcaster
	clock       clockwork.Clock
}

func NewMachine(st store.Store, content ContentRepository, b broadcast.Broadcaster, clock clockwork.Clock) *Machine {
	return &Machine{
		store:       st,
		content:     content,
		broadcaster: b,
		clock:       clock,
	}
}

// StartGame transitions NoLiveGame -> Live(0). The question sequence is
// loaded from the content repository and denormalized into the store as one
// serialized value so every later read is a single fetch. Valid only while
// no game is live.
func (m *Machine) StartGame(ctx context.Context, gameID string) error {
	info, err := m.content.GetGame(ctx, gameID)
	if err != nil {
		return fmt.Errorf("load game %s: %w", gameID, err)
	}
	questions, err := m.content.LoadQuestions(ctx, gameID)
	if err != nil {
		return fmt.Errorf("load questions for game %s: %w", gameID, err)
	}
	encoded, err := game.EncodeQuestions(questions)
	if err != nil {
		return fmt.Errorf("game %s: %w", gameID, err)
	}

	err = m.store.Update(ctx, func(tx store.Tx) error {
		live, err := tx.Exists(ctx, game.KeyLiveGame)
		if err != nil {
			return err
		}
		if live {
			return game.ErrInvalidTransition
		}
		tx.HSet(game.KeyLiveGame, map[string]string{
			game.FieldGameID:        info.ID,
			game.FieldGameName:      info.Name,
			game.FieldQuestionCount: strconv.Itoa(len(questions)),
		})
		tx.Set(game.KeyLiveQuestions, encoded)
		tx.Set(game.KeyNextQuestionIndex, "0")
		tx.Set(game.KeyQuestionPhase, string(game.PhasePending))
		tx.Del(game.KeyWinners, game.KeyCurrentQuestion, game.KeyCurrentAnswerIndex,
			game.KeyCurrentPrize, game.KeyQuestionPostedAt)
		return nil
	}, game.KeyLiveGame)
	if err != nil {
		return m.transitionErr("startGame", err)
	}

	log.Info().
		Str("game_id", info.ID).
		Int("questions", len(questions)).
		Msg("game started")

	m.emit(ctx, broadcast.EventLiveGame, broadcast.GamePayload{
		GameID:        info.ID,
		Name:          info.Name,
		QuestionCount: len(questions),
	})
	return nil
}

// AdvanceQuestion publishes the question at the current index, or ends the
// game once the sequence is exhausted. The publication of the new question
// and the index increment commit as one transaction: no reader can observe
// the incremented index with the previous question still published. A
// racing advance on another process conflicts on nextQuestionIndex and
// exactly one side wins.
func (m *Machine) AdvanceQuestion(ctx context.Context) error {
	var (
		over   bool
		posted game.PublicQuestion
	)
	err := m.store.Update(ctx, func(tx store.Tx) error {
		phase, err := m.readPhase(ctx, tx)
		if err != nil {
			return err
		}
		if phase == game.PhaseOver {
			return game.ErrInvalidTransition
		}

		encoded, err := tx.Get(ctx, game.KeyLiveQuestions)
		if err != nil {
			return err
		}
		questions, err := game.DecodeQuestions(encoded)
		if err != nil {
			return err
		}
		rawIndex, err := tx.Get(ctx, game.KeyNextQuestionIndex)
		if err != nil {
			return err
		}
		index, err := game.ParseIndex(rawIndex)
		if err != nil {
			return err
		}
		if index > len(questions) {
			return fmt.Errorf("question index %d beyond sequence of %d", index, len(questions))
		}

		if index == len(questions) {
			over = true
			tx.Set(game.KeyQuestionPhase, string(game.PhaseOver))
			tx.Del(game.KeyCurrentQuestion, game.KeyCurrentAnswerIndex,
				game.KeyCurrentPrize, game.KeyQuestionPostedAt)
			return nil
		}

		q := questions[index]
		posted = game.PublicQuestion{Index: index, Text: q.Text, Options: q.Options}
		public, err := game.EncodePublicQuestion(posted)
		if err != nil {
			return err
		}
		tx.Set(game.KeyCurrentQuestion, public)
		tx.Set(game.KeyCurrentAnswerIndex, strconv.Itoa(q.AnswerIndex))
		tx.HSet(game.KeyCurrentPrize, game.PrizeFields(q.Prize))
		tx.Set(game.KeyQuestionPostedAt, m.clock.Now().UTC().Format(time.RFC3339Nano))
		tx.Incr(game.KeyNextQuestionIndex)
		tx.Set(game.KeyQuestionPhase, string(game.PhasePosted))
		return nil
	}, game.KeyNextQuestionIndex)
	if err != nil {
		return m.transitionErr("advanceQuestion", err)
	}

	if over {
		log.Info().Msg("question sequence exhausted, game over")
		m.emit(ctx, broadcast.EventGameOver, broadcast.MessagePayload{
			Message: "That's all folks!",
		})
		return nil
	}

	log.Info().
		Int("question_index", posted.Index).
		Msg("question posted")

	// The payload type has no answer field: the correct option stays in the
	// store until revealAnswer.
	m.emit(ctx, broadcast.EventNextQuestion, broadcast.QuestionFromPublic(posted))
	return nil
}

// RevealAnswer broadcasts the posted question's correct option. Valid only
// while a question is posted; reveal is optional per question but must
// precede the next advance when it happens.
func (m *Machine) RevealAnswer(ctx context.Context) error {
	var reveal broadcast.RevealPayload
	err := m.store.Update(ctx, func(tx store.Tx) error {
		phase, err := m.readPhase(ctx, tx)
		if err != nil {
			return err
		}
		if phase != game.PhasePosted {
			return game.ErrInvalidTransition
		}

		rawAnswer, err := tx.Get(ctx, game.KeyCurrentAnswerIndex)
		if err != nil {
			return err
		}
		answer, err := game.ParseIndex(rawAnswer)
		if err != nil {
			return err
		}
		rawIndex, err := tx.Get(ctx, game.KeyNextQuestionIndex)
		if err != nil {
			return err
		}
		next, err := game.ParseIndex(rawIndex)
		if err != nil {
			return err
		}

		reveal = broadcast.RevealPayload{Index: next - 1, AnswerIndex: answer}
		tx.Set(game.KeyQuestionPhase, string(game.PhaseRevealed))
		return nil
	}, game.KeyQuestionPhase, game.KeyNextQuestionIndex)
	if err != nil {
		return m.transitionErr("revealAnswer", err)
	}

	log.Info().
		Int("question_index", reveal.Index).
		Int("answer_index", reveal.AnswerIndex).
		Msg("answer revealed")

	m.emit(ctx, broadcast.EventRevealAnswer, reveal)
	return nil
}

// EndGame forces GameOver from any live sub-state and clears the live keys,
// returning the machine to NoLiveGame so a new game can start.
func (m *Machine) EndGame(ctx context.Context) error {
	err := m.store.Update(ctx, func(tx store.Tx) error {
		live, err := tx.Exists(ctx, game.KeyLiveGame)
		if err != nil {
			return err
		}
		if !live {
			return game.ErrNoLiveGame
		}
		tx.Del(game.KeyLiveGame, game.KeyLiveQuestions, game.KeyNextQuestionIndex,
			game.KeyQuestionPhase, game.KeyCurrentQuestion, game.KeyCurrentAnswerIndex,
			game.KeyCurrentPrize, game.KeyQuestionPostedAt)
		return nil
	}, game.KeyLiveGame)
	if err != nil {
		return m.transitionErr("endGame", err)
	}

	log.Info().Msg("game ended by admin")
	m.emit(ctx, broadcast.EventGameOver, broadcast.MessagePayload{
		Message: "The game has ended. Thanks for playing!",
	})
	return nil
}

// ScheduleNextGame records the next scheduled game so viewers asking
// "what's on next" get an answer before air time.
func (m *Machine) ScheduleNextGame(ctx context.Context, gameID string) error {
	info, err := m.content.GetGame(ctx, gameID)
	if err != nil {
		return fmt.Errorf("load game %s: %w", gameID, err)
	}
	err = m.store.HSet(ctx, game.KeyNextGame, map[string]string{
		game.FieldGameID:   info.ID,
		game.FieldGameName: info.Name,
		game.FieldAirTime:  info.AirTime.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return m.transitionErr("scheduleGame", err)
	}

	log.Info().Str("game_id", info.ID).Time("air_time", info.AirTime).Msg("next game scheduled")
	m.emit(ctx, broadcast.EventNextGame, broadcast.UpcomingGamePayload{
		GameID:  info.ID,
		Name:    info.Name,
		AirTime: info.AirTime,
	})
	return nil
}

// Snapshot reads the live game as one point-in-time view for a connecting
// viewer: the game header plus, when one is posted or revealed, the
// viewer-safe current question.
func (m *Machine) Snapshot(ctx context.Context) (*game.Snapshot, error) {
	header, err := m.store.HGetAll(ctx, game.KeyLiveGame)
	if errors.Is(err, store.ErrNotFound) {
		return nil, game.ErrNoLiveGame
	}
	if err != nil {
		return nil, fmt.Errorf("read live game: %w: %w", game.ErrStoreUnavailable, err)
	}
	count, err := game.ParseIndex(header[game.FieldQuestionCount])
	if err != nil {
		return nil, fmt.Errorf("read live game: %w", err)
	}

	snapshot := &game.Snapshot{
		GameID:        header[game.FieldGameID],
		Name:          header[game.FieldGameName],
		QuestionCount: count,
	}

	rawPhase, err := m.store.Get(ctx, game.KeyQuestionPhase)
	if errors.Is(err, store.ErrNotFound) {
		snapshot.Phase = game.PhasePending
		return snapshot, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read question phase: %w: %w", game.ErrStoreUnavailable, err)
	}
	snapshot.Phase = game.Phase(rawPhase)

	if snapshot.Phase == game.PhasePosted || snapshot.Phase == game.PhaseRevealed {
		raw, err := m.store.Get(ctx, game.KeyCurrentQuestion)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("read current question: %w: %w", game.ErrStoreUnavailable, err)
		}
		if err == nil {
			q, err := game.DecodePublicQuestion(raw)
			if err != nil {
				return nil, err
			}
			snapshot.Question = q
		}
	}
	return snapshot, nil
}

// NextGame reads the next scheduled game. When no admin has announced one,
// it falls back to the content catalog's earliest unaired game.
func (m *Machine) NextGame(ctx context.Context) (*game.UpcomingGame, error) {
	fields, err := m.store.HGetAll(ctx, game.KeyNextGame)
	if errors.Is(err, store.ErrNotFound) {
		return m.content.NextScheduledGame(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("read next game: %w: %w", game.ErrStoreUnavailable, err)
	}
	airTime, err := time.Parse(time.RFC3339, fields[game.FieldAirTime])
	if err != nil {
		return nil, fmt.Errorf("read next game air time: %w", err)
	}
	return &game.UpcomingGame{
		GameID:  fields[game.FieldGameID],
		Name:    fields[game.FieldGameName],
		AirTime: airTime,
	}, nil
}

func (m *Machine) readPhase(ctx context.Context, tx store.Tx) (game.Phase, error) {
	raw, err := tx.Get(ctx, game.KeyQuestionPhase)
	if errors.Is(err, store.ErrNotFound) {
		return "", game.ErrNoLiveGame
	}
	if err != nil {
		return "", err
	}
	return game.Phase(raw), nil
}

// transitionErr classifies a failed transition. Store conflicts become
// ErrConflictingTransition; domain preconditions pass through; anything
// else is a transient store failure the admin must retry explicitly, since
// auto-retrying could silently skip or repeat a question.
func (m *Machine) transitionErr(operation string, err error) error {
	switch {
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%s: %w", operation, game.ErrConflictingTransition)
	case errors.Is(err, game.ErrInvalidTransition),
		errors.Is(err, game.ErrNoLiveGame),
		errors.Is(err, game.ErrNoUpcomingGame):
		return fmt.Errorf("%s: %w", operation, err)
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w: %w", operation, game.ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}

// emit broadcasts after a committed transition. A fan-out failure does not
// roll the transition back: the state already landed and connecting viewers
// recover via Snapshot, so it is logged rather than returned.
func (m *Machine) emit(ctx context.Context, typ broadcast.EventType, payload any) {
	if err := m.broadcaster.Broadcast(ctx, typ, payload); err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to broadcast event")
	}
}
