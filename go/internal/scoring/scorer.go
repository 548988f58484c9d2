package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livetrivia/go/internal/game"
	"github.com/mcdev12/livetrivia/go/internal/store"
)

// Config tunes submission validation.
type Config struct {
	// AnswerWindow is how long after posting a question submissions are
	// accepted. Zero disables the window.
	AnswerWindow time.Duration
	// MarkerTTL bounds the lifetime of idempotency markers so finished
	// games do not leak keys. Zero keeps them forever.
	MarkerTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		AnswerWindow: 10 * time.Second,
		MarkerTTL:    6 * time.Hour,
	}
}

// Result is the outcome of one scored submission.
type Result struct {
	Correct       bool
	QuestionIndex int
	// Prize awarded; zero amount when the answer was wrong.
	Prize game.Prize
}

// Scorer validates and scores viewer answers against the live game state.
// Submissions from many connections proceed fully in parallel: the only
// mutual exclusion is the per-(connection, question) idempotency marker and
// the per-connection analytics increments, both already atomic in the store.
type Scorer struct {
	store  store.Store
	clock  clockwork.Clock
	config Config
}

func NewScorer(st store.Store, clock clockwork.Clock, config Config) *Scorer {
	return &Scorer{store: st, clock: clock, config: config}
}

// SubmitAnswer scores one viewer's answer for the question they believe is
// live. Each (connection, question) pair scores exactly once: a duplicate
// returns ErrAlreadyAnswered without touching analytics.
func (s *Scorer) SubmitAnswer(ctx context.Context, connID string, questionIndex, chosenOption int) (*Result, error) {
	if err := s.checkLive(ctx, questionIndex); err != nil {
		return nil, err
	}

	// Read the scoring inputs before claiming the marker so a store failure
	// here leaves the viewer free to retry.
	answerIndex, prize, err := s.readScoringState(ctx)
	if err != nil {
		return nil, err
	}

	claimed, err := s.store.SetNX(ctx, game.AnsweredKey(connID, questionIndex), "1", s.config.MarkerTTL)
	if err != nil {
		return nil, fmt.Errorf("claim answer marker: %w: %w", game.ErrScoringUnavailable, err)
	}
	if !claimed {
		return nil, fmt.Errorf("connection %s question %d: %w", connID, questionIndex, game.ErrAlreadyAnswered)
	}

	correct := chosenOption == answerIndex
	analyticsKey := game.AnalyticsKey(connID)
	err = s.store.Update(ctx, func(tx store.Tx) error {
		if correct {
			tx.HIncrBy(analyticsKey, game.FieldCorrectCount, 1)
			tx.HIncrBy(analyticsKey, game.FieldTotalPrize, prize.Amount)
			tx.SAdd(game.KeyWinners, connID)
			return nil
		}
		tx.HIncrBy(analyticsKey, game.FieldIncorrectCount, 1)
		tx.SRem(game.KeyWinners, connID)
		return nil
	})
	if err != nil {
		// The marker landed but the score did not; release it so the viewer
		// can retry instead of being locked out unscored.
		if delErr := s.store.Del(ctx, game.AnsweredKey(connID, questionIndex)); delErr != nil {
			log.Error().Err(delErr).
				Str("connection_id", connID).
				Int("question_index", questionIndex).
				Msg("failed to release answer marker after scoring failure")
		}
		return nil, fmt.Errorf("record score: %w: %w", game.ErrScoringUnavailable, err)
	}

	log.Debug().
		Str("connection_id", connID).
		Int("question_index", questionIndex).
		Bool("correct", correct).
		Msg("answer scored")

	result := &Result{Correct: correct, QuestionIndex: questionIndex}
	if correct {
		result.Prize = prize
	} else {
		result.Prize = game.Prize{Amount: 0, Currency: prize.Currency}
	}
	return result, nil
}

// Analytics returns the viewer's scoring record; a viewer who has not
// answered yet gets the zero record.
func (s *Scorer) Analytics(ctx context.Context, connID string) (game.GameAnalytics, error) {
	fields, err := s.store.HGetAll(ctx, game.AnalyticsKey(connID))
	if errors.Is(err, store.ErrNotFound) {
		return game.GameAnalytics{}, nil
	}
	if err != nil {
		return game.GameAnalytics{}, fmt.Errorf("read analytics: %w: %w", game.ErrScoringUnavailable, err)
	}
	return game.AnalyticsFromFields(fields)
}

// checkLive verifies the submission targets the question currently posted:
// phase must be posted, the index must match, and the answer window must
// still be open. Anything else is a stale submission, rejected rather than
// silently scored.
func (s *Scorer) checkLive(ctx context.Context, questionIndex int) error {
	rawPhase, err := s.store.Get(ctx, game.KeyQuestionPhase)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no game live: %w", game.ErrStaleSubmission)
	}
	if err != nil {
		return fmt.Errorf("read question phase: %w: %w", game.ErrScoringUnavailable, err)
	}
	if game.Phase(rawPhase) != game.PhasePosted {
		return fmt.Errorf("phase %s: %w", rawPhase, game.ErrStaleSubmission)
	}

	rawIndex, err := s.store.Get(ctx, game.KeyNextQuestionIndex)
	if err != nil {
		return fmt.Errorf("read question index: %w: %w", game.ErrScoringUnavailable, err)
	}
	nextIndex, err := game.ParseIndex(rawIndex)
	if err != nil {
		return err
	}
	if liveIndex := nextIndex - 1; questionIndex != liveIndex {
		return fmt.Errorf("submitted for question %d, live question is %d: %w",
			questionIndex, liveIndex, game.ErrStaleSubmission)
	}

	if s.config.AnswerWindow > 0 {
		rawPostedAt, err := s.store.Get(ctx, game.KeyQuestionPostedAt)
		if err != nil {
			return fmt.Errorf("read posted-at: %w: %w", game.ErrScoringUnavailable, err)
		}
		postedAt, err := time.Parse(time.RFC3339Nano, rawPostedAt)
		if err != nil {
			return fmt.Errorf("parse posted-at %q: %w", rawPostedAt, err)
		}
		if s.clock.Now().Sub(postedAt) > s.config.AnswerWindow {
			return fmt.Errorf("answer window closed: %w", game.ErrStaleSubmission)
		}
	}
	return nil
}

func (s *Scorer) readScoringState(ctx context.Context) (int, game.Prize, error) {
	rawAnswer, err := s.store.Get(ctx, game.KeyCurrentAnswerIndex)
	if errors.Is(err, store.ErrNotFound) {
		return 0, game.Prize{}, fmt.Errorf("no current answer: %w", game.ErrStaleSubmission)
	}
	if err != nil {
		return 0, game.Prize{}, fmt.Errorf("read current answer: %w: %w", game.ErrScoringUnavailable, err)
	}
	answerIndex, err := game.ParseIndex(rawAnswer)
	if err != nil {
		return 0, game.Prize{}, err
	}

	fields, err := s.store.HGetAll(ctx, game.KeyCurrentPrize)
	if errors.Is(err, store.ErrNotFound) {
		return 0, game.Prize{}, fmt.Errorf("no current prize: %w", game.ErrStaleSubmission)
	}
	if err != nil {
		return 0, game.Prize{}, fmt.Errorf("read current prize: %w: %w", game.ErrScoringUnavailable, err)
	}
	prize, err := game.PrizeFromFields(fields)
	if err != nil {
		return 0, game.Prize{}, err
	}
	return answerIndex, prize, nil
}
