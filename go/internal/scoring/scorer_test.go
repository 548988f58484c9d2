package scoring

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/livetrivia/go/internal/game"
	"github.com/mcdev12/livetrivia/go/internal/store"
)

// postQuestion seeds the store with a posted question the way an advance
// transition would: index incremented, answer and prize published, posted-at
// stamped from the clock.
func postQuestion(t *testing.T, mem *store.MemoryStore, clock clockwork.Clock, index, answerIndex int, prize game.Prize) {
	t.Helper()
	ctx := context.Background()
	seed := map[string]string{
		game.KeyQuestionPhase:      string(game.PhasePosted),
		game.KeyNextQuestionIndex:  strconv.Itoa(index + 1),
		game.KeyCurrentAnswerIndex: strconv.Itoa(answerIndex),
		game.KeyQuestionPostedAt:   clock.Now().UTC().Format(time.RFC3339Nano),
	}
	for key, value := range seed {
		if err := mem.Set(ctx, key, value); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
	if err := mem.HSet(ctx, game.KeyCurrentPrize, game.PrizeFields(prize)); err != nil {
		t.Fatalf("seed prize: %v", err)
	}
}

func newTestScorer(t *testing.T) (*Scorer, *store.MemoryStore, *clockwork.FakeClock) {
	t.Helper()
	mem := store.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	return NewScorer(mem, clock, DefaultConfig()), mem, clock
}

func TestSubmitAnswerScoresFullGame(t *testing.T) {
	ctx := context.Background()
	scorer, mem, clock := newTestScorer(t)

	// Question 0: viewer picks the right option.
	postQuestion(t, mem, clock, 0, 1, game.Prize{Amount: 10, Currency: "$"})
	result, err := scorer.SubmitAnswer(ctx, "conn-1", 0, 1)
	if err != nil {
		t.Fatalf("SubmitAnswer q0: %v", err)
	}
	if !result.Correct || result.Prize.Amount != 10 {
		t.Errorf("q0 result = %+v, want correct with prize 10", result)
	}

	// Question 1: viewer picks wrong.
	postQuestion(t, mem, clock, 1, 2, game.Prize{Amount: 20, Currency: "$"})
	result, err = scorer.SubmitAnswer(ctx, "conn-1", 1, 0)
	if err != nil {
		t.Fatalf("SubmitAnswer q1: %v", err)
	}
	if result.Correct || result.Prize.Amount != 0 {
		t.Errorf("q1 result = %+v, want incorrect with zero prize", result)
	}

	analytics, err := scorer.Analytics(ctx, "conn-1")
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	want := game.GameAnalytics{CorrectCount: 1, IncorrectCount: 1, TotalPrize: 10}
	if analytics != want {
		t.Errorf("analytics = %+v, want %+v", analytics, want)
	}
}

func TestSubmitAnswerMaintainsWinnersSet(t *testing.T) {
	ctx := context.Background()
	scorer, mem, clock := newTestScorer(t)

	postQuestion(t, mem, clock, 0, 1, game.Prize{Amount: 10, Currency: "$"})
	if _, err := scorer.SubmitAnswer(ctx, "conn-1", 0, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := scorer.SubmitAnswer(ctx, "conn-2", 0, 1); err != nil {
		t.Fatal(err)
	}
	if n, _ := mem.SCard(ctx, game.KeyWinners); n != 2 {
		t.Fatalf("winners after q0 = %d, want 2", n)
	}

	// conn-2 misses question 1 and drops out of the winners set.
	postQuestion(t, mem, clock, 1, 0, game.Prize{Amount: 20, Currency: "$"})
	if _, err := scorer.SubmitAnswer(ctx, "conn-1", 1, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := scorer.SubmitAnswer(ctx, "conn-2", 1, 2); err != nil {
		t.Fatal(err)
	}
	members, err := mem.SMembers(ctx, game.KeyWinners)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0] != "conn-1" {
		t.Errorf("winners after q1 = %v, want [conn-1]", members)
	}
}

func TestSubmitAnswerDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	scorer, mem, clock := newTestScorer(t)
	postQuestion(t, mem, clock, 0, 1, game.Prize{Amount: 10, Currency: "$"})

	if _, err := scorer.SubmitAnswer(ctx, "conn-1", 0, 1); err != nil {
		t.Fatal(err)
	}
	_, err := scorer.SubmitAnswer(ctx, "conn-1", 0, 0)
	if !errors.Is(err, game.ErrAlreadyAnswered) {
		t.Fatalf("duplicate submit = %v, want ErrAlreadyAnswered", err)
	}

	// The duplicate must not touch analytics.
	analytics, err := scorer.Analytics(ctx, "conn-1")
	if err != nil {
		t.Fatal(err)
	}
	if analytics.CorrectCount != 1 || analytics.IncorrectCount != 0 {
		t.Errorf("analytics after duplicate = %+v", analytics)
	}
}

func TestSubmitAnswerStaleRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("no live game", func(t *testing.T) {
		scorer, _, _ := newTestScorer(t)
		_, err := scorer.SubmitAnswer(ctx, "conn-1", 0, 0)
		if !errors.Is(err, game.ErrStaleSubmission) {
			t.Fatalf("submit with no game = %v, want ErrStaleSubmission", err)
		}
	})

	t.Run("wrong index", func(t *testing.T) {
		scorer, mem, clock := newTestScorer(t)
		postQuestion(t, mem, clock, 1, 0, game.Prize{Amount: 10, Currency: "$"})
		_, err := scorer.SubmitAnswer(ctx, "conn-1", 0, 0)
		if !errors.Is(err, game.ErrStaleSubmission) {
			t.Fatalf("submit for old question = %v, want ErrStaleSubmission", err)
		}
	})

	t.Run("answer already revealed", func(t *testing.T) {
		scorer, mem, clock := newTestScorer(t)
		postQuestion(t, mem, clock, 0, 0, game.Prize{Amount: 10, Currency: "$"})
		if err := mem.Set(ctx, game.KeyQuestionPhase, string(game.PhaseRevealed)); err != nil {
			t.Fatal(err)
		}
		_, err := scorer.SubmitAnswer(ctx, "conn-1", 0, 0)
		if !errors.Is(err, game.ErrStaleSubmission) {
			t.Fatalf("submit after reveal = %v, want ErrStaleSubmission", err)
		}
	})
}

func TestSubmitAnswerWindowCloses(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	scorer := NewScorer(mem, clock, Config{AnswerWindow: 10 * time.Second})

	postQuestion(t, mem, clock, 0, 1, game.Prize{Amount: 10, Currency: "$"})

	clock.Advance(9 * time.Second)
	if _, err := scorer.SubmitAnswer(ctx, "conn-1", 0, 1); err != nil {
		t.Fatalf("submit inside window: %v", err)
	}

	clock.Advance(2 * time.Second)
	_, err := scorer.SubmitAnswer(ctx, "conn-2", 0, 1)
	if !errors.Is(err, game.ErrStaleSubmission) {
		t.Fatalf("submit after window = %v, want ErrStaleSubmission", err)
	}
}

func TestSubmitAnswerStoreDownBeforeMarker(t *testing.T) {
	ctx := context.Background()
	scorer, mem, clock := newTestScorer(t)
	postQuestion(t, mem, clock, 0, 1, game.Prize{Amount: 10, Currency: "$"})

	// The scoring-state read fails before the marker is claimed, so the
	// viewer can retry once the store recovers.
	mem.FailOp("hgetall", store.ErrUnavailable)
	_, err := scorer.SubmitAnswer(ctx, "conn-1", 0, 1)
	if !errors.Is(err, game.ErrScoringUnavailable) {
		t.Fatalf("submit with store down = %v, want ErrScoringUnavailable", err)
	}
	mem.FailOp("hgetall", nil)

	result, err := scorer.SubmitAnswer(ctx, "conn-1", 0, 1)
	if err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
	if !result.Correct {
		t.Errorf("retry result = %+v, want correct", result)
	}
}

func TestSubmitAnswerReleasesMarkerOnScoreFailure(t *testing.T) {
	ctx := context.Background()
	scorer, mem, clock := newTestScorer(t)
	postQuestion(t, mem, clock, 0, 1, game.Prize{Amount: 10, Currency: "$"})

	mem.FailOp("update", store.ErrUnavailable)
	_, err := scorer.SubmitAnswer(ctx, "conn-1", 0, 1)
	if !errors.Is(err, game.ErrScoringUnavailable) {
		t.Fatalf("submit with failing increment = %v, want ErrScoringUnavailable", err)
	}
	mem.FailOp("update", nil)

	// The marker was released, so a retry scores rather than reporting a
	// duplicate for an answer that never counted.
	result, err := scorer.SubmitAnswer(ctx, "conn-1", 0, 1)
	if err != nil {
		t.Fatalf("retry after scoring failure: %v", err)
	}
	if !result.Correct || result.Prize.Amount != 10 {
		t.Errorf("retry result = %+v", result)
	}
	analytics, _ := scorer.Analytics(ctx, "conn-1")
	if analytics.CorrectCount != 1 {
		t.Errorf("analytics = %+v, want one correct", analytics)
	}
}

func TestAnalyticsZeroRecordForNewViewer(t *testing.T) {
	ctx := context.Background()
	scorer, _, _ := newTestScorer(t)

	analytics, err := scorer.Analytics(ctx, "never-answered")
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if analytics != (game.GameAnalytics{}) {
		t.Errorf("analytics = %+v, want zero record", analytics)
	}
}
