package game

import "time"

// Prize is the amount a single question is worth. Amounts are whole units
// of the given currency; no fractional prizes are awarded.
type Prize struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Question is one entry in a game's question sequence. Immutable once the
// game has started; the answer index is never sent to viewers before reveal.
type Question struct {
	Text        string   `json:"text"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answer_index"`
	Prize       Prize    `json:"prize"`
}

// PublicQuestion is the viewer-safe projection of a Question: text and
// options only, plus the index viewers must echo back when answering.
type PublicQuestion struct {
	Index   int      `json:"index"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// Phase is the sub-state of the live game within the shared store.
type Phase string

const (
	// PhasePending: game started, first question not yet posted.
	PhasePending Phase = "pending"
	// PhasePosted: a question is live and accepting answers.
	PhasePosted Phase = "posted"
	// PhaseRevealed: the current question's answer has been broadcast.
	PhaseRevealed Phase = "revealed"
	// PhaseOver: all questions exhausted; terminal until the game is ended.
	PhaseOver Phase = "over"
)

// GameInfo identifies a game in the content repository.
type GameInfo struct {
	ID      string
	Name    string
	AirTime time.Time
}

// UpcomingGame is the next scheduled game, announced to viewers.
type UpcomingGame struct {
	GameID  string    `json:"game_id"`
	Name    string    `json:"name"`
	AirTime time.Time `json:"air_time"`
}

// Snapshot is the point-in-time view of the live game sent to a viewer on
// connect. Question is nil unless a question is currently posted or revealed.
type Snapshot struct {
	GameID        string
	Name          string
	QuestionCount int
	Phase         Phase
	Question      *PublicQuestion
}

// GameAnalytics is the per-connection scoring record for one game. It is
// created lazily on first answer and mutated only through atomic hash
// increments so concurrent submissions from any process stay consistent.
type GameAnalytics struct {
	CorrectCount   int64
	IncorrectCount int64
	TotalPrize     int64
}
