package game

import "fmt"

// Shared-store key namespace. Every process reads and writes these keys;
// none of them is cached locally.
const (
	// KeyLiveGame: hash {id, name, question_count} for the game on air.
	// Its absence means NoLiveGame.
	KeyLiveGame = "liveGame"
	// KeyNextGame: hash {id, name, air_time} for the next scheduled game.
	KeyNextGame = "nextGame"
	// KeyLiveQuestions: the full question sequence, one JSON value,
	// denormalized from the content repository at game start.
	KeyLiveQuestions = "liveQuestions"
	// KeyNextQuestionIndex: integer index of the question that will be
	// posted by the next advance. The live question is this value minus one.
	KeyNextQuestionIndex = "nextQuestionIndex"
	// KeyQuestionPhase: the Phase of the live game.
	KeyQuestionPhase = "questionPhase"
	// KeyCurrentQuestion: JSON PublicQuestion for late-joiner sync.
	KeyCurrentQuestion = "currentQuestion"
	// KeyCurrentAnswerIndex: integer answer index of the posted question.
	// Written only for scoring; never broadcast before reveal.
	KeyCurrentAnswerIndex = "currentAnswerIndex"
	// KeyCurrentPrize: hash {amount, currency} of the posted question.
	KeyCurrentPrize = "currentPrize"
	// KeyQuestionPostedAt: RFC3339 timestamp the posted question went live,
	// used to enforce the answer window.
	KeyQuestionPostedAt = "questionPostedAt"
	// KeyLivePlayers: set of connection IDs across all processes.
	KeyLivePlayers = "livePlayers"
	// KeyWinners: set of connection IDs still surviving the current game.
	KeyWinners = "winners"
)

// AnalyticsKey is the per-connection scoring hash.
func AnalyticsKey(connID string) string {
	return connID + ":gameAnalytics"
}

// AnsweredKey is the per-(connection, question) idempotency marker.
func AnsweredKey(connID string, questionIndex int) string {
	return fmt.Sprintf("%s:%d:answered", connID, questionIndex)
}

// Analytics hash fields.
const (
	FieldCorrectCount   = "correctCount"
	FieldIncorrectCount = "incorrectCount"
	FieldTotalPrize     = "totalPrize"
)

// Live-game hash fields.
const (
	FieldGameID        = "id"
	FieldGameName      = "name"
	FieldQuestionCount = "question_count"
	FieldAirTime       = "air_time"
)

// Prize hash fields.
const (
	FieldPrizeAmount   = "amount"
	FieldPrizeCurrency = "currency"
)
