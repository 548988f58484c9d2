package broadcast

import (
	"encoding/json"
	"time"

	"github.com/mcdev12/livetrivia/go/internal/game"
)

// EventType is the closed enumeration of events the engine emits. The
// broadcaster and every consumer share this set, so new kinds are added
// here rather than as ad hoc strings at call sites.
type EventType string

const (
	EventLiveGame        EventType = "liveGame"
	EventNoLiveGame      EventType = "noLiveGame"
	EventNextGame        EventType = "nextGame"
	EventNoUpcomingGame  EventType = "noUpcomingGame"
	EventLiveQuestion    EventType = "liveQuestion"
	EventNextQuestion    EventType = "nextQuestion"
	EventRevealAnswer    EventType = "revealAnswer"
	EventGameOver        EventType = "gameOver"
	EventCorrectAnswer   EventType = "correctAnswer"
	EventIncorrectAnswer EventType = "incorrectAnswer"
	EventPlayerCount     EventType = "realTimePlayerCount"
)

// ErrorEvent names the failure event for one fallible operation, e.g.
// ErrorEvent("submitAnswer") == "error-submitAnswer".
func ErrorEvent(operation string) EventType {
	return EventType("error-" + operation)
}

// Envelope is the wire frame for every event, both on the cross-process
// broadcast subject and down each websocket. TargetConn, when set, narrows
// delivery to the single connection with that ID; processes not holding it
// drop the envelope.
type Envelope struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	TargetConn string          `json:"target_conn,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// GamePayload announces the game on air (or next to air). It carries no
// question content and no answers.
type GamePayload struct {
	GameID        string `json:"game_id"`
	Name          string `json:"name"`
	QuestionCount int    `json:"question_count"`
}

// QuestionPayload is the viewer-facing question: text and options only.
// The correct option index is deliberately absent from this type.
type QuestionPayload struct {
	Index   int      `json:"index"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// RevealPayload publishes the correct option after the admin reveals it.
type RevealPayload struct {
	Index       int `json:"index"`
	AnswerIndex int `json:"answer_index"`
}

// ScorePayload acknowledges one viewer's submission.
type ScorePayload struct {
	Message string      `json:"message"`
	Index   int         `json:"index"`
	Prize   *game.Prize `json:"prize,omitempty"`
}

// PlayerCountPayload answers requestRealTimePlayerCount.
type PlayerCountPayload struct {
	Players int64 `json:"players"`
}

// UpcomingGamePayload announces the next scheduled game.
type UpcomingGamePayload struct {
	GameID  string    `json:"game_id"`
	Name    string    `json:"name"`
	AirTime time.Time `json:"air_time"`
}

// MessagePayload carries informational events such as noLiveGame.
type MessagePayload struct {
	Message string `json:"message"`
}

// ErrorPayload carries error-<operation> events. Err is a short category,
// never raw store error text.
type ErrorPayload struct {
	Message string `json:"message"`
	Err     string `json:"err"`
}

// QuestionFromPublic adapts the stored viewer-safe question to its payload.
func QuestionFromPublic(q game.PublicQuestion) QuestionPayload {
	return QuestionPayload{Index: q.Index, Text: q.Text, Options: q.Options}
}
