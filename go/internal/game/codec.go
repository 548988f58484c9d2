package game

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization contracts for values round-tripped through the shared store.
// Every read re-validates: a malformed stored value is a bug somewhere in the
// cluster and must surface immediately instead of scoring garbage.

// EncodeQuestions serializes a game's question sequence into the single
// JSON value kept under KeyLiveQuestions.
func EncodeQuestions(questions []Question) (string, error) {
	if len(questions) == 0 {
		return "", fmt.Errorf("encode questions: empty sequence")
	}
	for i, q := range questions {
		if err := q.validate(); err != nil {
			return "", fmt.Errorf("encode questions: question %d: %w", i, err)
		}
	}
	data, err := json.Marshal(questions)
	if err != nil {
		return "", fmt.Errorf("encode questions: %w", err)
	}
	return string(data), nil
}

// DecodeQuestions parses and validates the stored question sequence.
func DecodeQuestions(raw string) ([]Question, error) {
	var questions []Question
	if err := json.Unmarshal([]byte(raw), &questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("decode questions: empty sequence")
	}
	for i, q := range questions {
		if err := q.validate(); err != nil {
			return nil, fmt.Errorf("decode questions: question %d: %w", i, err)
		}
	}
	return questions, nil
}

func (q Question) validate() error {
	if q.Text == "" {
		return fmt.Errorf("empty text")
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("need at least 2 options, got %d", len(q.Options))
	}
	if q.AnswerIndex < 0 || q.AnswerIndex >= len(q.Options) {
		return fmt.Errorf("answer index %d out of range [0,%d)", q.AnswerIndex, len(q.Options))
	}
	if q.Prize.Amount < 0 {
		return fmt.Errorf("negative prize amount %d", q.Prize.Amount)
	}
	if q.Prize.Currency == "" {
		return fmt.Errorf("empty prize currency")
	}
	return nil
}

// EncodePublicQuestion serializes the viewer-safe question projection.
func EncodePublicQuestion(q PublicQuestion) (string, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("encode public question: %w", err)
	}
	return string(data), nil
}

// DecodePublicQuestion parses the stored viewer-safe question.
func DecodePublicQuestion(raw string) (*PublicQuestion, error) {
	var q PublicQuestion
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return nil, fmt.Errorf("decode public question: %w", err)
	}
	if q.Text == "" || len(q.Options) < 2 {
		return nil, fmt.Errorf("decode public question: malformed stored value")
	}
	return &q, nil
}

// ParseIndex parses a stored question index strictly: base-10 integer,
// no surrounding noise, never negative.
func ParseIndex(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse question index %q: %w", raw, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("parse question index: negative value %d", n)
	}
	return n, nil
}

// PrizeFields flattens a prize into the hash stored under KeyCurrentPrize.
func PrizeFields(p Prize) map[string]string {
	return map[string]string{
		FieldPrizeAmount:   strconv.FormatInt(p.Amount, 10),
		FieldPrizeCurrency: p.Currency,
	}
}

// PrizeFromFields rebuilds and validates a prize from its stored hash.
func PrizeFromFields(fields map[string]string) (Prize, error) {
	raw, ok := fields[FieldPrizeAmount]
	if !ok {
		return Prize{}, fmt.Errorf("parse prize: missing %s field", FieldPrizeAmount)
	}
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Prize{}, fmt.Errorf("parse prize amount %q: %w", raw, err)
	}
	if amount < 0 {
		return Prize{}, fmt.Errorf("parse prize: negative amount %d", amount)
	}
	currency := fields[FieldPrizeCurrency]
	if currency == "" {
		return Prize{}, fmt.Errorf("parse prize: missing currency")
	}
	return Prize{Amount: amount, Currency: currency}, nil
}

// AnalyticsFromFields rebuilds a scoring record from its stored hash.
// An empty hash is a valid zero record: the viewer has not answered yet.
func AnalyticsFromFields(fields map[string]string) (GameAnalytics, error) {
	var a GameAnalytics
	var err error
	if a.CorrectCount, err = counterField(fields, FieldCorrectCount); err != nil {
		return GameAnalytics{}, err
	}
	if a.IncorrectCount, err = counterField(fields, FieldIncorrectCount); err != nil {
		return GameAnalytics{}, err
	}
	if a.TotalPrize, err = counterField(fields, FieldTotalPrize); err != nil {
		return GameAnalytics{}, err
	}
	return a, nil
}

func counterField(fields map[string]string, name string) (int64, error) {
	raw, ok := fields[name]
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse analytics field %s=%q: %w", name, raw, err)
	}
	return n, nil
}
