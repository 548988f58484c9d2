package game

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func validQuestion() Question {
	return Question{
		Text:        "Which planet is known as the red planet?",
		Options:     []string{"Venus", "Mars", "Jupiter"},
		AnswerIndex: 1,
		Prize:       Prize{Amount: 10, Currency: "$"},
	}
}

func TestEncodeDecodeQuestions(t *testing.T) {
	questions := []Question{validQuestion(), {
		Text:        "How many continents are there?",
		Options:     []string{"5", "6", "7"},
		AnswerIndex: 2,
		Prize:       Prize{Amount: 20, Currency: "$"},
	}}

	encoded, err := EncodeQuestions(questions)
	if err != nil {
		t.Fatalf("EncodeQuestions: %v", err)
	}
	decoded, err := DecodeQuestions(encoded)
	if err != nil {
		t.Fatalf("DecodeQuestions: %v", err)
	}
	if diff := cmp.Diff(questions, decoded); diff != "" {
		t.Errorf("questions round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeQuestionsRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Question)
	}{
		{"empty text", func(q *Question) { q.Text = "" }},
		{"one option", func(q *Question) { q.Options = []string{"only"} }},
		{"answer out of range", func(q *Question) { q.AnswerIndex = 3 }},
		{"negative answer", func(q *Question) { q.AnswerIndex = -1 }},
		{"negative prize", func(q *Question) { q.Prize.Amount = -5 }},
		{"empty currency", func(q *Question) { q.Prize.Currency = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuestion()
			tt.mutate(&q)
			if _, err := EncodeQuestions([]Question{q}); err == nil {
				t.Errorf("EncodeQuestions accepted %s", tt.name)
			}
		})
	}

	if _, err := DecodeQuestions("not json"); err == nil {
		t.Error("DecodeQuestions accepted garbage")
	}
	if _, err := DecodeQuestions("[]"); err == nil {
		t.Error("DecodeQuestions accepted empty sequence")
	}
}

func TestParseIndex(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"12", 12, false},
		{"-1", 0, true},
		{"", 0, true},
		{"3.5", 0, true},
		{" 3", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseIndex(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseIndex(%q) = %d, want error", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseIndex(%q): %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseIndex(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestPrizeRoundTrip(t *testing.T) {
	prize := Prize{Amount: 250, Currency: "$"}
	got, err := PrizeFromFields(PrizeFields(prize))
	if err != nil {
		t.Fatalf("PrizeFromFields: %v", err)
	}
	if got != prize {
		t.Errorf("prize round-trip = %+v, want %+v", got, prize)
	}
}

func TestPrizeFromFieldsRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"missing amount", map[string]string{FieldPrizeCurrency: "$"}},
		{"bad amount", map[string]string{FieldPrizeAmount: "lots", FieldPrizeCurrency: "$"}},
		{"negative amount", map[string]string{FieldPrizeAmount: "-1", FieldPrizeCurrency: "$"}},
		{"missing currency", map[string]string{FieldPrizeAmount: "10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := PrizeFromFields(tt.fields); err == nil {
				t.Errorf("PrizeFromFields accepted %s", tt.name)
			}
		})
	}
}

func TestAnalyticsFromFields(t *testing.T) {
	got, err := AnalyticsFromFields(map[string]string{
		FieldCorrectCount: "3",
		FieldTotalPrize:   "45",
	})
	if err != nil {
		t.Fatalf("AnalyticsFromFields: %v", err)
	}
	want := GameAnalytics{CorrectCount: 3, IncorrectCount: 0, TotalPrize: 45}
	if got != want {
		t.Errorf("AnalyticsFromFields = %+v, want %+v", got, want)
	}

	if _, err := AnalyticsFromFields(map[string]string{FieldCorrectCount: "many"}); err == nil {
		t.Error("AnalyticsFromFields accepted non-integer counter")
	}
}

func TestAnsweredKeyShape(t *testing.T) {
	got := AnsweredKey("conn-1", 4)
	if !strings.HasPrefix(got, "conn-1:") || !strings.HasSuffix(got, ":answered") {
		t.Errorf("AnsweredKey = %q", got)
	}
}
