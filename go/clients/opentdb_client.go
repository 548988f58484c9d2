package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"

	"github.com/mcdev12/livetrivia/go/internal/game"
)

const openTDBBaseURL = "https://opentdb.com"

// OpenTDBClient pulls multiple-choice questions from the Open Trivia
// Database, used to stock games when no curated question set exists yet.
type OpenTDBClient struct {
	*BaseClient
}

func NewOpenTDBClient() *OpenTDBClient {
	return &OpenTDBClient{BaseClient: NewBaseClient(openTDBBaseURL)}
}

type openTDBResponse struct {
	ResponseCode int `json:"response_code"`
	Results      []struct {
		Question         string   `json:"question"`
		CorrectAnswer    string   `json:"correct_answer"`
		IncorrectAnswers []string `json:"incorrect_answers"`
	} `json:"results"`
}

// FetchQuestions retrieves count multiple-choice questions and shapes them
// for a game, shuffling each question's options. Prizes are left zero; the
// caller assigns the prize ladder.
func (c *OpenTDBClient) FetchQuestions(ctx context.Context, count int) ([]game.Question, error) {
	// encode=url3986 sidesteps the API's default HTML entity escaping.
	endpoint := fmt.Sprintf("/api.php?amount=%d&type=multiple&encode=url3986", count)
	body, err := c.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}

	var decoded openTDBResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if decoded.ResponseCode != 0 {
		return nil, fmt.Errorf("opentdb response code %d", decoded.ResponseCode)
	}

	questions := make([]game.Question, 0, len(decoded.Results))
	for _, result := range decoded.Results {
		text, err := url.QueryUnescape(result.Question)
		if err != nil {
			return nil, fmt.Errorf("unescape question: %w", err)
		}
		correct, err := url.QueryUnescape(result.CorrectAnswer)
		if err != nil {
			return nil, fmt.Errorf("unescape answer: %w", err)
		}

		options := []string{correct}
		for _, wrong := range result.IncorrectAnswers {
			unescaped, err := url.QueryUnescape(wrong)
			if err != nil {
				return nil, fmt.Errorf("unescape option: %w", err)
			}
			options = append(options, unescaped)
		}
		rand.Shuffle(len(options), func(i, j int) {
			options[i], options[j] = options[j], options[i]
		})

		answerIndex := 0
		for i, option := range options {
			if option == correct {
				answerIndex = i
				break
			}
		}

		questions = append(questions, game.Question{
			Text:        text,
			Options:     options,
			AnswerIndex: answerIndex,
		})
	}
	return questions, nil
}
