package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/livetrivia/go/internal/game"
)

// ErrGameNotFound: the requested game does not exist in the content store.
var ErrGameNotFound = errors.New("game not found")

// questionPageSize is how many questions one page fetch returns. Shows are
// a dozen questions; paging exists for the repository contract, not volume.
const questionPageSize = 50

// Repository reads game content from Postgres. The engine treats it as an
// external collaborator: read-only lookups, never written back.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetGame retrieves a game's header by ID.
func (r *Repository) GetGame(ctx context.Context, gameID string) (*game.GameInfo, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, air_time FROM games WHERE id = $1`, gameID)

	var info game.GameInfo
	if err := row.Scan(&info.ID, &info.Name, &info.AirTime); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("game %s: %w", gameID, ErrGameNotFound)
		}
		return nil, fmt.Errorf("failed to get game %s: %w", gameID, err)
	}
	return &info, nil
}

// ListQuestions returns one page of a game's questions ordered by position.
func (r *Repository) ListQuestions(ctx context.Context, gameID string, limit, offset int) ([]game.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT text, options, answer_index, prize_amount, prize_currency
		 FROM questions
		 WHERE game_id = $1
		 ORDER BY position
		 LIMIT $2 OFFSET $3`,
		gameID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions for game %s: %w", gameID, err)
	}
	defer rows.Close()

	var questions []game.Question
	for rows.Next() {
		var q game.Question
		if err := rows.Scan(&q.Text, &q.Options, &q.AnswerIndex, &q.Prize.Amount, &q.Prize.Currency); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions for game %s: %w", gameID, err)
	}
	return questions, nil
}

// LoadQuestions pages through the full ordered question sequence of a game.
func (r *Repository) LoadQuestions(ctx context.Context, gameID string) ([]game.Question, error) {
	var all []game.Question
	for offset := 0; ; offset += questionPageSize {
		page, err := r.ListQuestions(ctx, gameID, questionPageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < questionPageSize {
			return all, nil
		}
	}
}

// NextScheduledGame returns the earliest unaired game, if any.
func (r *Repository) NextScheduledGame(ctx context.Context) (*game.UpcomingGame, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, air_time
		 FROM games
		 WHERE aired = false AND air_time > now()
		 ORDER BY air_time
		 LIMIT 1`)

	var upcoming game.UpcomingGame
	if err := row.Scan(&upcoming.GameID, &upcoming.Name, &upcoming.AirTime); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, game.ErrNoUpcomingGame
		}
		return nil, fmt.Errorf("failed to get next scheduled game: %w", err)
	}
	return &upcoming, nil
}
