package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/livetrivia/go/clients"
	"github.com/mcdev12/livetrivia/go/internal/dbconfig"
	"github.com/mcdev12/livetrivia/go/internal/game"
)

// SeedGame mirrors the JSON snapshot structure
type SeedGame struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	AirTime   time.Time       `json:"air_time"`
	Questions []game.Question `json:"questions"`
}

func main() {
	file := flag.String("file", "", "path to a games JSON snapshot")
	fetch := flag.Int("fetch", 0, "fetch N questions from Open Trivia DB instead of a snapshot")
	name := flag.String("name", "", "game name when fetching")
	airTime := flag.String("air-time", "", "game air time (RFC 3339) when fetching")
	prize := flag.Int64("prize", 10, "per-question prize amount when fetching")
	currency := flag.String("currency", "$", "prize currency when fetching")
	flag.Parse()

	var games []SeedGame
	switch {
	case *file != "":
		data, err := os.ReadFile(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
			os.Exit(1)
		}
		if err := json.Unmarshal(data, &games); err != nil {
			fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
			os.Exit(1)
		}

	case *fetch > 0:
		g, err := fetchGame(*fetch, *name, *airTime, *prize, *currency)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fetch game: %v\n", err)
			os.Exit(1)
		}
		games = []SeedGame{*g}

	default:
		fmt.Fprintln(os.Stderr, "either -file or -fetch is required")
		os.Exit(1)
	}

	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	var (
		total    = len(games)
		inserted int
		skipped  int
		errs     int
	)

	for _, g := range games {
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		if err := insertGame(pool, g); err != nil {
			fmt.Fprintf(os.Stderr, "error inserting game %s: %v\n", g.Name, err)
			errs++
			continue
		}
		n, err := insertQuestions(pool, g)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting questions for game %s: %v\n", g.Name, err)
			errs++
			continue
		}
		if n > 0 {
			inserted++
		} else {
			skipped++
		}
	}

	fmt.Printf(
		"Games seed complete: %d total, %d inserted, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}

func fetchGame(count int, name, rawAirTime string, prize int64, currency string) (*SeedGame, error) {
	if name == "" {
		return nil, fmt.Errorf("-name is required with -fetch")
	}
	at := time.Now().Add(time.Hour)
	if rawAirTime != "" {
		parsed, err := time.Parse(time.RFC3339, rawAirTime)
		if err != nil {
			return nil, fmt.Errorf("parse -air-time: %w", err)
		}
		at = parsed
	}

	questions, err := clients.NewOpenTDBClient().FetchQuestions(context.Background(), count)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		questions[i].Prize = game.Prize{Amount: prize, Currency: currency}
	}
	return &SeedGame{Name: name, AirTime: at, Questions: questions}, nil
}

func insertGame(pool *pgxpool.Pool, g SeedGame) error {
	_, err := pool.Exec(context.Background(), `
        INSERT INTO games (id, name, air_time)
        VALUES ($1, $2, $3)
        ON CONFLICT (id) DO NOTHING
    `, g.ID, g.Name, g.AirTime)
	return err
}

func insertQuestions(pool *pgxpool.Pool, g SeedGame) (int, error) {
	inserted := 0
	for position, q := range g.Questions {
		cmdTag, err := pool.Exec(context.Background(), `
            INSERT INTO questions (
              game_id, position, text, options,
              answer_index, prize_amount, prize_currency
            ) VALUES ($1,$2,$3,$4,$5,$6,$7)
            ON CONFLICT (game_id, position) DO NOTHING
        `,
			g.ID, position, q.Text, q.Options,
			q.AnswerIndex, q.Prize.Amount, q.Prize.Currency,
		)
		if err != nil {
			return inserted, err
		}
		if cmdTag.RowsAffected() == 1 {
			inserted++
		}
	}
	return inserted, nil
}
