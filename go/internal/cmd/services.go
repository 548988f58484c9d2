package main

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/mcdev12/livetrivia/go/internal/broadcast"
	"github.com/mcdev12/livetrivia/go/internal/content"
	"github.com/mcdev12/livetrivia/go/internal/gateway"
	"github.com/mcdev12/livetrivia/go/internal/identity"
	"github.com/mcdev12/livetrivia/go/internal/presence"
	"github.com/mcdev12/livetrivia/go/internal/scoring"
	"github.com/mcdev12/livetrivia/go/internal/session"
	"github.com/mcdev12/livetrivia/go/internal/store"
)

type Services struct {
	Store       *store.RedisStore
	Broadcaster *broadcast.Publisher
	Presence    *presence.Tracker
	Machine     *session.Machine
	Scorer      *scoring.Scorer
	Gateway     *gateway.Service
}

func setupServices(config *Config, rdb *redis.Client, nc *nats.Conn, pool *pgxpool.Pool) *Services {
	// Wire up dependency injection chain
	// Store/transport layer → engine layer → gateway layer

	clock := clockwork.NewRealClock()

	sharedStore := store.NewRedisStore(rdb)
	broadcaster := broadcast.NewPublisher(nc, config.NATS.Subject)
	tracker := presence.New(sharedStore)

	contentRepo := content.NewRepository(pool)
	ids := identity.NewProvider(pool, []byte(config.Auth.JWTSecret))

	machine := session.NewMachine(sharedStore, contentRepo, broadcaster, clock)
	scorer := scoring.NewScorer(sharedStore, clock, scoring.Config{
		AnswerWindow: config.answerWindow(),
		MarkerTTL:    config.markerTTL(),
	})

	router := gateway.NewRouter(machine, scorer, tracker, broadcaster)
	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.Subject = config.NATS.Subject
	gatewayService := gateway.NewService(gatewayConfig, nc, router, tracker, ids)

	return &Services{
		Store:       sharedStore,
		Broadcaster: broadcaster,
		Presence:    tracker,
		Machine:     machine,
		Scorer:      scorer,
		Gateway:     gatewayService,
	}
}
