package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrInvalidToken: the presented token failed verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnknownUser: the token verified but no such user exists.
	ErrUnknownUser = errors.New("unknown user")
)

// Viewer is the stable identity behind an authenticated connection.
type Viewer struct {
	UserID string
	Name   string
	Admin  bool
}

// Provider resolves connection tokens to viewer identities. Tokens are
// HMAC-signed JWTs minted by the external auth service; the user record
// lives in its Postgres store. Read-only from the engine's perspective.
type Provider struct {
	pool   *pgxpool.Pool
	secret []byte
}

func NewProvider(pool *pgxpool.Pool, secret []byte) *Provider {
	return &Provider{pool: pool, secret: secret}
}

type claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Resolve verifies the token and looks up the viewer it identifies.
func (p *Provider) Resolve(ctx context.Context, token string) (*Viewer, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	tokenClaims, ok := parsed.Claims.(*claims)
	if !ok || tokenClaims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	row := p.pool.QueryRow(ctx, `SELECT id, name FROM users WHERE id = $1`, tokenClaims.Subject)
	var viewer Viewer
	if err := row.Scan(&viewer.UserID, &viewer.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", tokenClaims.Subject, ErrUnknownUser)
		}
		return nil, fmt.Errorf("failed to look up user %s: %w", tokenClaims.Subject, err)
	}
	viewer.Admin = tokenClaims.Role == "admin"
	return &viewer, nil
}
