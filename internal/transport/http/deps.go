package http

import (
	"context"

	"github.com/husnainisworking/personal-blog/internal/application/record"
	"github.com/husnainisworking/personal-blog/internal/application/slug"
	"github.com/husnainisworking/personal-blog/internal/application/twofactor"
	"github.com/husnainisworking/personal-blog/internal/domain"
	jwtinfra "github.com/husnainisworking/personal-blog/internal/infrastructure/jwt"
	"github.com/husnainisworking/personal-blog/internal/infrastructure/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// SessionRepository is the minimal interface the router requires from a session store.
type SessionRepository interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Terminate(ctx context.Context, sessionID string) error
	MarkVerified(ctx context.Context, sessionID string) error
}

// RecordStore is the Postgres side of posts, categories and tags.
type RecordStore interface {
	slug.Store
	record.Store
}

// RecordCache is the read-through cache for slug lookups.
type RecordCache interface {
	record.Cache
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo         UserRepository
	SessionRepo      SessionRepository
	VerificationRepo twofactor.CodeStore
	Records          RecordStore
	Cache            RecordCache
	Limiter          twofactor.RateLimiter
	Notifier         twofactor.Notifier
	JWTProvider      *jwtinfra.Provider
	Metrics          *metrics.Metrics
	Gatherer         prometheus.Gatherer
	Logger           *zerolog.Logger
}
