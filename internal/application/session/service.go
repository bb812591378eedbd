package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/husnainisworking/personal-blog/internal/domain"
	"github.com/husnainisworking/personal-blog/internal/pkg/id"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	Bearer  string
	Session *domain.Session
	// CodeSent is false when the verification code could not be delivered.
	// The code is stored either way and a resend may be requested.
	CodeSent bool
}

type Service interface {
	// Login opens a session and issues a two-factor code for it. The session
	// stays gated until the code is verified.
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error)
}

type UserStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type SessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Terminate(ctx context.Context, sessionID string) error
}

type TokenSigner interface {
	Sign(userID, sessionID string) (string, error)
}

// CodeIssuer is the part of the two-factor gate that runs at login.
type CodeIssuer interface {
	Issue(ctx context.Context, u *domain.User) (string, error)
}

type ServiceDeps struct {
	UserRepo    UserStore
	SessionRepo SessionStore
	JWTProvider TokenSigner
	TwoFactor   CodeIssuer
	Logger      *zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type service struct {
	userRepo    UserStore
	sessionRepo SessionStore
	jwtProvider TokenSigner
	twoFactor   CodeIssuer
	logger      *zerolog.Logger
	now         func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		userRepo:    deps.UserRepo,
		sessionRepo: deps.SessionRepo,
		jwtProvider: deps.JWTProvider,
		twoFactor:   deps.TwoFactor,
		logger:      deps.Logger,
		now:         deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		nop := zerolog.Nop()
		s.logger = &nop
	}
	return s
}

var errInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	u, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		u, err = s.userRepo.GetByEmail(ctx, req.Username)
		if err != nil {
			return nil, errInvalidCredentials
		}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}
	if !u.Enabled() {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrUnauthorized)
	}

	now := s.now().UTC()
	sess := &domain.Session{
		SessionID: id.New(),
		UserID:    u.UserID,
		Enable:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	bearer, err := s.jwtProvider.Sign(u.UserID, sess.SessionID)
	if err != nil {
		return nil, s.abandon(ctx, sess.SessionID, fmt.Errorf("sign token: %w", err))
	}

	sent := true
	if _, err := s.twoFactor.Issue(ctx, u); err != nil {
		if !errors.Is(err, domain.ErrTransportFailure) {
			return nil, s.abandon(ctx, sess.SessionID, fmt.Errorf("issue verification code: %w", err))
		}
		sent = false
	}
	s.logger.Info().Str("user_id", u.UserID).Str("session_id", sess.SessionID).Bool("code_sent", sent).Msg("login")

	sess.User = u
	return &LoginResult{Bearer: bearer, Session: sess, CodeSent: sent}, nil
}

// abandon terminates a session whose login did not complete and returns cause.
func (s *service) abandon(ctx context.Context, sessionID string, cause error) error {
	if err := s.sessionRepo.Terminate(ctx, sessionID); err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("could not terminate abandoned session")
		return errors.Join(cause, err)
	}
	return cause
}

func (s *service) Logout(ctx context.Context, sessionID string) error {
	return s.sessionRepo.Terminate(ctx, sessionID)
}

func (s *service) GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Enable {
		return nil, fmt.Errorf("session expired: %w", domain.ErrUnauthorized)
	}
	u, err := s.userRepo.Get(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	sess.User = u
	return sess, nil
}
