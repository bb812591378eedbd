package twofactor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/husnainisworking/personal-blog/internal/domain"
	"github.com/husnainisworking/personal-blog/internal/infrastructure/metrics"
	"github.com/husnainisworking/personal-blog/internal/pkg/otp"
	"github.com/rs/zerolog"
)

// CodeStore persists the single outstanding code of an identity.
type CodeStore interface {
	// Get returns domain.ErrNotFound when no code is stored.
	Get(ctx context.Context, userID, verType string) (*domain.UserVerification, error)
	// Put overwrites any previous code of the same type.
	Put(ctx context.Context, v *domain.UserVerification) error
	// DeleteIfCode removes the item only while it still holds code.
	// Otherwise it returns domain.ErrConflict.
	DeleteIfCode(ctx context.Context, userID, verType, code string) error
}

type UserStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// RateLimiter is a fixed-window counter shared by every server process.
type RateLimiter interface {
	// Reserve atomically checks the window of key and counts one attempt when
	// fewer than max were counted. The window starts at the first counted
	// attempt and lasts decay. A false result counts nothing.
	Reserve(ctx context.Context, key string, max int, decay time.Duration) (bool, error)
	// AvailableIn is the time left until the window of key resets.
	AvailableIn(ctx context.Context, key string) (time.Duration, error)
	Clear(ctx context.Context, key string) error
}

type SessionStore interface {
	Terminate(ctx context.Context, sessionID string) error
	// MarkVerified records a completed verification on the session.
	MarkVerified(ctx context.Context, sessionID string) error
}

// Notifier delivers a code to the user's address.
type Notifier interface {
	Send(ctx context.Context, u *domain.User, code string) error
}

type Config struct {
	CodeLifetime      time.Duration
	VerifyMaxAttempts int
	VerifyDecay       time.Duration
	ResendMaxAttempts int
	ResendDecay       time.Duration
}

type VerifyOutcome int

const (
	Verified VerifyOutcome = iota + 1
	TooManyAttempts
	NoActiveCode
	InvalidOrExpired
)

func (o VerifyOutcome) String() string {
	switch o {
	case Verified:
		return "verified"
	case TooManyAttempts:
		return "too_many_attempts"
	case NoActiveCode:
		return "no_active_code"
	case InvalidOrExpired:
		return "invalid_or_expired"
	}
	return "unknown"
}

type VerifyResult struct {
	Outcome VerifyOutcome
	// RetryAfter is set for TooManyAttempts.
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (r VerifyResult) RetryAfterSeconds() int {
	return int((r.RetryAfter + time.Second - 1) / time.Second)
}

type ResendOutcome int

const (
	Resent ResendOutcome = iota + 1
	TooManyResends
)

type ResendResult struct {
	Outcome ResendOutcome
	// RetryAfter is set for TooManyResends.
	RetryAfter time.Duration
}

// RetryAfterMinutes rounds RetryAfter up to whole minutes.
func (r ResendResult) RetryAfterMinutes() int {
	return int((r.RetryAfter + time.Minute - 1) / time.Minute)
}

func (r ResendResult) RetryAfterSeconds() int {
	return int((r.RetryAfter + time.Second - 1) / time.Second)
}

type GuardDecision int

const (
	Pass GuardDecision = iota + 1
	RedirectToVerify
	ForceLogout
)

func (d GuardDecision) String() string {
	switch d {
	case Pass:
		return "pass"
	case RedirectToVerify:
		return "redirect_to_verify"
	case ForceLogout:
		return "force_logout"
	}
	return "unknown"
}

// Service is the two-factor gate. Policy rejections are returned as typed
// results; the error return is reserved for infrastructure failures.
type Service interface {
	// Issue stores a fresh code for u, replacing any previous one, and sends it.
	// A delivery failure returns the stored code together with an error wrapping
	// domain.ErrTransportFailure.
	Issue(ctx context.Context, u *domain.User) (string, error)
	// Verify checks code for the subject. Any rejection other than throttling
	// counts an attempt against clientKey and terminates the subject's session.
	Verify(ctx context.Context, sub domain.Subject, code, clientKey string) (VerifyResult, error)
	Resend(ctx context.Context, sub domain.Subject, clientKey string) (ResendResult, error)
	// Guard passes a session only when it has verified a code and no newer
	// code is pending. Expired codes and unverified sessions are logged out.
	Guard(ctx context.Context, sub domain.Subject) (GuardDecision, error)
}

type ServiceDeps struct {
	Codes    CodeStore
	Users    UserStore
	Limiter  RateLimiter
	Sessions SessionStore
	Notifier Notifier
	Metrics  *metrics.Metrics
	Logger   *zerolog.Logger
	Config   Config
	// Now defaults to time.Now.
	Now func() time.Time
	// NewCode defaults to otp.NewCode.
	NewCode func() (string, error)
}

type service struct {
	codes    CodeStore
	users    UserStore
	limiter  RateLimiter
	sessions SessionStore
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zerolog.Logger
	cfg      Config
	now      func() time.Time
	newCode  func() (string, error)
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		codes:    deps.Codes,
		users:    deps.Users,
		limiter:  deps.Limiter,
		sessions: deps.Sessions,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		cfg:      deps.Config,
		now:      deps.Now,
		newCode:  deps.NewCode,
	}
	if s.cfg.CodeLifetime <= 0 {
		s.cfg.CodeLifetime = 10 * time.Minute
	}
	if s.cfg.VerifyMaxAttempts < 1 {
		s.cfg.VerifyMaxAttempts = 5
	}
	if s.cfg.VerifyDecay <= 0 {
		s.cfg.VerifyDecay = time.Minute
	}
	if s.cfg.ResendMaxAttempts < 1 {
		s.cfg.ResendMaxAttempts = 3
	}
	if s.cfg.ResendDecay <= 0 {
		s.cfg.ResendDecay = 5 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newCode == nil {
		s.newCode = otp.NewCode
	}
	if s.logger == nil {
		nop := zerolog.Nop()
		s.logger = &nop
	}
	return s
}

func verifyKey(clientKey string) string { return "verify-2fa-" + clientKey }
func resendKey(clientKey string) string { return "resend-2fa-" + clientKey }

func (s *service) Issue(ctx context.Context, u *domain.User) (string, error) {
	code, err := s.newCode()
	if err != nil {
		return "", err
	}
	expiresAt := s.now().Add(s.cfg.CodeLifetime)
	v := &domain.UserVerification{
		UserID:    u.UserID,
		Type:      domain.VerificationTypeTwoFactor,
		Code:      code,
		ExpiresAt: expiresAt.UnixMilli(),
	}
	if err := s.codes.Put(ctx, v); err != nil {
		return "", fmt.Errorf("store verification code: %w", err)
	}
	s.metrics.TwoFactor(metrics.EventIssued)

	if err := s.notifier.Send(ctx, u, code); err != nil {
		s.metrics.TwoFactor(metrics.EventDeliveryFailed)
		s.logger.Error().Err(err).Str("user_id", u.UserID).Msg("verification code delivery failed")
		return code, fmt.Errorf("%w: %w", domain.ErrTransportFailure, err)
	}
	s.logger.Info().Str("user_id", u.UserID).Time("expires_at", expiresAt).Msg("verification code issued")
	return code, nil
}

func (s *service) state(ctx context.Context, userID string) (domain.VerificationState, error) {
	v, err := s.codes.Get(ctx, userID, domain.VerificationTypeTwoFactor)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NoCode{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load verification code: %w", err)
	}
	return domain.StateFromVerification(v), nil
}

func (s *service) Verify(ctx context.Context, sub domain.Subject, code, clientKey string) (VerifyResult, error) {
	key := verifyKey(clientKey)
	// The attempt is counted before the code is read. A success clears it.
	reserved, err := s.limiter.Reserve(ctx, key, s.cfg.VerifyMaxAttempts, s.cfg.VerifyDecay)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("reserve verify attempt: %w", err)
	}
	if !reserved {
		wait, err := s.limiter.AvailableIn(ctx, key)
		if err != nil {
			return VerifyResult{}, fmt.Errorf("verify limiter ttl: %w", err)
		}
		s.metrics.TwoFactor(metrics.EventThrottled)
		s.logger.Warn().Str("user_id", sub.UserID).Str("client", clientKey).Dur("retry_after", wait).Msg("verification throttled")
		return VerifyResult{Outcome: TooManyAttempts, RetryAfter: wait}, nil
	}

	state, err := s.state(ctx, sub.UserID)
	if err != nil {
		return VerifyResult{}, err
	}
	switch st := state.(type) {
	case domain.NoCode:
		return s.reject(ctx, sub, NoActiveCode)
	case domain.PendingCode:
		// Both checks run before branching.
		match := otp.Equal(st.Code, code)
		live := !st.ExpiredAt(s.now())
		if !match || !live {
			return s.reject(ctx, sub, InvalidOrExpired)
		}
		err := s.codes.DeleteIfCode(ctx, sub.UserID, domain.VerificationTypeTwoFactor, st.Code)
		if errors.Is(err, domain.ErrConflict) {
			// Consumed or replaced since it was read.
			return s.reject(ctx, sub, NoActiveCode)
		}
		if err != nil {
			return VerifyResult{}, fmt.Errorf("consume verification code: %w", err)
		}
		if err := s.sessions.MarkVerified(ctx, sub.SessionID); err != nil {
			return VerifyResult{}, fmt.Errorf("mark session verified: %w", err)
		}
		if err := s.limiter.Clear(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("client", clientKey).Msg("verify limiter clear failed")
		}
		s.metrics.TwoFactor(metrics.EventVerified)
		s.logger.Info().Str("user_id", sub.UserID).Str("session_id", sub.SessionID).Msg("two-factor verified")
		return VerifyResult{Outcome: Verified}, nil
	default:
		return VerifyResult{}, fmt.Errorf("unexpected verification state %T", state)
	}
}

// reject ends the session. The attempt was already counted by Verify. Every
// failed verification requires a new login.
func (s *service) reject(ctx context.Context, sub domain.Subject, outcome VerifyOutcome) (VerifyResult, error) {
	if err := s.sessions.Terminate(ctx, sub.SessionID); err != nil {
		return VerifyResult{}, fmt.Errorf("terminate session: %w", err)
	}
	if outcome == NoActiveCode {
		s.metrics.TwoFactor(metrics.EventNoActiveCode)
	} else {
		s.metrics.TwoFactor(metrics.EventInvalid)
	}
	s.logger.Warn().
		Str("user_id", sub.UserID).
		Str("session_id", sub.SessionID).
		Stringer("outcome", outcome).
		Msg("verification rejected, session terminated")
	return VerifyResult{Outcome: outcome}, nil
}

func (s *service) Resend(ctx context.Context, sub domain.Subject, clientKey string) (ResendResult, error) {
	key := resendKey(clientKey)
	reserved, err := s.limiter.Reserve(ctx, key, s.cfg.ResendMaxAttempts, s.cfg.ResendDecay)
	if err != nil {
		return ResendResult{}, fmt.Errorf("reserve resend: %w", err)
	}
	if !reserved {
		wait, err := s.limiter.AvailableIn(ctx, key)
		if err != nil {
			return ResendResult{}, fmt.Errorf("resend limiter ttl: %w", err)
		}
		s.metrics.TwoFactor(metrics.EventResendThrottled)
		return ResendResult{Outcome: TooManyResends, RetryAfter: wait}, nil
	}

	u, err := s.users.Get(ctx, sub.UserID)
	if err != nil {
		return ResendResult{}, fmt.Errorf("load user: %w", err)
	}
	// The resend stays counted even if delivery fails.
	_, issueErr := s.Issue(ctx, u)
	if issueErr != nil && !errors.Is(issueErr, domain.ErrTransportFailure) {
		return ResendResult{}, issueErr
	}
	s.metrics.TwoFactor(metrics.EventResent)
	return ResendResult{Outcome: Resent}, issueErr
}

func (s *service) Guard(ctx context.Context, sub domain.Subject) (GuardDecision, error) {
	state, err := s.state(ctx, sub.UserID)
	if err != nil {
		return 0, err
	}
	switch st := state.(type) {
	case domain.NoCode:
		if sub.Verified {
			return Pass, nil
		}
		// The code is gone but this session never verified one.
		if err := s.sessions.Terminate(ctx, sub.SessionID); err != nil {
			return 0, fmt.Errorf("terminate session: %w", err)
		}
		s.metrics.TwoFactor(metrics.EventGuardLogout)
		s.logger.Warn().Str("user_id", sub.UserID).Str("session_id", sub.SessionID).Msg("unverified session without code, session terminated")
		return ForceLogout, nil
	case domain.PendingCode:
		if !st.ExpiredAt(s.now()) {
			return RedirectToVerify, nil
		}
		err := s.codes.DeleteIfCode(ctx, sub.UserID, domain.VerificationTypeTwoFactor, st.Code)
		if err != nil && !errors.Is(err, domain.ErrConflict) {
			return 0, fmt.Errorf("clear expired code: %w", err)
		}
		if err := s.sessions.Terminate(ctx, sub.SessionID); err != nil {
			return 0, fmt.Errorf("terminate session: %w", err)
		}
		s.metrics.TwoFactor(metrics.EventGuardLogout)
		s.logger.Info().Str("user_id", sub.UserID).Str("session_id", sub.SessionID).Msg("verification code expired, session terminated")
		return ForceLogout, nil
	default:
		return 0, fmt.Errorf("unexpected verification state %T", state)
	}
}
