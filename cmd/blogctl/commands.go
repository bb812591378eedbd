package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/husnainisworking/personal-blog/internal/domain"
	"github.com/husnainisworking/personal-blog/internal/pkg/id"
	"github.com/husnainisworking/personal-blog/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

type cacheInvalidator interface {
	Invalidate(ctx context.Context, t domain.RecordType, slugs ...string) error
	InvalidateType(ctx context.Context, t domain.RecordType) (int64, error)
}

type userCreator interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}

// cacheInvalidate drops one cached slug, or every cached record of a type.
func cacheInvalidate(ctx context.Context, cache cacheInvalidator, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("cache-invalidate", flag.ContinueOnError)
	fs.SetOutput(out)
	typ := fs.String("type", "", "record type: posts, categories or tags")
	slugValue := fs.String("slug", "", "single slug to drop (default: every slug of the type)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	t, err := domain.ParseRecordType(*typ)
	if err != nil {
		return err
	}

	if *slugValue != "" {
		if err := cache.Invalidate(ctx, t, *slugValue); err != nil {
			return fmt.Errorf("invalidate %s:%s: %w", t, *slugValue, err)
		}
		fmt.Fprintf(out, "invalidated %s:%s\n", t, *slugValue)
		return nil
	}
	n, err := cache.InvalidateType(ctx, t)
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", t, err)
	}
	fmt.Fprintf(out, "invalidated %d cached %s entries\n", n, t)
	return nil
}

type newUser struct {
	Username string `validate:"required,min=3,max=64"`
	Email    string `validate:"required,email"`
	Phone    string `validate:"omitempty,e164"`
	Password string `validate:"required,min=8"`
}

// userAdd creates an enabled account. The password is read from the
// environment variable named by -password-env so it stays out of shell history.
func userAdd(ctx context.Context, users userCreator, args []string, getenv func(string) string, now func() time.Time, out io.Writer) error {
	fs := flag.NewFlagSet("user-add", flag.ContinueOnError)
	fs.SetOutput(out)
	username := fs.String("username", "", "login name")
	email := fs.String("email", "", "address two-factor codes are mailed to")
	phone := fs.String("phone", "", "E.164 number for SMS codes")
	passwordEnv := fs.String("password-env", "BLOG_USER_PASSWORD", "environment variable holding the password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := newUser{
		Username: strings.TrimSpace(*username),
		Email:    strings.ToLower(strings.TrimSpace(*email)),
		Phone:    strings.TrimSpace(*phone),
		Password: getenv(*passwordEnv),
	}
	if err := validate.Struct(&req); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBadRequest, err)
	}
	if _, err := users.GetByUsername(ctx, req.Username); err == nil {
		return fmt.Errorf("username %q: %w", req.Username, domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if _, err := users.GetByEmail(ctx, req.Email); err == nil {
		return fmt.Errorf("email %q: %w", req.Email, domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	ts := now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Enable:       1,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	if req.Phone != "" {
		u.Phone = &req.Phone
	}
	if err := users.Create(ctx, u); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintf(out, "created user %s (%s)\n", u.Username, u.UserID)
	return nil
}

type userUpdater interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	SetEnabled(ctx context.Context, userID string, enabled bool) error
	SetPasswordHash(ctx context.Context, userID, hash string) error
}

func lookupUser(ctx context.Context, users userUpdater, fs *flag.FlagSet, username string) (*domain.User, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		fs.Usage()
		return nil, fmt.Errorf("-username is required: %w", domain.ErrBadRequest)
	}
	u, err := users.GetByUsername(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", name, err)
	}
	return u, nil
}

// userDisable blocks future logins of an account, or re-enables it with -enable.
func userDisable(ctx context.Context, users userUpdater, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("user-disable", flag.ContinueOnError)
	fs.SetOutput(out)
	username := fs.String("username", "", "login name")
	enable := fs.Bool("enable", false, "re-enable instead of disabling")
	if err := fs.Parse(args); err != nil {
		return err
	}
	u, err := lookupUser(ctx, users, fs, *username)
	if err != nil {
		return err
	}
	if err := users.SetEnabled(ctx, u.UserID, *enable); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	state := "disabled"
	if *enable {
		state = "enabled"
	}
	fmt.Fprintf(out, "%s user %s (%s)\n", state, u.Username, u.UserID)
	return nil
}

type newPassword struct {
	Password string `validate:"required,min=8"`
}

// userPasswd replaces an account's password with the value of -password-env.
func userPasswd(ctx context.Context, users userUpdater, args []string, getenv func(string) string, out io.Writer) error {
	fs := flag.NewFlagSet("user-passwd", flag.ContinueOnError)
	fs.SetOutput(out)
	username := fs.String("username", "", "login name")
	passwordEnv := fs.String("password-env", "BLOG_USER_PASSWORD", "environment variable holding the new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req := newPassword{Password: getenv(*passwordEnv)}
	if err := validate.Struct(&req); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBadRequest, err)
	}
	u, err := lookupUser(ctx, users, fs, *username)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := users.SetPasswordHash(ctx, u.UserID, string(hash)); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	fmt.Fprintf(out, "password changed for %s (%s)\n", u.Username, u.UserID)
	return nil
}
