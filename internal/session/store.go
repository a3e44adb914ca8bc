// Package session owns the persisted credential pair. Store is the only
// writer of the token keys; everything else reads through Restore or
// AccessToken.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/faith-connect/faith_connect/internal/logging"
	"github.com/faith-connect/faith_connect/internal/storage"
)

// Storage keys, shared with the web front-end so that state written by one
// client is readable by the other when they share a backend.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyRememberMe   = "auth_remember_me"
	KeyLoginDate    = "auth_login_date"
)

// DefaultMaxAge is the remember-me ceiling.
const DefaultMaxAge = 30 * 24 * time.Hour

// Tokens is the session credential pair.
type Tokens struct {
	Access  string
	Refresh string
}

// Store keeps Tokens in exactly one of two areas: the durable area when the
// user asked to be remembered, the session area otherwise.
type Store struct {
	durable storage.Area
	session storage.Area
	now     func() time.Time
	maxAge  time.Duration
	logger  *slog.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for the remember-me ceiling.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMaxAge overrides the remember-me ceiling.
func WithMaxAge(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New builds a Store over the durable and session areas.
func New(durable, session storage.Area, opts ...Option) *Store {
	s := &Store{
		durable: durable,
		session: session,
		now:     time.Now,
		maxAge:  DefaultMaxAge,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Persist writes the token pair. With rememberMe the pair goes to the durable
// area together with the remember-me flag and login date; otherwise it goes
// to the session area and any remember-me marker is dropped. The pair is
// removed from the area it was not written to. If any write fails both areas
// are cleared, so a failed Persist never leaves a partial or split pair behind.
func (s *Store) Persist(ctx context.Context, t Tokens, rememberMe bool) error {
	if err := s.persist(ctx, t, rememberMe); err != nil {
		if cerr := s.Clear(ctx); cerr != nil {
			s.logger.Error("clear after failed persist", slog.Any("error", cerr))
		}
		return err
	}
	s.logger.Debug("session persisted", slog.Bool("remember_me", rememberMe))
	return nil
}

func (s *Store) persist(ctx context.Context, t Tokens, rememberMe bool) error {
	target, other := s.session, s.durable
	if rememberMe {
		target, other = s.durable, s.session
	}

	if err := target.Set(ctx, KeyAccessToken, t.Access); err != nil {
		return fmt.Errorf("persist access token: %w", err)
	}
	if err := target.Set(ctx, KeyRefreshToken, t.Refresh); err != nil {
		return fmt.Errorf("persist refresh token: %w", err)
	}
	if err := removeAll(ctx, other, KeyAccessToken, KeyRefreshToken); err != nil {
		return fmt.Errorf("drop stale tokens: %w", err)
	}

	if rememberMe {
		if err := s.durable.Set(ctx, KeyRememberMe, "true"); err != nil {
			return fmt.Errorf("persist remember-me flag: %w", err)
		}
		if err := s.durable.Set(ctx, KeyLoginDate, s.now().UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("persist login date: %w", err)
		}
	} else if err := removeAll(ctx, s.durable, KeyRememberMe, KeyLoginDate); err != nil {
		return fmt.Errorf("drop remember-me flag: %w", err)
	}
	return nil
}

// Restore returns the stored token pair. ok is false when no access token is
// stored, or when a remembered login is older than the ceiling (or its date
// is unreadable), in which case everything is cleared first.
func (s *Store) Restore(ctx context.Context) (Tokens, bool, error) {
	remembered, _, err := s.durable.Get(ctx, KeyRememberMe)
	if err != nil {
		return Tokens{}, false, err
	}
	if remembered == "true" {
		expired, err := s.rememberExpired(ctx)
		if err != nil {
			return Tokens{}, false, err
		}
		if expired {
			s.logger.Info("remembered session expired, clearing")
			if err := s.Clear(ctx); err != nil {
				return Tokens{}, false, err
			}
			return Tokens{}, false, nil
		}
	}

	for _, area := range []storage.Area{s.durable, s.session} {
		access, _, err := area.Get(ctx, KeyAccessToken)
		if err != nil {
			return Tokens{}, false, err
		}
		if access == "" {
			continue
		}
		refresh, _, err := area.Get(ctx, KeyRefreshToken)
		if err != nil {
			return Tokens{}, false, err
		}
		return Tokens{Access: access, Refresh: refresh}, true, nil
	}
	return Tokens{}, false, nil
}

// AccessToken returns the stored access token, durable area first, or "" when
// none is stored. It never clears anything.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	for _, area := range []storage.Area{s.durable, s.session} {
		v, _, err := area.Get(ctx, KeyAccessToken)
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
	}
	return "", nil
}

// Clear removes the token pair from both areas and the remember-me marker
// from the durable area. Calling it on empty storage is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	err := errors.Join(
		removeAll(ctx, s.durable, KeyAccessToken, KeyRefreshToken, KeyRememberMe, KeyLoginDate),
		removeAll(ctx, s.session, KeyAccessToken, KeyRefreshToken),
	)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Store) rememberExpired(ctx context.Context) (bool, error) {
	raw, ok, err := s.durable.Get(ctx, KeyLoginDate)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	loggedIn, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		s.logger.Warn("unreadable login date", slog.String("value", raw))
		return true, nil
	}
	return s.now().Sub(loggedIn) > s.maxAge, nil
}

func removeAll(ctx context.Context, area storage.Area, keys ...string) error {
	var errs []error
	for _, k := range keys {
		if err := area.Remove(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
