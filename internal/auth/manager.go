// Package auth holds the client-side authentication state machine:
// unauthenticated, waiting for an OTP, and authenticated. Manager is the only
// owner of the in-memory Identity; tokens are delegated to session.Store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/faith-connect/faith_connect/internal/apiclient"
	"github.com/faith-connect/faith_connect/internal/logging"
	"github.com/faith-connect/faith_connect/internal/session"
)

const (
	fallbackLogin   = "Failed to login"
	fallbackSignup  = "Failed to sign up"
	fallbackVerify  = "Invalid or expired OTP"
	fallbackProfile = "Failed to load profile"
	fallbackUpdate  = "Failed to update profile"

	serverLogoutTimeout = 5 * time.Second
	profileFetchTimeout = 30 * time.Second
)

var (
	// ErrEmptyIdentifier is returned by Login for an empty identifier.
	ErrEmptyIdentifier = errors.New("identifier is required")
	// ErrNotAuthenticated is returned by operations that need a signed-in user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrMissingTokens is returned when a verification response has no access token.
	ErrMissingTokens = errors.New("verification response carried no tokens")
)

// State is the authentication lifecycle state.
type State int

const (
	StateUnauthenticated State = iota
	StateOTPPending
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateOTPPending:
		return "otp_pending"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Navigator performs the navigation side effect of Logout.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, path string)

// Navigate calls f.
func (f NavigatorFunc) Navigate(ctx context.Context, path string) { f(ctx, path) }

// RootPath is where Logout navigates to.
const RootPath = "/"

// Snapshot is a copy of the observable Manager state.
type Snapshot struct {
	State   State
	User    *Identity
	Pending *Ticket
	Loading bool
}

// Manager drives the login, OTP verification, restoration, refresh and logout
// transitions. It is safe for concurrent use.
type Manager struct {
	api      *apiclient.Client
	sessions *session.Store
	nav      Navigator
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	user      *Identity
	pending   *Ticket
	inflight  int
	restored  bool
	listeners map[int]func(Snapshot)
	nextID    int

	ready     chan struct{}
	readyOnce sync.Once
	profiles  singleflight.Group
}

// Option customises a Manager.
type Option func(*Manager)

// WithNavigator sets the logout navigation target.
func WithNavigator(n Navigator) Option {
	return func(m *Manager) { m.nav = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager builds a Manager in the unauthenticated state. Loading reports
// true until the first RestoreSession completes.
func NewManager(api *apiclient.Client, sessions *session.Store, opts ...Option) *Manager {
	m := &Manager{
		api:       api,
		sessions:  sessions,
		nav:       NavigatorFunc(func(context.Context, string) {}),
		logger:    logging.Discard(),
		listeners: make(map[int]func(Snapshot)),
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// User returns a copy of the current Identity, or nil.
func (m *Manager) User() *Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyIdentity(m.user)
}

// Pending returns the ticket awaiting OTP verification, or nil.
func (m *Manager) Pending() *Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return nil
	}
	t := *m.pending
	return &t
}

// Loading reports whether a transition is in flight.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadingLocked()
}

// Ready is closed once the first RestoreSession has finished.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Snapshot returns the observable state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Watch registers fn to be called with a Snapshot after every change. The
// returned function unregisters it.
func (m *Manager) Watch(fn func(Snapshot)) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Login asks the API to send an OTP to identifier, which must already be
// normalised. It returns the identifier the server issued the code for.
// Identity and stored tokens are not touched.
func (m *Manager) Login(ctx context.Context, identifier string, method apiclient.Method) (string, error) {
	if identifier == "" {
		return "", ErrEmptyIdentifier
	}
	defer m.begin()()

	resp, err := m.api.Auth.Login(ctx, identifier, method)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	ticket, err := decodeTicket(resp, fallbackLogin, identifier, method)
	if err != nil {
		return "", err
	}
	m.enterPending(ticket)
	m.logger.Info("otp dispatched", slog.String("method", string(ticket.Method)))
	return ticket.Identifier, nil
}

// Signup creates the account server-side and dispatches an OTP. Like Login it
// does not establish a session.
func (m *Manager) Signup(ctx context.Context, req apiclient.SignupRequest) (string, error) {
	defer m.begin()()

	resp, err := m.api.Auth.Signup(ctx, req)
	if err != nil {
		return "", fmt.Errorf("signup: %w", err)
	}
	fallbackID := req.Phone
	if req.Method == apiclient.MethodEmail {
		fallbackID = req.Email
	}
	ticket, err := decodeTicket(resp, fallbackSignup, fallbackID, req.Method)
	if err != nil {
		return "", err
	}
	m.enterPending(ticket)
	m.logger.Info("account created, otp dispatched", slog.String("method", string(ticket.Method)))
	return ticket.Identifier, nil
}

// VerifyOTP exchanges the code for a session. On success the tokens are
// persisted (durably when rememberMe is set) and the new Identity is returned.
// On failure nothing is written and the state is unchanged.
func (m *Manager) VerifyOTP(ctx context.Context, identifier, otp string, rememberMe bool) (Identity, error) {
	defer m.begin()()

	resp, err := m.api.Auth.VerifyOTP(ctx, identifier, otp)
	if err != nil {
		return Identity{}, fmt.Errorf("verify otp: %w", err)
	}
	if !apiclient.OK(resp) {
		return Identity{}, apiclient.DecodeError(resp, fallbackVerify)
	}
	var body struct {
		Access  string   `json:"access"`
		Refresh string   `json:"refresh"`
		User    Identity `json:"user"`
	}
	if err := apiclient.DecodeJSON(resp, &body); err != nil {
		return Identity{}, err
	}
	if body.Access == "" {
		return Identity{}, ErrMissingTokens
	}

	if err := m.sessions.Persist(ctx, session.Tokens{Access: body.Access, Refresh: body.Refresh}, rememberMe); err != nil {
		m.logger.Error("persist session", slog.Any("error", err))
		return Identity{}, err
	}

	user := body.User
	m.mu.Lock()
	m.user = &user
	m.state = StateAuthenticated
	m.pending = nil
	m.mu.Unlock()
	m.notify()

	m.logger.Info("session established", slog.Int64("user_id", user.ID), slog.Bool("remember_me", rememberMe))
	return user, nil
}

// ResendOTP asks for a new code and returns the raw response. It causes no
// state transition.
func (m *Manager) ResendOTP(ctx context.Context, identifier string, method apiclient.Method) (*http.Response, error) {
	defer m.begin()()
	return m.api.Auth.ResendOTP(ctx, identifier, method)
}

// RestoreSession re-establishes a stored session at startup. A stored token
// the profile endpoint rejects, or any failure reaching it, results in a full
// logout. Loading stays raised until the outcome is applied.
func (m *Manager) RestoreSession(ctx context.Context) error {
	defer m.readyOnce.Do(func() { close(m.ready) })
	defer m.begin()()
	defer m.markRestored()

	_, ok, err := m.sessions.Restore(ctx)
	if err != nil {
		m.logger.Warn("read stored session", slog.Any("error", err))
		return m.logout(ctx, false)
	}
	if !ok {
		m.setUnauthenticated()
		return nil
	}

	user, err := m.fetchProfile(ctx)
	if err != nil {
		m.logger.Info("stored session rejected, logging out", slog.Any("error", err))
		return m.logout(ctx, false)
	}

	m.mu.Lock()
	m.user = &user
	m.state = StateAuthenticated
	m.pending = nil
	m.mu.Unlock()
	m.notify()

	m.logger.Info("session restored", slog.Int64("user_id", user.ID))
	return nil
}

// UpdateUser merges p into the in-memory Identity. It never touches storage
// and is meant for changes the server has already accepted.
func (m *Manager) UpdateUser(p UserPatch) error {
	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	next, err := p.apply(*m.user)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.user = &next
	m.mu.Unlock()
	m.notify()
	return nil
}

// RefreshUser refetches the profile with the stored token and replaces the
// Identity wholesale. On failure the previous Identity is kept and the error
// is returned for the caller to ignore or report. Concurrent calls share one
// request; that request is detached from any single caller's cancellation and
// bounded by profileFetchTimeout, while each caller stops waiting when its
// own ctx is done.
func (m *Manager) RefreshUser(ctx context.Context) (Identity, error) {
	defer m.begin()()

	shared := context.WithoutCancel(ctx)
	ch := m.profiles.DoChan("profile", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(shared, profileFetchTimeout)
		defer cancel()
		return m.fetchProfile(fetchCtx)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return Identity{}, ctx.Err()
	}
	if res.Err != nil {
		m.logger.Warn("refresh profile", slog.Any("error", res.Err))
		return Identity{}, res.Err
	}
	user := res.Val.(Identity)

	m.mu.Lock()
	if m.state == StateAuthenticated {
		m.user = &user
	}
	m.mu.Unlock()
	m.notify()
	return user, nil
}

// SetAccountType records the onboarding account choice server-side and then
// merges it locally. The type can only be chosen once.
func (m *Manager) SetAccountType(ctx context.Context, t UserType) (Identity, error) {
	current := m.User()
	if current == nil {
		return Identity{}, ErrNotAuthenticated
	}
	patch := UserPatch{UserType: &t}
	if _, err := patch.apply(*current); err != nil {
		return Identity{}, err
	}

	defer m.begin()()
	raw := string(t)
	resp, err := m.api.Auth.UpdateProfile(ctx, apiclient.ProfileUpdate{UserType: &raw})
	if err != nil {
		return Identity{}, fmt.Errorf("update profile: %w", err)
	}
	if !apiclient.OK(resp) {
		return Identity{}, apiclient.DecodeError(resp, fallbackUpdate)
	}
	resp.Body.Close()

	if err := m.UpdateUser(patch); err != nil {
		return Identity{}, err
	}
	if u := m.User(); u != nil {
		return *u, nil
	}
	return Identity{}, ErrNotAuthenticated
}

// Logout clears stored tokens and the in-memory Identity, then navigates to
// the root. When a token is stored the server is told first, best effort.
// It is idempotent and valid from any state.
func (m *Manager) Logout(ctx context.Context) error {
	defer m.begin()()
	return m.logout(ctx, true)
}

func (m *Manager) logout(ctx context.Context, notifyServer bool) error {
	if notifyServer {
		m.serverLogout(ctx)
	}
	err := m.sessions.Clear(ctx)
	if err != nil {
		m.logger.Error("clear stored session", slog.Any("error", err))
	}
	m.setUnauthenticated()
	m.nav.Navigate(ctx, RootPath)
	return err
}

func (m *Manager) serverLogout(ctx context.Context) {
	token, err := m.sessions.AccessToken(ctx)
	if err != nil || token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, serverLogoutTimeout)
	defer cancel()
	resp, err := m.api.Auth.Logout(ctx)
	if err != nil {
		m.logger.Warn("server logout", slog.Any("error", err))
		return
	}
	resp.Body.Close()
	if !apiclient.OK(resp) {
		m.logger.Debug("server logout rejected", slog.Int("status", resp.StatusCode))
	}
}

func (m *Manager) fetchProfile(ctx context.Context) (Identity, error) {
	resp, err := m.api.Auth.Profile(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("fetch profile: %w", err)
	}
	if !apiclient.OK(resp) {
		return Identity{}, apiclient.DecodeError(resp, fallbackProfile)
	}
	var body struct {
		User *Identity `json:"user"`
	}
	if err := apiclient.DecodeJSON(resp, &body); err != nil {
		return Identity{}, err
	}
	if body.User == nil {
		return Identity{}, errors.New("fetch profile: response carried no user")
	}
	return *body.User, nil
}

func (m *Manager) enterPending(t Ticket) {
	m.mu.Lock()
	m.pending = &t
	if m.state != StateAuthenticated {
		m.state = StateOTPPending
	}
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) setUnauthenticated() {
	m.mu.Lock()
	m.user = nil
	m.pending = nil
	m.state = StateUnauthenticated
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) markRestored() {
	m.mu.Lock()
	m.restored = true
	m.mu.Unlock()
}

// begin raises the loading counter and returns the function that lowers it.
func (m *Manager) begin() func() {
	m.mu.Lock()
	m.inflight++
	m.mu.Unlock()
	m.notify()
	return func() {
		m.mu.Lock()
		m.inflight--
		m.mu.Unlock()
		m.notify()
	}
}

func (m *Manager) loadingLocked() bool {
	return m.inflight > 0 || !m.restored
}

func (m *Manager) snapshotLocked() Snapshot {
	s := Snapshot{
		State:   m.state,
		User:    copyIdentity(m.user),
		Loading: m.loadingLocked(),
	}
	if m.pending != nil {
		t := *m.pending
		s.Pending = &t
	}
	return s
}

func (m *Manager) notify() {
	m.mu.Lock()
	snap := m.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func decodeTicket(resp *http.Response, fallback, identifier string, method apiclient.Method) (Ticket, error) {
	if !apiclient.OK(resp) {
		return Ticket{}, apiclient.DecodeError(resp, fallback)
	}
	var body struct {
		Identifier string           `json:"identifier"`
		Method     apiclient.Method `json:"method"`
	}
	if err := apiclient.DecodeJSON(resp, &body); err != nil {
		return Ticket{}, err
	}
	t := Ticket{Identifier: body.Identifier, Method: body.Method}
	if t.Identifier == "" {
		t.Identifier = identifier
	}
	if t.Method == "" {
		t.Method = method
	}
	if t.Method == "" {
		t.Method = apiclient.MethodPhone
	}
	return t, nil
}

func copyIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
