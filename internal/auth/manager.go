// Package auth derives the authenticated state of the client and drives the
// session lifecycle: login, registration, verification and logout.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/todo-client/internal/logging"
	"github.com/nhle/todo-client/internal/model"
	"github.com/nhle/todo-client/internal/session"
	"github.com/nhle/todo-client/internal/validation"
)

// Backend auth endpoints.
const (
	PathLogin    = "/api/auth/login"
	PathRegister = "/api/auth/register"
	PathVerify   = "/api/auth/verify"
)

// Requester is the subset of apiclient.Client the manager needs.
type Requester interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
}

// Manager owns login, registration, verification and logout.
type Manager struct {
	api      Requester
	sessions session.Store
	logger   *log.Logger
	now      func() time.Time
}

// NewManager creates a Manager. A nil logger discards output.
func NewManager(api Requester, sessions session.Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		api:      api,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// tokenResponse accepts both field names the backend has used for the token.
type tokenResponse struct {
	AccessToken string             `json:"accessToken"`
	Token       string             `json:"token"`
	User        *model.UserProfile `json:"user"`
}

func (r tokenResponse) bearer() string {
	if t := strings.TrimSpace(r.AccessToken); t != "" {
		return t
	}
	return strings.TrimSpace(r.Token)
}

type verifyResponse struct {
	Subject string `json:"subject"`
	Name    string `json:"name"`
}

// Login validates the credentials locally, posts them and persists the
// returned token and profile.
func (m *Manager) Login(ctx context.Context, email, password string) (model.Session, error) {
	email = strings.TrimSpace(email)
	if errs := validation.Login(email, password); errs != nil {
		return model.Session{}, errs
	}

	var resp tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := m.api.Post(ctx, PathLogin, body, &resp); err != nil {
		return model.Session{}, fmt.Errorf("logging in: %w", err)
	}

	sess, err := m.establish(ctx, resp, email)
	if err != nil {
		return model.Session{}, err
	}
	m.logger.Info("signed in", "user", sess.User.DisplayName())
	return sess, nil
}

// Register validates the form locally and creates the account. It reports
// whether the backend also signed the user in by returning a token.
func (m *Manager) Register(ctx context.Context, name, email, password string) (bool, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if errs := validation.Registration(name, email, password); errs != nil {
		return false, errs
	}

	var resp tokenResponse
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := m.api.Post(ctx, PathRegister, body, &resp); err != nil {
		return false, fmt.Errorf("registering: %w", err)
	}

	if resp.bearer() == "" {
		m.logger.Info("registered, sign-in required", "email", email)
		return false, nil
	}
	if resp.User == nil {
		resp.User = &model.UserProfile{Name: name, Email: email}
	}
	if _, err := m.establish(ctx, resp, email); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) establish(ctx context.Context, resp tokenResponse, email string) (model.Session, error) {
	token := resp.bearer()
	if token == "" {
		return model.Session{}, &AuthenticationError{Message: "no token in response"}
	}

	user := resp.User
	if user == nil {
		user = &model.UserProfile{Email: email}
	} else if user.Email == "" {
		user.Email = email
	}

	sess := model.Session{Token: token, User: user}
	if err := m.sessions.Set(ctx, sess); err != nil {
		return model.Session{}, fmt.Errorf("persisting session: %w", err)
	}
	return sess, nil
}

// VerifySession checks the persisted session. An expired token is cleared
// without contacting the backend; otherwise the backend confirms the token
// and the cached profile is refreshed. Any failure clears the session and
// reports false together with a SessionExpiredError.
func (m *Manager) VerifySession(ctx context.Context) (bool, error) {
	sess, err := m.sessions.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("reading session: %w", err)
	}
	if !sess.HasToken() {
		return false, nil
	}

	if expired(sess.Token, m.now()) {
		return false, m.reject(ctx, &SessionExpiredError{Reason: "token expired"})
	}

	var resp verifyResponse
	if err := m.api.Get(ctx, PathVerify, &resp); err != nil {
		return false, m.reject(ctx, &SessionExpiredError{Reason: "verification failed", Err: err})
	}

	profile := m.profileFrom(resp, sess.User)
	if sess.User == nil || *sess.User != *profile {
		err := m.sessions.Set(ctx, model.Session{Token: sess.Token, User: profile})
		if err != nil {
			m.logger.Warn("caching verified profile", "err", err)
		}
	}
	return true, nil
}

// profileFrom builds the display profile from a verify response. A missing
// name falls back to the cached one, then to the local part of the subject.
func (m *Manager) profileFrom(resp verifyResponse, cached *model.UserProfile) *model.UserProfile {
	profile := &model.UserProfile{
		Name:  strings.TrimSpace(resp.Name),
		Email: strings.TrimSpace(resp.Subject),
	}
	if cached != nil {
		if profile.Email == "" {
			profile.Email = cached.Email
		}
		if profile.Name == "" {
			profile.Name = cached.Name
		}
	}
	if profile.Name == "" {
		profile.Name = model.EmailLocalPart(profile.Email)
	}
	return profile
}

func (m *Manager) reject(ctx context.Context, reason *SessionExpiredError) error {
	m.logger.Warn("session rejected", "reason", reason.Reason, "err", reason.Err)
	if err := m.sessions.Clear(ctx); err != nil {
		return errors.Join(reason, fmt.Errorf("clearing session: %w", err))
	}
	return reason
}

// Logout clears the token and profile. Subscribers, including other
// instances through the watcher, observe the change.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	m.logger.Info("signed out")
	return nil
}

// IsAuthenticated reports whether a token is present and not locally
// known to be expired.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	sess, err := m.sessions.Get(ctx)
	if err != nil || !sess.HasToken() {
		return false
	}
	return !expired(sess.Token, m.now())
}

// Profile returns the cached profile, or nil when not authenticated.
func (m *Manager) Profile(ctx context.Context) *model.UserProfile {
	if !m.IsAuthenticated(ctx) {
		return nil
	}
	sess, err := m.sessions.Get(ctx)
	if err != nil {
		return nil
	}
	return sess.TrustedUser()
}
