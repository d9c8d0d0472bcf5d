package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockboard/internal/domain/models"
)

// Persistence keys.
const (
	UserKey  = "dashboard_user"
	TokenKey = "dashboard_token"
)

// User-facing messages.
const (
	MsgInvalidCredentials = "Invalid username or password"
	MsgLoginFailed        = "An error occurred during login. Please try again."
)

// Status is the authentication phase of the store.
type Status string

const (
	StatusChecking      Status = "checking"
	StatusAnonymous     Status = "anonymous"
	StatusAuthenticated Status = "authenticated"
)

// Storage is the key-value persistence behind the session record.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// State is a snapshot of the store.
type State struct {
	Status        Status       `json:"status"`
	Authenticated bool         `json:"authenticated"`
	User          *models.User `json:"user"`
	Error         string       `json:"error,omitempty"`
}

// Options tunes the store.
type Options struct {
	// LoginLatency is waited before each credential check.
	LoginLatency time.Duration
}

// Store holds authentication state derived from the persisted session record.
type Store struct {
	storage  Storage
	verifier Verifier
	tokens   TokenIssuer
	latency  time.Duration
	logger   *zap.Logger

	// loginMu serializes Login calls so overlapping attempts resolve in call order.
	loginMu sync.Mutex

	mu    sync.RWMutex
	state State
	// revoked maps signed-out token ids to their expiry.
	revoked map[string]time.Time
}

// ErrUnauthorized is returned for a missing, invalid, expired or signed-out token.
var ErrUnauthorized = errors.New("session token rejected")

// NewStore creates a store in the checking state. Call Restore to leave it.
func NewStore(storage Storage, verifier Verifier, tokens TokenIssuer, opts Options, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		storage:  storage,
		verifier: verifier,
		tokens:   tokens,
		latency:  opts.LoginLatency,
		logger:   logger,
		state:    State{Status: StatusChecking},
		revoked:  make(map[string]time.Time),
	}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	if out.User != nil {
		u := *out.User
		out.User = &u
	}
	return out
}

// Authenticated reports whether a user is signed in.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Status == StatusAuthenticated
}

// Restore reads the persisted session. A record that fails to parse, or a
// token that fails validation, is purged and the store becomes anonymous.
// The returned error only reports storage failures; the store is left
// anonymous in that case as well.
func (s *Store) Restore(ctx context.Context) error {
	rawUser, hasUser, err := s.storage.Get(ctx, UserKey)
	if err != nil {
		s.setAnonymous("")
		return fmt.Errorf("read session record: %w", err)
	}
	token, hasToken, err := s.storage.Get(ctx, TokenKey)
	if err != nil {
		s.setAnonymous("")
		return fmt.Errorf("read session token: %w", err)
	}

	if !hasUser || !hasToken {
		s.setAnonymous("")
		return nil
	}

	user, parseErr := parseUser(rawUser)
	if parseErr == nil && s.tokens != nil {
		_, parseErr = s.tokens.Validate(token)
	}
	if parseErr != nil {
		s.logger.Warn("purging corrupt session record", zap.Error(parseErr))
		if err := s.storage.Delete(ctx, UserKey, TokenKey); err != nil {
			s.setAnonymous("")
			return fmt.Errorf("purge session record: %w", err)
		}
		s.setAnonymous("")
		return nil
	}

	s.mu.Lock()
	s.state = State{Status: StatusAuthenticated, Authenticated: true, User: &user}
	s.mu.Unlock()

	s.logger.Info("session restored", zap.String("user", user.Username))
	return nil
}

// Login waits the configured latency, checks the credentials and on success
// persists the session and returns its token. A mismatch returns
// ErrInvalidCredentials and leaves the message in State().Error until
// ClearError or the next attempt.
func (s *Store) Login(ctx context.Context, creds models.Credentials) (string, error) {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	s.mu.Lock()
	s.state.Error = ""
	s.mu.Unlock()

	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			s.setError(MsgLoginFailed)
			return "", ctx.Err()
		}
	}

	user, err := s.verifier.Verify(ctx, creds)
	if errors.Is(err, ErrInvalidCredentials) {
		s.logger.Info("login rejected", zap.String("username", creds.Username))
		s.setError(MsgInvalidCredentials)
		return "", ErrInvalidCredentials
	}
	if err != nil {
		s.setError(MsgLoginFailed)
		return "", fmt.Errorf("verify credentials: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		s.setError(MsgLoginFailed)
		return "", err
	}

	raw, err := json.Marshal(user)
	if err != nil {
		s.setError(MsgLoginFailed)
		return "", fmt.Errorf("encode session record: %w", err)
	}
	if err := s.storage.Set(ctx, UserKey, string(raw)); err != nil {
		s.setError(MsgLoginFailed)
		return "", fmt.Errorf("persist session record: %w", err)
	}
	if err := s.storage.Set(ctx, TokenKey, token); err != nil {
		s.setError(MsgLoginFailed)
		return "", fmt.Errorf("persist session token: %w", err)
	}

	s.mu.Lock()
	s.state = State{Status: StatusAuthenticated, Authenticated: true, User: &user}
	s.mu.Unlock()

	s.logger.Info("login succeeded", zap.String("user", user.Username))
	return token, nil
}

// Logout purges the persisted session and returns to anonymous. The in-memory
// state is reset even when the purge fails.
func (s *Store) Logout(ctx context.Context) error {
	err := s.storage.Delete(ctx, UserKey, TokenKey)
	s.setAnonymous("")
	if err != nil {
		return fmt.Errorf("purge session record: %w", err)
	}
	s.logger.Info("logged out")
	return nil
}

// Authorize checks a token presented by a client and returns its user.
func (s *Store) Authorize(token string) (models.User, error) {
	if token == "" || s.tokens == nil {
		return models.User{}, ErrUnauthorized
	}
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	s.mu.RLock()
	_, revoked := s.revoked[claims.ID]
	s.mu.RUnlock()
	if revoked {
		return models.User{}, fmt.Errorf("%w: token signed out", ErrUnauthorized)
	}
	return claims.User, nil
}

// Revoke signs out the holder of token. When token is the persisted session
// token the record is purged as in Logout; other sessions are left alone.
func (s *Store) Revoke(ctx context.Context, token string) error {
	if token == "" || s.tokens == nil {
		return ErrUnauthorized
	}
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	now := time.Now()
	s.mu.Lock()
	for id, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[claims.ID] = claims.ExpiresAt
	s.mu.Unlock()

	current, ok, err := s.storage.Get(ctx, TokenKey)
	if err != nil {
		return fmt.Errorf("read session token: %w", err)
	}
	if ok && current == token {
		return s.Logout(ctx)
	}
	s.logger.Info("token revoked", zap.String("user", claims.User.Username))
	return nil
}

// ClearError resets the error message without touching authentication.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.state.Error = ""
	s.mu.Unlock()
}

func (s *Store) setAnonymous(msg string) {
	s.mu.Lock()
	s.state = State{Status: StatusAnonymous, Error: msg}
	s.mu.Unlock()
}

func (s *Store) setError(msg string) {
	s.mu.Lock()
	s.state.Error = msg
	s.mu.Unlock()
}

func parseUser(raw string) (models.User, error) {
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return models.User{}, fmt.Errorf("decode session record: %w", err)
	}
	if user.Username == "" {
		return models.User{}, errors.New("session record has no username")
	}
	return user, nil
}
