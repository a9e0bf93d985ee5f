package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	gosync "sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/nhle/todo-client/internal/credential"
	"github.com/nhle/todo-client/internal/logging"
	"github.com/nhle/todo-client/internal/model"
	"github.com/nhle/todo-client/internal/store"
)

// KVStore implements Store on top of the shared key-value state database.
type KVStore struct {
	kv         store.Store
	vault      TokenVault
	instanceID string
	logger     *log.Logger

	mu          gosync.Mutex
	last        model.Session
	subscribers map[int]chan model.Session
	nextSubID   int
}

// Option configures a KVStore.
type Option func(*KVStore)

// WithVault keeps the token in v instead of the shared table.
func WithVault(v TokenVault) Option {
	return func(s *KVStore) { s.vault = v }
}

// WithLogger sets the logger used for storage warnings.
func WithLogger(l *log.Logger) Option {
	return func(s *KVStore) { s.logger = l }
}

// WithInstanceID overrides the generated instance identifier.
func WithInstanceID(id string) Option {
	return func(s *KVStore) { s.instanceID = id }
}

// NewKVStore creates a session store over kv. Each store gets a unique
// instance id so other instances can tell its writes apart. The session
// already persisted in kv becomes the baseline that Reload compares against.
func NewKVStore(kv store.Store, opts ...Option) *KVStore {
	s := &KVStore{
		kv:          kv,
		instanceID:  uuid.NewString(),
		logger:      logging.Discard(),
		subscribers: make(map[int]chan model.Session),
	}
	for _, opt := range opts {
		opt(s)
	}

	if sess, err := s.Get(context.Background()); err == nil {
		s.last = sess
	} else {
		s.logger.Warn("could not read persisted session", "err", err)
	}
	return s
}

// InstanceID returns the identifier recorded with this store's writes.
func (s *KVStore) InstanceID() string {
	return s.instanceID
}

// Get returns the current session.
func (s *KVStore) Get(ctx context.Context) (model.Session, error) {
	values, err := s.kv.GetValues(ctx, KeyToken, KeyUser)
	if err != nil {
		return model.Session{}, fmt.Errorf("loading session: %w", err)
	}

	var sess model.Session
	sess.Token = values[KeyToken]
	if sess.Token == vaultMarker {
		sess.Token, err = s.vaultToken()
		if err != nil {
			return model.Session{}, err
		}
	}

	if raw := values[KeyUser]; raw != "" {
		var user model.UserProfile
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			s.logger.Warn("ignoring malformed user profile", "err", err)
		} else {
			sess.User = &user
		}
	}

	return sess, nil
}

// Token implements TokenSource.
func (s *KVStore) Token(ctx context.Context) (string, error) {
	sess, err := s.Get(ctx)
	if err != nil {
		return "", err
	}
	return sess.Token, nil
}

// Set persists the session and notifies subscribers.
func (s *KVStore) Set(ctx context.Context, sess model.Session) error {
	if !sess.HasToken() {
		return s.Clear(ctx)
	}

	tokenValue := sess.Token
	if s.vault != nil {
		if err := s.vault.Set(vaultKey, sess.Token); err != nil {
			return fmt.Errorf("storing token in vault: %w", err)
		}
		tokenValue = vaultMarker
	}

	userValue := ""
	if sess.User != nil {
		data, err := json.Marshal(sess.User)
		if err != nil {
			return fmt.Errorf("encoding user profile: %w", err)
		}
		userValue = string(data)
	}

	_, err := s.kv.SetValues(ctx, s.instanceID, map[string]string{
		KeyToken: tokenValue,
		KeyUser:  userValue,
	})
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	s.publish(sess)
	return nil
}

// Clear removes token and profile and notifies subscribers.
func (s *KVStore) Clear(ctx context.Context) error {
	if s.vault != nil {
		if err := s.vault.Delete(vaultKey); err != nil {
			s.logger.Warn("could not remove token from vault", "err", err)
		}
	}

	if _, err := s.kv.DeleteValues(ctx, s.instanceID, KeyToken, KeyUser); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}

	s.publish(model.Session{})
	return nil
}

// Reload re-reads the session from storage and notifies subscribers when it
// differs from the last known one. The watcher calls it after another
// instance writes.
func (s *KVStore) Reload(ctx context.Context) error {
	sess, err := s.Get(ctx)
	if err != nil {
		return err
	}
	s.publish(sess)
	return nil
}

// Subscribe returns a channel receiving every session change.
func (s *KVStore) Subscribe() (<-chan model.Session, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan model.Session, 1)
	s.subscribers[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// publish delivers sess to every subscriber unless nothing changed.
// A slow subscriber only ever sees the latest session.
func (s *KVStore) publish(sess model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sameSession(s.last, sess) {
		return
	}
	s.last = sess

	for _, ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- sess
	}
}

func (s *KVStore) vaultToken() (string, error) {
	if s.vault == nil {
		return "", errors.New("session token is kept in a keyring but no vault is configured")
	}
	token, err := s.vault.Get(vaultKey)
	if errors.Is(err, credential.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token from vault: %w", err)
	}
	return token, nil
}
