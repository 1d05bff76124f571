package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/storage"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/types"
	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// Store keeps all records in process memory and checkpoints them to a
// JSON snapshot file. Registration order is the slice order; the maps
// are secondary indexes into it.
type Store struct {
	mu         sync.RWMutex
	users      []*types.User
	byUsername map[string]*types.User
	byEmail    map[string]*types.User
	byCode     map[string]*types.User
	pending    []types.PendingVerification

	path   string
	logger *zap.Logger
}

var _ storage.Storage = (*Store)(nil)

type snapshot struct {
	Users                []*types.User               `json:"users"`
	PendingVerifications []types.PendingVerification `json:"pendingVerifications"`
}

// NewStore loads the snapshot at path if one exists. A missing file is a
// fresh deployment, not an error; a corrupt file is.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		byUsername: map[string]*types.User{},
		byEmail:    map[string]*types.User{},
		byCode:     map[string]*types.User{},
		path:       path,
		logger:     logger,
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "os.ReadFile failed: ")
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, errors.Wrap(err, "json.Unmarshal failed: ")
	}
	for _, u := range snap.Users {
		s.index(u)
	}
	s.pending = snap.PendingVerifications
	logger.Info("snapshot loaded", zap.String("path", path), zap.Int("users", len(s.users)))
	return s, nil
}

// index must be called with the write lock held (or before the store is shared).
func (s *Store) index(u *types.User) {
	s.users = append(s.users, u)
	s.byUsername[u.Username] = u
	if u.Email != "" {
		s.byEmail[u.Email] = u
	}
	s.byCode[u.ReferralCode] = u
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byUsername[username]
	if !ok {
		return nil, storage.ErrUserNotExist
	}
	return u.Clone(), nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byEmail[email]
	if !ok {
		return nil, storage.ErrUserNotExist
	}
	return u.Clone(), nil
}

func (s *Store) FindUserByReferralCode(_ context.Context, code string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byCode[code]
	if !ok {
		return nil, storage.ErrUserNotExist
	}
	return u.Clone(), nil
}

func (s *Store) InsertUser(_ context.Context, user *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUsername[user.Username]; ok {
		return storage.ErrUserAlreadyExist
	}
	if user.Email != "" {
		if _, ok := s.byEmail[user.Email]; ok {
			return storage.ErrUserAlreadyExist
		}
	}
	s.index(user.Clone())
	return nil
}

func (s *Store) UpdateUser(_ context.Context, user *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byUsername[user.Username]
	if !ok {
		return storage.ErrUserNotExist
	}
	*current = *user.Clone()
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	return out, nil
}

func (s *Store) AppendPendingVerification(_ context.Context, v types.PendingVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, v)
	return nil
}

func (s *Store) RemovePendingVerification(_ context.Context, username, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range s.pending {
		if v.Username == username && v.TaskID == taskID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return nil
		}
	}
	return storage.ErrVerificationNotExist
}

func (s *Store) ListPendingVerifications(_ context.Context) ([]types.PendingVerification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.PendingVerification(nil), s.pending...), nil
}

// Persist writes the snapshot atomically via a temp file and rename, so a
// crash mid-write never leaves a truncated snapshot behind.
func (s *Store) Persist(_ context.Context) error {
	s.mu.RLock()
	raw, err := json.MarshalIndent(snapshot{Users: s.users, PendingVerifications: s.pending}, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, "json.MarshalIndent failed: ")
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrapf(storage.ErrUnavailable, "os.MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return errors.Wrapf(storage.ErrUnavailable, "os.WriteFile failed: %v", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrapf(storage.ErrUnavailable, "os.Rename failed: %v", err)
	}
	s.logger.Debug("snapshot written", zap.String("path", s.path))
	return nil
}
