package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/storage"
)

// Store is an in-process storage.Store. It also implements
// storage.RateLimitStore.
type Store struct {
	mu sync.RWMutex

	users   map[string]*storage.User
	byEmail map[string]string

	sessions map[string]*storage.Session
	byUser   map[string]map[string]struct{}

	counters map[string]storage.RateLimitCounter

	now func() time.Time
}

var (
	_ storage.Store          = (*Store)(nil)
	_ storage.RateLimitStore = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:    make(map[string]*storage.User),
		byEmail:  make(map[string]string),
		sessions: make(map[string]*storage.Session),
		byUser:   make(map[string]map[string]struct{}),
		counters: make(map[string]storage.RateLimitCounter),
		now:      time.Now,
	}
}

// SetClock overrides the clock used for UpdatedAt stamps and counter windows.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now == nil {
		now = time.Now
	}
	s.now = now
}

func (s *Store) Users() storage.UserStore       { return userStore{s} }
func (s *Store) Sessions() storage.SessionStore { return sessionStore{s} }

type userStore struct{ s *Store }

func (u userStore) FindByID(_ context.Context, id string) (*storage.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	user, ok := u.s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return user.Clone(), nil
}

func (u userStore) FindByEmail(_ context.Context, email string) (*storage.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	id, ok := u.s.byEmail[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return u.s.users[id].Clone(), nil
}

func (u userStore) FindByVerificationToken(_ context.Context, hash string) (*storage.User, error) {
	return u.findByToken(hash, func(x *storage.User) *storage.Token { return x.VerificationToken })
}

func (u userStore) FindByResetToken(_ context.Context, hash string) (*storage.User, error) {
	return u.findByToken(hash, func(x *storage.User) *storage.Token { return x.ResetToken })
}

func (u userStore) findByToken(hash string, slot func(*storage.User) *storage.Token) (*storage.User, error) {
	if hash == "" {
		return nil, storage.ErrNotFound
	}
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	for _, user := range u.s.users {
		if tok := slot(user); tok != nil && tok.Hash == hash {
			return user.Clone(), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (u userStore) Create(_ context.Context, user *storage.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	if _, exists := u.s.users[user.ID]; exists {
		return storage.ErrConflict
	}
	if _, exists := u.s.byEmail[user.Email]; exists {
		return storage.ErrConflict
	}
	u.s.users[user.ID] = user.Clone()
	u.s.byEmail[user.Email] = user.ID
	return nil
}

func (u userStore) Update(_ context.Context, id string, patch storage.UserUpdate) (*storage.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	current, ok := u.s.users[id]
	if !ok || !patch.GuardHolds(current) {
		return nil, storage.ErrNotFound
	}

	next := current.Clone()
	patch.Apply(next, u.s.now())

	if next.Email != current.Email {
		if _, taken := u.s.byEmail[next.Email]; taken {
			return nil, storage.ErrConflict
		}
		delete(u.s.byEmail, current.Email)
		u.s.byEmail[next.Email] = id
	}
	u.s.users[id] = next
	return next.Clone(), nil
}

func (u userStore) Delete(_ context.Context, id string) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	user, ok := u.s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(u.s.byEmail, user.Email)
	delete(u.s.users, id)
	return nil
}

type sessionStore struct{ s *Store }

func (ss sessionStore) FindByID(_ context.Context, id string) (*storage.Session, error) {
	ss.s.mu.RLock()
	defer ss.s.mu.RUnlock()

	sess, ok := ss.s.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return sess.Clone(), nil
}

func (ss sessionStore) FindByUserID(_ context.Context, userID string) ([]*storage.Session, error) {
	ss.s.mu.RLock()
	defer ss.s.mu.RUnlock()

	ids := ss.s.byUser[userID]
	out := make([]*storage.Session, 0, len(ids))
	for id := range ids {
		out = append(out, ss.s.sessions[id].Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (ss sessionStore) Create(_ context.Context, sess *storage.Session) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	if _, exists := ss.s.sessions[sess.ID]; exists {
		return storage.ErrConflict
	}
	ss.s.sessions[sess.ID] = sess.Clone()
	set, ok := ss.s.byUser[sess.UserID]
	if !ok {
		set = make(map[string]struct{})
		ss.s.byUser[sess.UserID] = set
	}
	set[sess.ID] = struct{}{}
	return nil
}

func (ss sessionStore) UpdateLastAccessed(_ context.Context, id string, at time.Time) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	sess, ok := ss.s.sessions[id]
	if !ok {
		return storage.ErrNotFound
	}
	sess.LastAccessedAt = at
	return nil
}

func (ss sessionStore) Delete(_ context.Context, id string) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	if !ss.s.deleteSessionLocked(id) {
		return storage.ErrNotFound
	}
	return nil
}

func (ss sessionStore) DeleteByUserID(_ context.Context, userID string) (int, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	n := 0
	for id := range ss.s.byUser[userID] {
		if ss.s.deleteSessionLocked(id) {
			n++
		}
	}
	return n, nil
}

func (ss sessionStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	n := 0
	for id, sess := range ss.s.sessions {
		if !sess.Active(now) && ss.s.deleteSessionLocked(id) {
			n++
		}
	}
	return n, nil
}

func (s *Store) deleteSessionLocked(id string) bool {
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	delete(s.sessions, id)
	if set := s.byUser[sess.UserID]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(s.byUser, sess.UserID)
		}
	}
	return true
}

// IncrementRateLimit implements storage.RateLimitStore.
func (s *Store) IncrementRateLimit(_ context.Context, key string, window time.Duration, _ int) (storage.RateLimitCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters[key]
	if !ok || !now.Before(c.ResetAt) {
		c = storage.RateLimitCounter{ResetAt: now.Add(window)}
	}
	c.Count++
	s.counters[key] = c
	return c, nil
}

// CleanupRateLimits implements storage.RateLimitStore.
func (s *Store) CleanupRateLimits(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for k, c := range s.counters {
		if !now.Before(c.ResetAt) {
			delete(s.counters, k)
			n++
		}
	}
	return n, nil
}
