package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/auth-gateway/internal/models"
)

// MemoryStore keeps users in process memory with the same uniqueness
// rules as the database drivers. Intended for local development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]models.User
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]models.User), now: time.Now}
}

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if collides(existing, *u) {
			return ErrDuplicateKey
		}
	}

	now := s.now().UTC()
	u.ID = uuid.New().String()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Email == email })
}

func (s *MemoryStore) GetUserByUsernameOrEmail(_ context.Context, username, email string) (*models.User, error) {
	return s.find(func(u models.User) bool {
		return u.Email == email || (username != "" && u.Username == username)
	})
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) GetUserByGoogleID(_ context.Context, googleID string) (*models.User, error) {
	return s.find(func(u models.User) bool { return googleID != "" && u.GoogleID == googleID })
}

func (s *MemoryStore) LinkGoogleID(_ context.Context, id, googleID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if u.GoogleID != "" {
		return nil, ErrDuplicateKey
	}
	for otherID, other := range s.users {
		if otherID != id && other.GoogleID == googleID {
			return nil, ErrDuplicateKey
		}
	}
	u.GoogleID = googleID
	u.UpdatedAt = s.now().UTC()
	s.users[id] = u
	return &u, nil
}

// ListUsers returns users ordered by creation time without password hashes.
func (s *MemoryStore) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		u.PasswordHash = ""
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *MemoryStore) find(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func collides(a, b models.User) bool {
	if a.Email == b.Email {
		return true
	}
	if a.Username != "" && a.Username == b.Username {
		return true
	}
	return a.GoogleID != "" && a.GoogleID == b.GoogleID
}
