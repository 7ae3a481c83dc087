package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUserNotFound indicates no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateUsername indicates the username is already taken.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrInvalidUser indicates the user record violates validation rules.
	ErrInvalidUser = errors.New("username and password hash are required")
)

const maxUsernameLength = 150

// User is an account able to sign in to the admin interface or the API.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsStaff      bool
	IsSuperuser  bool
	IsActive     bool
	DateJoined   time.Time
	LastLogin    *time.Time
}

// UserStore provides access to user accounts.
type UserStore interface {
	GetUserByID(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	CreateUser(ctx context.Context, user User) (User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	ListUsers(ctx context.Context) ([]User, error)
}

// MemoryStorage keeps users in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]User
}

// NewMemoryStorage initialises an empty user store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		nextID: 1,
		users:  make(map[int64]User),
	}
}

// GetUserByID returns a copy of the user with the given id.
func (s *MemoryStorage) GetUserByID(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return cloneUser(user), nil
}

// GetUserByUsername returns a copy of the user with the given username.
func (s *MemoryStorage) GetUserByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			return cloneUser(user), nil
		}
	}
	return User{}, ErrUserNotFound
}

// CreateUser validates and stores the user, assigning its id.
func (s *MemoryStorage) CreateUser(_ context.Context, user User) (User, error) {
	normalized, err := normalizeUser(user)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == normalized.Username {
			return User{}, ErrDuplicateUsername
		}
	}

	normalized.ID = s.nextID
	s.nextID++
	s.users[normalized.ID] = normalized
	return cloneUser(normalized), nil
}

// TouchLastLogin records a successful sign-in.
func (s *MemoryStorage) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	at = at.UTC()
	user.LastLogin = &at
	s.users[id] = user
	return nil
}

// ListUsers returns every user ordered by id.
func (s *MemoryStorage) ListUsers(_ context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, cloneUser(user))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func normalizeUser(user User) (User, error) {
	user.Username = strings.TrimSpace(user.Username)
	user.Email = strings.TrimSpace(user.Email)
	if user.Username == "" || len(user.Username) > maxUsernameLength || user.PasswordHash == "" {
		return User{}, ErrInvalidUser
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now()
	}
	user.DateJoined = user.DateJoined.UTC()
	return user, nil
}

func cloneUser(u User) User {
	if u.LastLogin != nil {
		at := *u.LastLogin
		u.LastLogin = &at
	}
	return u
}
