package identity

import (
	"context"
	"strings"
	"sync"
)

type memoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]User
	otps   map[string]OTP
}

// NewMemoryRepository builds an in-memory user store for local runs and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[int64]User), otps: make(map[string]OTP)}
}

func (r *memoryRepository) Create(_ context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if (user.Phone != "" && u.Phone == user.Phone) || (user.Email != "" && strings.EqualFold(u.Email, user.Email)) {
			return User{}, ErrUserExists
		}
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = user
	return user, nil
}

func (r *memoryRepository) FindByID(_ context.Context, id int64) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (User, error) {
	return r.find(func(u User) bool { return u.Phone == phone })
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	return r.find(func(u User) bool { return u.Email != "" && strings.EqualFold(u.Email, email) })
}

func (r *memoryRepository) find(match func(User) bool) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (r *memoryRepository) Update(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return ErrUserNotFound
	}
	r.users[user.ID] = user
	return nil
}

func (r *memoryRepository) SaveOTP(_ context.Context, otp OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.otps[otp.Identifier] = otp
	return nil
}

func (r *memoryRepository) FindOTP(_ context.Context, identifier string) (OTP, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	otp, ok := r.otps[identifier]
	if !ok {
		return OTP{}, ErrOTPNotFound
	}
	return otp, nil
}

func (r *memoryRepository) DeleteOTP(_ context.Context, identifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.otps, identifier)
	return nil
}
