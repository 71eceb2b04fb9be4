package repository

import (
	"sort"
	"strings"
	"sync"
	"time"

	"confluence-backend/internal/domain"
)

// TokenRepository manages device tokens for push notifications
type TokenRepository struct {
	tokens map[string]domain.DeviceToken
	mu     sync.RWMutex
}

var _ domain.DeviceRepository = (*TokenRepository)(nil)

func NewTokenRepository() *TokenRepository {
	return &TokenRepository{
		tokens: make(map[string]domain.DeviceToken),
	}
}

// Register adds or refreshes a device token. Platform defaults to android.
func (r *TokenRepository) Register(token, platform string, at time.Time) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		platform = "android"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[token] = domain.DeviceToken{
		Token:     token,
		Platform:  platform,
		CreatedAt: at,
	}
}

// Unregister removes a device token and reports whether it was known.
func (r *TokenRepository) Unregister(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.tokens[token]
	delete(r.tokens, token)
	return ok
}

// Tokens returns all registered tokens, sorted.
func (r *TokenRepository) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := make([]string, 0, len(r.tokens))
	for token := range r.tokens {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

func (r *TokenRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tokens)
}
