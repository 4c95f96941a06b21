package session

import (
	"context"
	"sync"
)

// Tokens is the credential pair issued by the auth endpoints.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// TokenStore persists tokens across process restarts. Load returns nil, nil
// when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context) (*Tokens, error)
	Save(ctx context.Context, tokens Tokens) error
	Clear(ctx context.Context) error
}

// MemoryTokenStore keeps tokens in memory only.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens *Tokens
}

func (m *MemoryTokenStore) Load(_ context.Context) (*Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		return nil, nil
	}
	t := *m.tokens
	return &t, nil
}

func (m *MemoryTokenStore) Save(_ context.Context, tokens Tokens) error {
	m.mu.Lock()
	m.tokens = &tokens
	m.mu.Unlock()
	return nil
}

func (m *MemoryTokenStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.tokens = nil
	m.mu.Unlock()
	return nil
}
