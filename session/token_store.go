package session

import (
	"sync"

	"github.com/MrEthical07/goSession/token"
)

// TokenStore holds the current bearer token.
//
// All methods are safe for concurrent use. Readers observe either the previous or
// the next token, never a partial update.
type TokenStore struct {
	mu    sync.RWMutex
	tok   token.Token
	held  bool
	epoch uint64
}

// NewTokenStore returns an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the current token and whether one is held.
func (s *TokenStore) Get() (token.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tok, s.held
}

// Snapshot returns the current token, whether one is held, and the epoch, read
// under one lock.
func (s *TokenStore) Snapshot() (token.Token, bool, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tok, s.held, s.epoch
}

// Epoch returns the current epoch.
func (s *TokenStore) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Set replaces the held token and starts a new epoch, which it returns.
// A zero token clears the store.
func (s *TokenStore) Set(tok token.Token) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.tok = tok
	s.held = !tok.IsZero()
	return s.epoch
}

// Clear drops the held token and starts a new epoch, which it returns.
func (s *TokenStore) Clear() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.tok = token.Token{}
	s.held = false
	return s.epoch
}

// CompareAndSet stores tok only if the epoch is still epoch. The epoch is kept.
func (s *TokenStore) CompareAndSet(epoch uint64, tok token.Token) bool {
	if tok.IsZero() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.tok = tok
	s.held = true
	return true
}

// CompareAndClear drops the held token only if the epoch is still epoch, and
// starts a new epoch when it does.
func (s *TokenStore) CompareAndClear(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.epoch++
	s.tok = token.Token{}
	s.held = false
	return true
}
