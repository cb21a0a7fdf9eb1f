// Package state serializes update handling per chat so dialogue turns never
// interleave: a second message from the same chat waits for the first turn
// to finish, while other chats proceed in parallel.
package state

import "sync"

// Serializer hands out one lock per chat, created on demand. Entries are
// kept for the lifetime of the process; the per-chat footprint is a mutex
// and a counter.
type Serializer struct {
	mu    sync.Mutex
	chats map[int64]*chatLock
}

type chatLock struct {
	mu      sync.Mutex
	waiters int
}

// NewSerializer returns an empty serializer.
func NewSerializer() *Serializer {
	return &Serializer{chats: make(map[int64]*chatLock)}
}

// Do runs fn holding the chat's lock.
func (s *Serializer) Do(chatID int64, fn func() error) error {
	l := s.acquire(chatID)
	l.mu.Lock()
	defer func() {
		l.mu.Unlock()
		s.release(chatID)
	}()
	return fn()
}

// Busy reports whether a turn is currently running or queued for the chat.
func (s *Serializer) Busy(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.chats[chatID]
	return ok && l.waiters > 0
}

func (s *Serializer) acquire(chatID int64) *chatLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.chats[chatID]
	if !ok {
		l = &chatLock{}
		s.chats[chatID] = l
	}
	l.waiters++
	return l
}

func (s *Serializer) release(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.chats[chatID]; ok {
		l.waiters--
	}
}
