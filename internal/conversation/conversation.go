// Package conversation provides the in-memory store for per-thread
// conversation history.
//
// Responsibilities: keep an append-only, sequence-numbered message log per
// thread and hand out consistent snapshots to readers.
// Thread Safety: all Store methods are safe for concurrent use. Appends to
// the same thread serialize on a per-thread lock, so a multi-message append
// is atomic: no other writer can interleave inside it.
// Durability: none. The store is volatile and empties on process restart.
package conversation

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// Role identifies the author of a message.
type Role string

// Valid message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single entry in a thread's conversation log.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Sequence  int       `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}

// Sentinel errors for store operations. Check with errors.Is.
var (
	// ErrInvalidThreadID indicates the thread ID is empty or malformed.
	ErrInvalidThreadID = errors.New("invalid thread id")
)

// threadLog holds one thread's message log. Each log carries its own lock
// so writers to different threads never contend.
type threadLog struct {
	mu       sync.Mutex
	messages []Message
	userID   string
}

// Store is an in-memory, thread-keyed conversation store.
//
// The zero value is NOT useful - use NewStore() to create instances.
type Store struct {
	mu      sync.RWMutex
	threads map[string]*threadLog
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{threads: make(map[string]*threadLog)}
}

// log returns the thread's log, creating it when create is set.
func (s *Store) log(threadID string, create bool) *threadLog {
	s.mu.RLock()
	tl := s.threads[threadID]
	s.mu.RUnlock()
	if tl != nil || !create {
		return tl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tl = s.threads[threadID]; tl == nil {
		tl = &threadLog{}
		s.threads[threadID] = tl
	}
	return tl
}

// Append atomically appends messages to the thread's log, assigning each a
// sequence number and timestamp. The thread is created on first append.
// Returns the stored messages with sequence numbers filled in.
//
// Messages from a single call are contiguous in the log: concurrent appends
// to the same thread serialize, they never interleave.
func (s *Store) Append(threadID string, msgs ...Message) ([]Message, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, ErrInvalidThreadID
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	tl := s.log(threadID, true)

	tl.mu.Lock()
	defer tl.mu.Unlock()

	now := time.Now().UTC()
	stored := make([]Message, len(msgs))
	for i, m := range msgs {
		m.Sequence = len(tl.messages)
		m.CreatedAt = now
		tl.messages = append(tl.messages, m)
		stored[i] = m
	}
	return stored, nil
}

// Touch ensures the thread's log exists, creating an empty one if needed.
// Referencing a thread materializes it even before any message lands.
func (s *Store) Touch(threadID string) error {
	if strings.TrimSpace(threadID) == "" {
		return ErrInvalidThreadID
	}
	s.log(threadID, true)
	return nil
}

// History returns a snapshot of the thread's messages in append order.
// The second return reports whether the thread exists; an unknown thread
// yields (nil, false), never an error. Lookup never creates a thread.
func (s *Store) History(threadID string) ([]Message, bool) {
	tl := s.log(threadID, false)
	if tl == nil {
		return nil, false
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()
	snapshot := make([]Message, len(tl.messages))
	copy(snapshot, tl.messages)
	return snapshot, true
}

// Count returns the number of messages in the thread. Unknown threads
// count zero.
func (s *Store) Count(threadID string) int {
	tl := s.log(threadID, false)
	if tl == nil {
		return 0
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()
	return len(tl.messages)
}

// Clear empties the thread's log but keeps the thread. Sequence numbering
// restarts from zero. Clearing an unknown or already-empty thread is a
// no-op: Clear is idempotent.
func (s *Store) Clear(threadID string) {
	tl := s.log(threadID, false)
	if tl == nil {
		return
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.messages = nil
}

// Delete removes the thread and its log entirely. Deleting an unknown
// thread is a no-op.
func (s *Store) Delete(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
}

// Tag associates an opaque user identifier with the thread, creating the
// thread if needed. The tag is informational: it does not authorize access.
func (s *Store) Tag(threadID, userID string) error {
	if strings.TrimSpace(threadID) == "" {
		return ErrInvalidThreadID
	}

	tl := s.log(threadID, true)
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.userID = userID
	return nil
}

// UserID returns the user tag for the thread, if any.
func (s *Store) UserID(threadID string) string {
	tl := s.log(threadID, false)
	if tl == nil {
		return ""
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.userID
}

// ThreadCount returns the number of threads currently held.
func (s *Store) ThreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}
