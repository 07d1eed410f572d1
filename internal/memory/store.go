package memory

import (
	"hash/fnv"
	"sync"
	"time"
)

// Message roles mirror the chat wire format.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one entry in a conversation's rolling window.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const shardCount = 32

// Store holds per-conversation message windows in process memory. It is a
// cache of recent context only; durable history goes to Postgres through
// the history repository, written independently by the orchestrator.
//
// Locking is per shard so unrelated conversations never contend on a
// single global mutex.
type Store struct {
	maxMessages int
	shards      [shardCount]shard
}

type shard struct {
	mu    sync.Mutex
	convs map[string][]Message
}

// NewStore creates a store that retains at most maxMessages per
// conversation, evicting the oldest entries first.
func NewStore(maxMessages int) *Store {
	if maxMessages <= 0 {
		maxMessages = 50
	}
	s := &Store{maxMessages: maxMessages}
	for i := range s.shards {
		s.shards[i].convs = make(map[string][]Message)
	}
	return s
}

func (s *Store) shardFor(conversationID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(conversationID))
	return &s.shards[h.Sum32()%shardCount]
}

// Append adds a message to the conversation, creating the conversation on
// first use and trimming it to the retention cap.
func (s *Store) Append(conversationID string, msg Message) {
	sh := s.shardFor(conversationID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	msgs := append(sh.convs[conversationID], msg)
	if len(msgs) > s.maxMessages {
		// Copy rather than reslice so the evicted prefix can be collected.
		trimmed := make([]Message, s.maxMessages)
		copy(trimmed, msgs[len(msgs)-s.maxMessages:])
		msgs = trimmed
	}
	sh.convs[conversationID] = msgs
}

// Window returns the last n messages in chronological order (oldest first).
// If the conversation has fewer than n messages, all of them are returned.
func (s *Store) Window(conversationID string, n int) []Message {
	sh := s.shardFor(conversationID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	msgs := sh.convs[conversationID]
	if n > len(msgs) {
		n = len(msgs)
	}
	out := make([]Message, n)
	copy(out, msgs[len(msgs)-n:])
	return out
}

// Len returns how many messages the conversation currently retains.
func (s *Store) Len(conversationID string) int {
	sh := s.shardFor(conversationID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return len(sh.convs[conversationID])
}

// Clear drops the conversation's window.
func (s *Store) Clear(conversationID string) {
	sh := s.shardFor(conversationID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.convs, conversationID)
}
