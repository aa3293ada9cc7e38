package idempotency

import (
	"context"
	"maps"
	"sync"
	"time"
)

// Record is a stored idempotency key and, once the request finished, its response
type Record struct {
	Key         string
	Method      string
	Path        string
	Fingerprint string

	LockedAt    time.Time
	CompletedAt *time.Time

	ResponseCode    int
	ResponseBody    []byte
	ResponseHeaders map[string]string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsCompleted returns true if the response has been stored
func (r *Record) IsCompleted() bool {
	return r.CompletedAt != nil
}

// IsLocked returns true if a request holding the key is still running
func (r *Record) IsLocked() bool {
	return !r.LockedAt.IsZero() && r.CompletedAt == nil
}

func (r *Record) clone() *Record {
	c := *r
	c.ResponseBody = append([]byte(nil), r.ResponseBody...)
	c.ResponseHeaders = maps.Clone(r.ResponseHeaders)
	return &c
}

// KeyStore persists idempotency keys for HTTP requests.
// Implementations must make Acquire atomic.
type KeyStore interface {
	// Acquire locks record.Key for the caller. It returns the stored record
	// and true when the caller now owns the key, or the existing record and
	// false when another request completed or is still processing it.
	Acquire(ctx context.Context, record *Record) (*Record, bool, error)

	// Complete stores the response and releases the lock
	Complete(ctx context.Context, key string, code int, body []byte, headers map[string]string) error

	// Release drops a key whose request failed so it can be retried
	Release(ctx context.Context, key string) error

	// Clean removes records that expired before the given time
	Clean(ctx context.Context, before time.Time) (int, error)
}

// MemoryStore is an in-process KeyStore
type MemoryStore struct {
	mu          sync.Mutex
	records     map[string]*Record
	lockTimeout time.Duration
	now         func() time.Time
}

// NewMemoryStore creates a MemoryStore. Locks older than lockTimeout are
// treated as abandoned.
func NewMemoryStore(lockTimeout time.Duration) *MemoryStore {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &MemoryStore{
		records:     make(map[string]*Record),
		lockTimeout: lockTimeout,
		now:         time.Now,
	}
}

// Acquire implements KeyStore
func (s *MemoryStore) Acquire(_ context.Context, record *Record) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.records[record.Key]; ok && now.Before(existing.ExpiresAt) {
		if existing.IsCompleted() || now.Sub(existing.LockedAt) < s.lockTimeout {
			return existing.clone(), false, nil
		}
	}

	stored := record.clone()
	stored.LockedAt = now
	stored.CompletedAt = nil
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	s.records[record.Key] = stored
	return stored.clone(), true, nil
}

// Complete implements KeyStore
func (s *MemoryStore) Complete(_ context.Context, key string, code int, body []byte, headers map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return ErrNotFound
	}
	completedAt := s.now()
	record.CompletedAt = &completedAt
	record.ResponseCode = code
	record.ResponseBody = append([]byte(nil), body...)
	record.ResponseHeaders = maps.Clone(headers)
	return nil
}

// Release implements KeyStore
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key]; !ok {
		return ErrNotFound
	}
	delete(s.records, key)
	return nil
}

// Clean implements KeyStore
func (s *MemoryStore) Clean(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, record := range s.records {
		if !record.ExpiresAt.After(before) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored keys
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// MessageStore remembers which CloudEvents a consumer group already handled
type MessageStore struct {
	mu        sync.Mutex
	processed map[string]time.Time
	retention time.Duration
	now       func() time.Time
}

// NewMessageStore creates a MessageStore keeping ids for retention
func NewMessageStore(retention time.Duration) *MessageStore {
	if retention <= 0 {
		retention = DefaultRetentionPeriod
	}
	return &MessageStore{
		processed: make(map[string]time.Time),
		retention: retention,
		now:       time.Now,
	}
}

func messageKey(messageID, topic, consumerGroup string) string {
	return consumerGroup + "|" + topic + "|" + messageID
}

// IsProcessed reports whether the message was already handled
func (s *MessageStore) IsProcessed(_ context.Context, messageID, topic, consumerGroup string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.processed[messageKey(messageID, topic, consumerGroup)]
	return ok && s.now().Before(expiresAt), nil
}

// MarkProcessed records a handled message
func (s *MessageStore) MarkProcessed(_ context.Context, messageID, topic, consumerGroup string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[messageKey(messageID, topic, consumerGroup)] = s.now().Add(s.retention)
	return nil
}

// Clean removes ids whose retention ended before the given time
func (s *MessageStore) Clean(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, expiresAt := range s.processed {
		if !expiresAt.After(before) {
			delete(s.processed, key)
			removed++
		}
	}
	return removed, nil
}
