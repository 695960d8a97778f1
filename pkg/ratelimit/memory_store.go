package ratelimit

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// DefaultPruneInterval is the minimum time between prunes of one bucket.
const DefaultPruneInterval = 10 * time.Second

// MemoryStore keeps sliding-window buckets in process memory.
// It is advisory: each process has its own buckets, so deployments running
// several notifyd instances need RedisStore for a shared limit.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	pruneInterval   time.Duration
	cleanupInterval time.Duration
	initialCapacity int
	stop            chan struct{}
	stopOnce        sync.Once
}

type bucket struct {
	timestamps []time.Time // ascending
	window     time.Duration
	lastPrune  time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithPruneInterval sets the debounce between lazy prunes of a bucket.
func WithPruneInterval(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if d >= 0 {
			s.pruneInterval = d
		}
	}
}

// WithCleanupInterval sets how often idle buckets are dropped.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.cleanupInterval = interval
		}
	}
}

// WithInitialCapacity sets the initial timestamp capacity of new buckets.
func WithInitialCapacity(capacity int) MemoryStoreOption {
	return func(s *MemoryStore) {
		if capacity > 0 {
			s.initialCapacity = capacity
		}
	}
}

// NewMemoryStore creates an in-memory store with a background cleanup loop.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		buckets:         make(map[string]*bucket),
		pruneInterval:   DefaultPruneInterval,
		cleanupInterval: time.Minute,
		initialCapacity: 64,
		stop:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) Admit(_ context.Context, key string, now time.Time, window time.Duration, limit int) (Admission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{timestamps: make([]time.Time, 0, min(limit, s.initialCapacity)), lastPrune: now}
		s.buckets[key] = b
	}
	b.window = window

	cutoff := now.Add(-window)
	first := sort.Search(len(b.timestamps), func(i int) bool {
		return b.timestamps[i].After(cutoff)
	})

	if now.Sub(b.lastPrune) > s.pruneInterval {
		b.timestamps = append(b.timestamps[:0], b.timestamps[first:]...)
		b.lastPrune = now
		first = 0
	}

	inWindow := b.timestamps[first:]
	if len(inWindow) >= limit {
		return Admission{Allowed: false, Count: len(inWindow), Oldest: inWindow[0]}, nil
	}

	// Callers read the clock before taking the lock, so now can be older
	// than the newest stored timestamp.
	at := sort.Search(len(b.timestamps), func(i int) bool {
		return b.timestamps[i].After(now)
	})
	b.timestamps = slices.Insert(b.timestamps, at, now)
	inWindow = b.timestamps[first:]
	return Admission{Allowed: true, Count: len(inWindow), Oldest: inWindow[0]}, nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// Len reports the number of buckets held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// Stored reports the number of timestamps held for key, including ones
// outside the window that have not been pruned yet.
func (s *MemoryStore) Stored(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[key]; ok {
		return len(b.timestamps)
	}
	return 0
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			s.cleanup(now)
		case <-s.stop:
			return
		}
	}
}

// cleanup drops buckets whose newest timestamp has left the window.
func (s *MemoryStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, b := range s.buckets {
		n := len(b.timestamps)
		if n == 0 || !b.timestamps[n-1].After(now.Add(-b.window)) {
			delete(s.buckets, key)
		}
	}
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return nil
}
