// Package memory keeps short-term, session and long-term pattern history as
// timestamped key/value entries with O(1) eviction.
package memory

import (
	"log/slog"
	"time"
)

// Scope selects which lifetime an entry belongs to.
type Scope int

const (
	// ShortTerm entries are capacity-bounded recent history.
	ShortTerm Scope = iota
	// Session entries live for the current process only.
	Session
	// LongTerm entries survive restarts via the injected persister.
	LongTerm
)

// String returns a stable scope name used in the persistence envelope.
func (s Scope) String() string {
	switch s {
	case ShortTerm:
		return "short-term"
	case Session:
		return "session"
	case LongTerm:
		return "long-term"
	default:
		return "unknown"
	}
}

// Entry is one timestamped observation.
type Entry struct {
	Key       string    `json:"key"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Scope     Scope     `json:"scope"`
}

// Persister is the boundary to durable storage for the LongTerm scope.
type Persister interface {
	Persist(entries []Entry) error
	Load() ([]Entry, error)
}

const (
	shortTermCapacity = 100
	sessionCapacity   = 256
	longTermCapacity  = 512
)

// ring is a fixed-capacity FIFO of entries. Appending beyond capacity
// overwrites the oldest slot; no sorting, no reallocation.
type ring struct {
	entries []Entry
	head    int
	count   int
}

func newRing(capacity int) *ring {
	return &ring{entries: make([]Entry, capacity)}
}

func (r *ring) append(e Entry) {
	idx := (r.head + r.count) % len(r.entries)
	r.entries[idx] = e
	if r.count < len(r.entries) {
		r.count++
	} else {
		r.head = (r.head + 1) % len(r.entries)
	}
}

// recent returns up to n newest entries matching key (all keys when key is
// empty), oldest first.
func (r *ring) recent(key string, n int) []Entry {
	if n <= 0 || r.count == 0 {
		return nil
	}
	out := make([]Entry, 0, n)
	for i := r.count - 1; i >= 0 && len(out) < n; i-- {
		e := r.entries[(r.head+i)%len(r.entries)]
		if key == "" || e.Key == key {
			out = append(out, e)
		}
	}
	// reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (r *ring) snapshot() []Entry {
	out := make([]Entry, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.entries[(r.head+i)%len(r.entries)])
	}
	return out
}

// Store owns the three scopes. Session starts empty every process; LongTerm
// is hydrated from the persister at construction and flushed on Close.
type Store struct {
	logger    *slog.Logger
	persister Persister

	shortTerm *ring
	session   *ring
	longTerm  *ring
}

// NewStore builds a Store. persister may be nil, in which case the LongTerm
// scope behaves like Session. Load failures degrade to an empty long-term
// scope and a warning; they never propagate.
func NewStore(logger *slog.Logger, persister Persister) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		logger:    logger,
		persister: persister,
		shortTerm: newRing(shortTermCapacity),
		session:   newRing(sessionCapacity),
		longTerm:  newRing(longTermCapacity),
	}
	if persister != nil {
		entries, err := persister.Load()
		if err != nil {
			logger.Warn("long-term memory unavailable", slog.Any("error", err))
		} else {
			for _, e := range entries {
				e.Scope = LongTerm
				s.longTerm.append(e)
			}
		}
	}
	return s
}

// Append records one observation in the given scope.
func (s *Store) Append(scope Scope, key string, value float64, ts time.Time) {
	e := Entry{Key: key, Value: value, Timestamp: ts, Scope: scope}
	s.scopeRing(scope).append(e)
}

// Recent returns up to n newest entries for key in scope, oldest first.
// An empty key matches all entries.
func (s *Store) Recent(scope Scope, key string, n int) []Entry {
	return s.scopeRing(scope).recent(key, n)
}

// Len reports how many entries a scope currently holds.
func (s *Store) Len(scope Scope) int {
	return s.scopeRing(scope).count
}

// Flush writes the LongTerm scope through the persister. Called on shutdown,
// not per tick. Errors are logged and swallowed.
func (s *Store) Flush() {
	if s.persister == nil {
		return
	}
	if err := s.persister.Persist(s.longTerm.snapshot()); err != nil {
		s.logger.Warn("failed to persist long-term memory", slog.Any("error", err))
	}
}

func (s *Store) scopeRing(scope Scope) *ring {
	switch scope {
	case Session:
		return s.session
	case LongTerm:
		return s.longTerm
	default:
		return s.shortTerm
	}
}
