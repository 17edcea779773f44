package dedup

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go-marugujarat-scraper/internal/config"
	"go-marugujarat-scraper/internal/models"

	"github.com/sirupsen/logrus"
)

type PutResult int

const (
	Inserted PutResult = iota + 1
	AlreadyPresent
)

func (r PutResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case AlreadyPresent:
		return "already_present"
	default:
		return "unknown"
	}
}

// Entry is one stored listing.
type Entry struct {
	Identity string `json:"identity"`
	models.Listing
	FirstSeen time.Time `json:"first_seen"`
}

// backend persists entries in one concrete format.
// Each call acquires and releases its own resources.
type backend interface {
	Location() string
	Read(ctx context.Context) ([]Entry, error)
	//all is the full set after the run, pending only the entries added since the last commit
	Commit(ctx context.Context, all, pending []Entry) error
}

// State is the set of identities known to the store.
type State struct {
	entries []Entry
	index   map[string]int
}

func newState() *State {
	return &State{index: make(map[string]int)}
}

func (s *State) Contains(identity string) bool {
	_, ok := s.index[identity]
	return ok
}

func (s *State) Len() int { return len(s.entries) }

// Entries returns a copy in first-seen order.
func (s *State) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *State) add(e Entry) bool {
	if _, ok := s.index[e.Identity]; ok {
		return false
	}
	s.index[e.Identity] = len(s.entries)
	s.entries = append(s.entries, e)
	return true
}

type Option func(*Store)

// WithClock overrides time.Now for FirstSeen stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the deduplicating listing store.
type Store struct {
	mu      sync.Mutex
	backend backend
	log     logrus.FieldLogger
	now     func() time.Time

	state   *State
	pending []Entry
}

// Open picks the backend for cfg.Format. Nothing is read until Load.
func Open(cfg config.StorageConfig, log logrus.FieldLogger, opts ...Option) (*Store, error) {
	var b backend
	base := filepath.Join(cfg.Directory, cfg.FilenamePrefix)
	switch cfg.Format {
	case config.FormatCSV:
		b = &csvBackend{path: base + ".csv"}
	case config.FormatJSON:
		b = &jsonBackend{path: base + ".json"}
	case config.FormatSQLite:
		b = &sqliteBackend{path: base + ".db", table: cfg.FilenamePrefix}
	case config.FormatPostgres:
		b = &postgresBackend{dsn: cfg.DSN, table: cfg.FilenamePrefix}
	case config.FormatMongo:
		b = &mongoBackend{uri: cfg.URI, database: cfg.Database, collection: cfg.FilenamePrefix}
	default:
		return nil, fmt.Errorf("unknown storage format %q", cfg.Format)
	}
	return newStore(b, log, opts...), nil
}

func newStore(b backend, log logrus.FieldLogger, opts ...Option) *Store {
	s := &Store{
		backend: b,
		log:     log.WithField("store", b.Location()),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Location() string { return s.backend.Location() }

// Load reads the backing into memory. A missing backing is an empty state;
// unreadable or unparseable backing is a *StoreError and nothing is loaded.
func (s *Store) Load(ctx context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.backend.Read(ctx)
	if err != nil {
		return nil, asStoreError("load", s.backend.Location(), err)
	}

	state := newState()
	loadedAt := s.now().UTC()
	for _, e := range entries {
		//older exports carry no first-seen stamp
		if e.FirstSeen.IsZero() {
			e.FirstSeen = loadedAt
		}
		if !state.add(e) {
			s.log.WithField("identity", e.Identity).Warn("⚠️ Duplicate identity in backing store, keeping the first")
		}
	}
	s.state = state
	s.pending = nil
	s.log.Infof("📋 Loaded %d previously stored listings", state.Len())
	return state, nil
}

// Contains reports whether the identity is already stored or pending.
func (s *Store) Contains(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != nil && s.state.Contains(identity)
}

// Put adds the listing unless its identity is already known.
// A duplicate is reported as AlreadyPresent, not as an error.
func (s *Store) Put(l models.Listing) (PutResult, error) {
	id, err := l.Identity()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return 0, ErrNotLoaded
	}

	e := Entry{Identity: id, Listing: l, FirstSeen: s.now().UTC()}
	if !s.state.add(e) {
		return AlreadyPresent, nil
	}
	s.pending = append(s.pending, e)
	return Inserted, nil
}

// Pending is the number of entries added since the last successful Flush.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return 0
	}
	return s.state.Len()
}

// Entries returns all known entries in first-seen order.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil
	}
	return s.state.Entries()
}

// Flush makes every entry durable. On failure the previous backing is left
// intact and the pending entries are kept for another attempt.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return ErrNotLoaded
	}

	if err := s.backend.Commit(ctx, s.state.entries, s.pending); err != nil {
		return asStoreError("flush", s.backend.Location(), err)
	}
	s.log.Infof("💾 Saved %d new listings (%d total)", len(s.pending), s.state.Len())
	s.pending = nil
	return nil
}
