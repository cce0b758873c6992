// Package persist stores committed composition snapshots and cached audio
// sessions in an embedded BadgerDB so both survive a restart.
//
// Writes are fire-and-continue: callers enqueue onto a bounded channel and
// never wait for the disk; a single writer goroutine drains the channel.
// A full queue drops the write and logs, it never blocks the pipeline.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/soundshape/panelsync/internal/domain/model"
	"github.com/soundshape/panelsync/pkg/logger"
	"github.com/soundshape/panelsync/pkg/metrics"
)

// Default store configuration constants.
const (
	defaultQueueSize = 256
	snapshotKey      = "composition/snapshot"
	sessionPrefix    = "session/"
)

// SessionRecord is the persisted form of one cached audio session.
type SessionRecord struct {
	SessionID   string    `json:"session_id"`
	SourceLabel string    `json:"source_label"`
	Fingerprint string    `json:"fingerprint"`
	Samples     []float32 `json:"samples"`
	CreatedAt   time.Time `json:"created_at"`
}

// job is one pending write. A nil value means delete.
type job struct {
	key   string
	value []byte
}

// Store is a badger-backed persistence adapter with an async writer.
type Store struct {
	db     *badger.DB
	jobs   chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool

	path      string
	inMemory  bool
	queueSize int
	logger    logger.Logger
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithPath sets the on-disk database directory.
func WithPath(path string) Option {
	return func(s *Store) {
		if path != "" {
			s.path = path
		}
	}
}

// WithInMemory switches to badger's in-memory mode. Used in tests.
func WithInMemory() Option {
	return func(s *Store) {
		s.inMemory = true
	}
}

// WithQueueSize bounds the pending-write channel.
func WithQueueSize(size int) Option {
	return func(s *Store) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New opens the database and starts the writer goroutine.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		queueSize: defaultQueueSize,
	}

	for _, opt := range opts {
		opt(s)
	}

	var badgerOpts badger.Options
	if s.inMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if s.path == "" {
			return nil, fmt.Errorf("%w: path must be set for on-disk mode", ErrOpen)
		}
		badgerOpts = badger.DefaultOptions(s.path)
	}
	// Badger's own logging is noisy at the default level; keep it off and
	// rely on this package's logger.
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	s.db = db

	s.jobs = make(chan job, s.queueSize)
	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

// writeLoop drains the job channel until it is closed.
func (s *Store) writeLoop() {
	defer s.wg.Done()
	for j := range s.jobs {
		metrics.UpdatePersistQueueSize(len(s.jobs))
		err := s.db.Update(func(txn *badger.Txn) error {
			if j.value == nil {
				return txn.Delete([]byte(j.key))
			}
			return txn.Set([]byte(j.key), j.value)
		})
		if err != nil {
			metrics.RecordPersistError()
			if s.logger != nil {
				s.logger.Error(context.Background(), "persistence write failed",
					logger.String("key", j.key),
					logger.Error(err),
				)
			}
			continue
		}
		metrics.RecordPersistWrite()
	}
}

// enqueue submits a write without blocking. Drops and logs when the queue
// is full or the store is closed.
func (s *Store) enqueue(ctx context.Context, j job) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		metrics.RecordPersistDropped()
		return
	}

	select {
	case s.jobs <- j:
		metrics.UpdatePersistQueueSize(len(s.jobs))
	default:
		metrics.RecordPersistDropped()
		if s.logger != nil {
			s.logger.Warn(ctx, "persistence queue full, dropping write",
				logger.String("key", j.key),
			)
		}
	}
}

// PersistSnapshot queues the committed snapshot for writing. No
// acknowledgment is consumed by callers.
func (s *Store) PersistSnapshot(snapshot model.CompositionSnapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		metrics.RecordPersistError()
		return
	}
	s.enqueue(context.Background(), job{key: snapshotKey, value: data})
}

// PersistSession queues one cached audio session for writing.
func (s *Store) PersistSession(rec SessionRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		metrics.RecordPersistError()
		return
	}
	s.enqueue(context.Background(), job{key: sessionPrefix + rec.SessionID, value: data})
}

// DeleteSession queues removal of a persisted session.
func (s *Store) DeleteSession(sessionID string) {
	s.enqueue(context.Background(), job{key: sessionPrefix + sessionID, value: nil})
}

// LoadSnapshot reads the last committed snapshot, if any.
func (s *Store) LoadSnapshot(_ context.Context) (model.CompositionSnapshot, bool, error) {
	var snap model.CompositionSnapshot
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotKey))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &snap); err != nil {
				return err
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return model.CompositionSnapshot{}, false, fmt.Errorf("%w: snapshot: %w", ErrLoad, err)
	}
	return snap, found, nil
}

// LoadSessions reads all persisted audio sessions, newest first, for
// rehydration at startup.
func (s *Store) LoadSessions(_ context.Context) ([]SessionRecord, error) {
	var records []SessionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(sessionPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec SessionRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: sessions: %w", ErrLoad, err)
	}

	// Newest first so the bounded cache keeps the most recent uploads.
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Close drains pending writes and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	s.wg.Wait()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrClose, err)
	}
	return nil
}
