// Package store persists client-side state across reloads: the match-score
// cache, local status overrides, and the last-known profile hint.
//
// Backed by BadgerDB. Three key namespaces share one database:
//
//	match/<job id>    -> model.MatchResult
//	override/<job id> -> status string
//	profile/current   -> model.Profile (hint only, never current truth)
//
// Writes are last-write-wins per key with no cross-key transactional
// requirement; the single-actor event loop serializes all writers.
package store

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/jobkit/synccore/internal/domain/model"
	"github.com/jobkit/synccore/pkg/logger"
)

const (
	matchPrefix    = "match/"
	overridePrefix = "override/"
	profileKey     = "profile/current"
)

// ChangeListener is invoked after a cache write that actually changed the
// stored value. Structurally-equal puts never fire it.
type ChangeListener func(jobID int64, entry model.MatchResult)

// Store is the persisted client state store.
type Store struct {
	db       *badger.DB
	log      logger.Logger
	onChange ChangeListener
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLogger sets a custom logger for the store.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithChangeListener registers the cache change notification callback.
func WithChangeListener(fn ChangeListener) Option {
	return func(s *Store) { s.onChange = fn }
}

// Open opens (and creates if needed) the store at dir.
func Open(dir string, opts ...Option) (*Store, error) {
	return open(badger.DefaultOptions(dir), opts...)
}

// OpenInMemory opens a store that is lost on Close. Intended for tests.
func OpenInMemory(opts ...Option) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), opts...)
}

func open(badgerOpts badger.Options, opts ...Option) (*Store, error) {
	s := &Store{log: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}

	// Badger's own chatter goes nowhere; the store logs what matters.
	db, err := badger.Open(badgerOpts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	s.db = db
	return s, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func matchKey(jobID int64) []byte {
	return []byte(matchPrefix + strconv.FormatInt(jobID, 10))
}

func overrideKey(jobID int64) []byte {
	return []byte(overridePrefix + strconv.FormatInt(jobID, 10))
}

// jobIDFromKey parses the numeric suffix of a namespaced key.
func jobIDFromKey(key []byte, prefix string) (int64, bool) {
	id, err := strconv.ParseInt(string(key[len(prefix):]), 10, 64)
	return id, err == nil
}

// getValue reads and decodes one key. found is false on a missing key.
func (s *Store) getValue(key []byte, decode func([]byte) error) (found bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(decode)
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %w", ErrRead, err)
	}
}

func (s *Store) setValue(key, val []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

func (s *Store) deleteValue(key []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}
