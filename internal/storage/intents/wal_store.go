// Package intents journals two-phase execution intents so that a run interrupted
// between the oracle update and the swap can be reconciled after restart.
package intents

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/orbit/internal/domain"
)

const (
	DefaultDir   = "./wal/intents"
	segmentLimit = 500
	maxSegments  = 20

	intentKeyPrefix = "execution_intent_"
)

// WALStore journals execution intents. The latest write per intent id wins.
type WALStore struct {
	wal    *gowal.Wal
	mu     sync.RWMutex
	latest map[string]domain.ExecutionIntent
}

// NewWALStore opens the journal and replays existing records.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "intent_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init intent WAL")
	}

	store := &WALStore{wal: wal, latest: make(map[string]domain.ExecutionIntent)}
	for msg := range wal.Iterator() {
		if !strings.HasPrefix(msg.Key, intentKeyPrefix) {
			continue
		}

		var intent domain.ExecutionIntent
		if err := json.Unmarshal(msg.Value, &intent); err != nil {
			return nil, errors.Wrapf(err, "decode execution intent %s", msg.Key)
		}
		store.latest[intent.ID] = intent
	}

	return store, nil
}

// Save appends the intent state to the journal.
func (s *WALStore) Save(intent domain.ExecutionIntent) error {
	if s == nil || s.wal == nil {
		return errors.New("intent store is not initialized")
	}
	if intent.ID == "" {
		return fmt.Errorf("execution intent id is required")
	}

	payload, err := json.Marshal(intent)
	if err != nil {
		return errors.Wrap(err, "marshal execution intent")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%s%s", intentKeyPrefix, intent.ID)
	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, key, payload); err != nil {
		return errors.Wrap(err, "write execution intent")
	}
	s.latest[intent.ID] = intent

	return nil
}

// Get returns the latest state of the intent.
func (s *WALStore) Get(id string) (domain.ExecutionIntent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	intent, ok := s.latest[id]
	return intent, ok
}

// Pending returns intents whose latest state is not terminal, oldest first.
func (s *WALStore) Pending() []domain.ExecutionIntent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]domain.ExecutionIntent, 0)
	for _, intent := range s.latest {
		if !intent.Status.Terminal() {
			pending = append(pending, intent)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	return pending
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("intent store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
