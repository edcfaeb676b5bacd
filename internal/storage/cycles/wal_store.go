// Package cycles persists decision cycle events in a write-ahead log.
package cycles

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/orbit/internal/domain"
)

const (
	DefaultDir   = "./wal/cycles"
	segmentLimit = 100
	maxSegments  = 10

	cycleKeyPrefix = "cycle_"

	// retainedEvents upper bound of records kept after segment rotation.
	retainedEvents = segmentLimit * (maxSegments + 1)
)

// WALStore persists cycle events in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed cycle store.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "cycle_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init cycle WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the cycle event and returns its index.
func (s *WALStore) Save(event domain.CycleEvent) (uint64, error) {
	if s == nil || s.wal == nil {
		return 0, errors.New("cycle store is not initialized")
	}
	if event.ID == "" {
		return 0, fmt.Errorf("cycle event id is required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return 0, errors.Wrap(err, "marshal cycle event")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	// the index is part of the key so readers can verify the slot they fetched
	key := fmt.Sprintf("%s%d", cycleKeyPrefix, nextIndex)
	if err := s.wal.Write(nextIndex, key, payload); err != nil {
		return 0, errors.Wrap(err, "write cycle event")
	}

	return nextIndex, nil
}

// EventsAfter returns all cycle events written after the provided WAL index.
// Only the requested index range is read, rotated-out records are skipped.
func (s *WALStore) EventsAfter(index uint64) ([]domain.CycleEventRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("cycle store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	from := index + 1
	if current-index > retainedEvents {
		from = current - retainedEvents + 1
	}

	records := make([]domain.CycleEventRecord, 0, current-from+1)
	for idx := from; idx <= current; idx++ {
		key, value, err := s.wal.Get(idx)
		if err != nil {
			return nil, errors.Wrapf(err, "read cycle event %d", idx)
		}
		if keyIdx, ok := indexFromKey(key); !ok || keyIdx != idx {
			continue
		}

		var event domain.CycleEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return nil, errors.Wrap(err, "decode cycle event")
		}

		records = append(records, domain.CycleEventRecord{Index: idx, Event: event})
	}

	return records, nil
}

// Latest returns the most recent n cycle events, oldest first.
func (s *WALStore) Latest(n int) ([]domain.CycleEventRecord, error) {
	if n <= 0 {
		return nil, nil
	}

	current := s.CurrentIndex()
	var from uint64
	if current > uint64(n) {
		from = current - uint64(n)
	}

	return s.EventsAfter(from)
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("cycle store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}

func indexFromKey(key string) (uint64, bool) {
	if !strings.HasPrefix(key, cycleKeyPrefix) {
		return 0, false
	}

	idx, err := strconv.ParseUint(strings.TrimPrefix(key, cycleKeyPrefix), 10, 64)
	if err != nil {
		return 0, false
	}

	return idx, true
}
