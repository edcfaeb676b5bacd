package exposures

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
	defaultSnapshotDir   = "./wal/exposure"
	snapshotSegmentLimit = 1000
	snapshotMaxSegments  = 100
	snapshotKeyPrefix    = "exposure_snapshot_"

	retainedSnapshots = snapshotSegmentLimit * (snapshotMaxSegments + 1)
)

// WALStore persists exposure snapshots in a WAL for history and streaming purposes.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed snapshot store under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultSnapshotDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "snapshot_",
		SegmentThreshold: snapshotSegmentLimit,
		MaxSegments:      snapshotMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init exposure snapshot WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save writes the snapshot to WAL. Callers must ensure record.Pair is set.
func (s *WALStore) Save(record domain.ExposureRecord) error {
	if s == nil || s.wal == nil {
		return errors.New("exposure snapshot store is not initialized")
	}
	if record.Pair == "" {
		return fmt.Errorf("exposure snapshot pair is required")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshal exposure snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	key := fmt.Sprintf("%s%d", snapshotKeyPrefix, nextIndex)

	return s.wal.Write(nextIndex, key, payload)
}

// SnapshotsAfter returns snapshots stored after the provided WAL index.
func (s *WALStore) SnapshotsAfter(index uint64) ([]domain.ExposureRecordEntry, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("exposure snapshot store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	from := index + 1
	if current-index > retainedSnapshots {
		from = current - retainedSnapshots + 1
	}

	entries := make([]domain.ExposureRecordEntry, 0, current-from+1)
	for idx := from; idx <= current; idx++ {
		key, value, err := s.wal.Get(idx)
		if err != nil {
			return nil, errors.Wrapf(err, "read exposure snapshot %d", idx)
		}
		if !strings.HasPrefix(key, snapshotKeyPrefix) {
			continue
		}
		keyIdx, err := strconv.ParseUint(strings.TrimPrefix(key, snapshotKeyPrefix), 10, 64)
		if err != nil || keyIdx != idx {
			continue
		}

		var record domain.ExposureRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return nil, errors.Wrap(err, "decode exposure snapshot")
		}

		entries = append(entries, domain.ExposureRecordEntry{Index: idx, Record: record})
	}

	return entries, nil
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
		return errors.New("exposure snapshot store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
