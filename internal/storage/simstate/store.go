// Package simstate persists the dry-run chain state between restarts.
package simstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const defaultStateDir = "./wal/simulate"

// Store persists simulator state per scope so restarts keep balances and the oracle price.
type Store struct {
	path string
}

// NewStore creates a simulator state store under dir. Empty dir falls back to the default location.
func NewStore(dir, scope string) (*Store, error) {
	if dir == "" {
		dir = defaultStateDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create simulate state dir")
	}

	name := sanitizeScope(scope)
	if name == "" {
		name = "default"
	}

	return &Store{path: filepath.Join(dir, fmt.Sprintf("%s.json", name))}, nil
}

// State represents all persisted simulator data. Amounts are decimal strings.
type State struct {
	Balances map[string]string `json:"balances"`
	// OraclePrice last published oracle price, 18-decimals integer.
	OraclePrice string `json:"oracle_price"`
	// OracleTimestampNs publish time in nanoseconds.
	OracleTimestampNs uint64 `json:"oracle_timestamp_ns"`
	Nonce             uint64 `json:"nonce"`
	// Receipts mined transactions by hash.
	Receipts map[string]StoredReceipt `json:"receipts"`
}

// StoredReceipt mined simulator transaction.
type StoredReceipt struct {
	Kind        string `json:"kind"`
	BlockNumber uint64 `json:"block_number"`
	Reverted    bool   `json:"reverted,omitempty"`
}

// Load reads simulator state from disk. Missing state yields nil without error.
func (s *Store) Load() (*State, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "read simulate state")
	}

	if len(payload) == 0 {
		return nil, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode simulate state")
	}

	return &state, nil
}

// Save writes simulator state to disk atomically via temp file.
func (s *Store) Save(state State) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode simulate state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write simulate state temp file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist simulate state")
	}

	return nil
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

func sanitizeScope(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}

	var b strings.Builder

	prevUnderscore := false

	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)

			prevUnderscore = false

			continue
		}

		if !prevUnderscore {
			b.WriteByte('_')

			prevUnderscore = true
		}
	}

	return strings.Trim(b.String(), "_")
}
