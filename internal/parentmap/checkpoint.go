package parentmap

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"

	"github.com/morozRed/parenthunter/internal/fileutil"
)

const (
	CurrentCheckpointVersion = "1"
	DefaultSaveRetries       = 3
)

// Checkpoint is the on-disk snapshot of a parent map.
type Checkpoint struct {
	Version   string                `json:"version"`
	ScanID    string                `json:"scan_id"`
	Target    string                `json:"target"`
	PID       int                   `json:"pid"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
	Entries   map[ObjectID]ParentID `json:"entries"`
}

// DefaultPath builds the checkpoint path used when no resume path is given.
func DefaultPath(dataDir, target string, startedAt time.Time, pid int) string {
	safeTarget := strings.ReplaceAll(strings.TrimSpace(target), string(filepath.Separator), "-")
	name := fmt.Sprintf("parent_map_%s_%d_%d.json", safeTarget, startedAt.Unix(), pid)
	return filepath.Join(dataDir, name)
}

// LoadCheckpoint reads a checkpoint file. Any read or decode problem is
// returned as a *PersistenceError.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Path: path, Err: err}
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, &PersistenceError{Op: "load", Path: path, Err: err}
	}

	migrateCheckpoint(&cp)

	return &cp, nil
}

// Store owns one checkpoint file and rewrites it in full on every save.
type Store struct {
	path    string
	meta    Checkpoint
	retries uint64
	logger  *slog.Logger
}

type StoreOption func(*Store)

func WithSaveRetries(n int) StoreOption {
	return func(s *Store) {
		if n >= 0 {
			s.retries = uint64(n)
		}
	}
}

func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore prepares a fresh checkpoint at path. Nothing is written until the first Save.
func NewStore(path, target string, opts ...StoreOption) *Store {
	now := time.Now().UTC()
	s := &Store{
		path: path,
		meta: Checkpoint{
			Version:   CurrentCheckpointVersion,
			ScanID:    uuid.New().String(),
			Target:    target,
			PID:       os.Getpid(),
			CreatedAt: now,
		},
		retries: DefaultSaveRetries,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenStore loads an existing checkpoint and returns a store that keeps writing
// to the same path, together with a cache seeded from its entries.
func OpenStore(path string, opts ...StoreOption) (*Store, *Cache, error) {
	cp, err := LoadCheckpoint(path)
	if err != nil {
		return nil, nil, err
	}

	s := &Store{
		path:    path,
		meta:    *cp,
		retries: DefaultSaveRetries,
		logger:  slog.Default(),
	}
	s.meta.Entries = nil
	for _, opt := range opts {
		opt(s)
	}
	return s, FromEntries(cp.Entries), nil
}

func (s *Store) Path() string {
	return s.path
}

// Metadata returns the checkpoint header without entries.
func (s *Store) Metadata() Checkpoint {
	return s.meta
}

// Save overwrites the checkpoint with the full contents of c. Transient write
// failures are retried; the final failure is returned as a *PersistenceError.
func (s *Store) Save(c *Cache) error {
	cp := s.meta
	cp.UpdatedAt = time.Now().UTC()
	cp.Entries = c.Snapshot()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 100 * time.Millisecond
	expBackoff.MaxElapsedTime = 5 * time.Second

	attempt := 0
	operation := func() error {
		attempt++
		if err := fileutil.WriteFileAtomic(s.path, data, 0644); err != nil {
			s.logger.Debug("checkpoint write failed", "path", s.path, "attempt", attempt, "error", err)
			return err
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithMaxRetries(expBackoff, s.retries)); err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	s.meta.UpdatedAt = cp.UpdatedAt
	s.logger.Debug("checkpoint saved", "path", s.path, "entries", len(cp.Entries))
	return nil
}

func migrateCheckpoint(cp *Checkpoint) {
	if cp.Entries == nil {
		cp.Entries = make(map[ObjectID]ParentID)
	}

	switch cp.Version {
	case "":
		cp.Version = CurrentCheckpointVersion
	case CurrentCheckpointVersion:
		// no-op
	default:
		// Newer versions are read as-is; entries are the only field resume depends on.
	}
}
