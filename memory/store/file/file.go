// Package file implements a file-backed crystal store: one binary record
// per basin under a single directory, written atomically.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ladybuglabs/crystal-go/crystal"
)

const recordSuffix = ".crystal"

// Store persists crystals as individual record files named by basin id.
// Records use the layout in the crystal package, so any external
// collaborator that speaks that layout can read the directory directly.
type Store struct {
	dir string
	log *logrus.Entry
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(l *logrus.Logger) Option {
	return func(s *Store) { s.log = l.WithField("component", "crystal_file_store") }
}

// New creates the directory if needed and returns a store over it.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	s := &Store{
		dir: dir,
		log: logrus.StandardLogger().WithField("component", "crystal_file_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Save writes one record, replacing any existing record for the basin.
// The record is written to a uniquely named temp file and renamed into
// place, so readers never observe a partial record.
func (s *Store) Save(ctx context.Context, basinID uint32, c *crystal.Crystal) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	final := s.recordPath(basinID)
	tmp := final + "." + uuid.NewString() + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	if err := crystal.EncodeRecord(f, basinID, c); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode record: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp record: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit record: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"basin_id": basinID,
		"path":     final,
	}).Debug("saved crystal record")
	return nil
}

// Load reads every record in the directory. A record that fails to decode
// is surfaced as an error rather than skipped; corruption is the caller's
// decision, never silently hidden.
func (s *Store) Load(ctx context.Context) (map[uint32]*crystal.Crystal, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}

	out := make(map[uint32]*crystal.Crystal)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordSuffix) {
			continue
		}

		path := filepath.Join(s.dir, name)
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open record %s: %w", name, err)
		}
		basinID, c, err := crystal.DecodeRecord(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode record %s: %w", name, err)
		}
		out[basinID] = c
	}

	s.log.WithField("count", len(out)).Debug("loaded crystal records")
	return out, nil
}

// Delete removes a basin's record. Absent records are not an error.
func (s *Store) Delete(ctx context.Context, basinID uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(s.recordPath(basinID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Close is a no-op; records are flushed on Save.
func (s *Store) Close() error { return nil }

func (s *Store) recordPath(basinID uint32) string {
	return filepath.Join(s.dir, fmt.Sprintf("basin_%08x%s", basinID, recordSuffix))
}
