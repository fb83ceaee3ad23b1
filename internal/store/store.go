package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/dataguardian/agent/internal/models"
	"github.com/dataguardian/agent/pkg/file"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

// snapshotComment is embedded in the gzip header of every snapshot.
const snapshotComment = "DataGuardian usage data"

// compressionLevel trades a little CPU for the smallest periodic
// writes; snapshots are tiny, so best compression is cheap.
const compressionLevel = gzip.BestCompression

// Store persists ledger snapshots as gzip-compressed JSON at a fixed
// path. Writes are atomic with respect to crash; loads never fail
// past this boundary, a bad file just yields an empty record set.
type Store struct {
	path       string
	fileClient file.FileOperations
	logger     zerolog.Logger
}

// NewStore creates a Store writing to the given snapshot path.
func NewStore(path string, fileClient file.FileOperations, logger zerolog.Logger) *Store {
	return &Store{
		path:       path,
		fileClient: fileClient,
		logger:     logger,
	}
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

// Save encodes, compresses and atomically writes the records.
func (s *Store) Save(records []models.UsageRecord) error {
	payload, err := Encode(records)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := s.fileClient.EnsureDir(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	if err := s.fileClient.WriteFileAtomic(s.path, payload); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	s.logger.Debug().Str("path", s.path).Int("entries", len(records)).
		Int("bytes", len(payload)).Msg("Snapshot saved")
	return nil
}

// Load reads and decodes the snapshot. A missing, truncated or
// otherwise unreadable file is not an error: the daemon starts with an
// empty ledger and a warning, never a crash.
func (s *Store) Load() []models.UsageRecord {
	exists, err := s.fileClient.IsFileExists(s.path)
	if err != nil || !exists {
		s.logger.Debug().Str("path", s.path).Msg("No existing snapshot found")
		return nil
	}

	payload, err := s.fileClient.ReadFileRaw(s.path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to read snapshot, starting empty")
		return nil
	}

	records, err := Decode(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to decode snapshot, starting empty")
		return nil
	}

	s.logger.Debug().Str("path", s.path).Int("entries", len(records)).Msg("Snapshot loaded")
	return records
}

// Encode serializes records to JSON and gzip-compresses the result.
func Encode(records []models.UsageRecord) ([]byte, error) {
	var buf bytes.Buffer

	gz, err := gzip.NewWriterLevel(&buf, compressionLevel)
	if err != nil {
		return nil, err
	}
	gz.Comment = snapshotComment

	if err := json.NewEncoder(gz).Encode(records); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode decompresses and deserializes a snapshot payload.
func Decode(payload []byte) ([]models.UsageRecord, error) {
	gz, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, err
	}

	var records []models.UsageRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	return records, nil
}
