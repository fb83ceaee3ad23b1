package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dataguardian/agent/internal/models"
	"github.com/dataguardian/agent/pkg/file"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "usage.dat")
	return NewStore(path, file.NewFileService(), zerolog.Nop())
}

func testRecords() []models.UsageRecord {
	alertAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []models.UsageRecord{
		{
			Identity:             "chrome",
			TotalBytes:           5 << 30,
			LastSeenPID:          4242,
			LastSeenProcessBytes: 1 << 20,
			LastAlertAt:          &alertAt,
		},
		{
			Identity:             "postgres",
			TotalBytes:           123456,
			LastSeenPID:          99,
			LastSeenProcessBytes: 123456,
		},
	}
}

func TestStore_SaveLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	records := testRecords()

	require.NoError(t, s.Save(records))

	loaded := s.Load()
	require.Len(t, loaded, 2)

	byIdentity := make(map[string]models.UsageRecord)
	for _, rec := range loaded {
		byIdentity[rec.Identity] = rec
	}

	chrome := byIdentity["chrome"]
	assert.Equal(t, uint64(5<<30), chrome.TotalBytes)
	assert.Equal(t, int32(4242), chrome.LastSeenPID)
	require.NotNil(t, chrome.LastAlertAt)
	assert.True(t, chrome.LastAlertAt.Equal(*records[0].LastAlertAt))

	postgres := byIdentity["postgres"]
	assert.Equal(t, uint64(123456), postgres.TotalBytes)
	assert.Nil(t, postgres.LastAlertAt)
}

func TestStore_Load_MissingFile(t *testing.T) {
	s := newTestStore(t)
	assert.Empty(t, s.Load())
}

func TestStore_Load_CorruptFile(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, os.WriteFile(s.Path(), []byte("not a gzip stream"), 0600))
	assert.Empty(t, s.Load())
}

func TestStore_Load_TruncatedSnapshot(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(testRecords()))

	payload, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), payload[:len(payload)/2], 0600))

	assert.Empty(t, s.Load())
}

func TestStore_Load_WrongPayloadShape(t *testing.T) {
	s := newTestStore(t)

	// Valid gzip, but the JSON inside is not a record list.
	payload, err := Encode(nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), payload, 0600))
	assert.Empty(t, s.Load())

	require.NoError(t, os.WriteFile(s.Path(), mustGzip(t, []byte(`{"oops": true}`)), 0600))
	assert.Empty(t, s.Load())
}

func TestStore_Save_CrashBeforeRenameKeepsPreviousSnapshot(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(testRecords()))

	// Simulate a crash between temp-file write and rename: a stale,
	// garbled temp file next to the committed snapshot.
	require.NoError(t, os.WriteFile(s.Path()+".tmp", []byte("partial write"), 0600))

	loaded := s.Load()
	assert.Len(t, loaded, 2)

	// The next save replaces both the temp file and the snapshot.
	require.NoError(t, s.Save(testRecords()[:1]))
	assert.Len(t, s.Load(), 1)
}

func TestStore_Save_CreatesDataDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "usage.dat")
	s := NewStore(path, file.NewFileService(), zerolog.Nop())

	require.NoError(t, s.Save(testRecords()))
	assert.Len(t, s.Load(), 2)
}

func TestEncode_Deterministic(t *testing.T) {
	records := testRecords()

	first, err := Encode(records)
	require.NoError(t, err)
	second, err := Encode(records)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEncode_CompressesRepetitiveData(t *testing.T) {
	records := make([]models.UsageRecord, 0, 1000)
	for i := 0; i < 1000; i++ {
		records = append(records, models.UsageRecord{
			Identity:   "process_" + string(rune('a'+i%26)),
			TotalBytes: uint64(i),
		})
	}

	payload, err := Encode(records)
	require.NoError(t, err)

	decoded, err := Decode(payload)
	require.NoError(t, err)
	assert.Len(t, decoded, 1000)
}

func mustGzip(t *testing.T, raw []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(raw)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}
