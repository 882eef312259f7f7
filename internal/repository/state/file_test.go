package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/alarm-dialer/internal/domain/alarm"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for a missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))

	states, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, states)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns
// an equal entity map.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "state.json")
	repo := NewFileRepository(file)

	notifiedAt := time.Now().UTC().Truncate(time.Second)
	want := map[string]domain.State{
		"68b0c2f1a4e9d73b9c1f0a22": {
			LastValue:      domain.ValueActive,
			LastNotifiedAt: notifiedAt,
			LastAttemptAt:  notifiedAt,
		},
		"68b0c2f1a4e9d73b9c1f0a23": {
			LastValue: domain.ValueInactive,
		},
	}

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	active := got["68b0c2f1a4e9d73b9c1f0a22"]
	require.Equal(t, domain.ValueActive, active.LastValue)
	require.True(t, active.LastNotifiedAt.Equal(notifiedAt))

	inactive := got["68b0c2f1a4e9d73b9c1f0a23"]
	require.Equal(t, domain.ValueInactive, inactive.LastValue)
	require.False(t, inactive.Notified())
}

// TestFileRepository_AtomicReplace ensures saving over an existing file never
// leaves a partially written state behind and no temp files linger.
func TestFileRepository_AtomicReplace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "state.json")
	repo := NewFileRepository(file)

	first := map[string]domain.State{
		"entity-a": {LastValue: domain.ValueActive},
	}
	require.NoError(t, repo.Save(context.Background(), first))

	second := map[string]domain.State{
		"entity-a": {LastValue: domain.ValueInactive},
		"entity-b": {LastValue: domain.ValueActive},
	}
	require.NoError(t, repo.Save(context.Background(), second))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, domain.ValueInactive, got["entity-a"].LastValue)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// TestFileRepository_CorruptFile verifies a clear decode error on garbage content.
func TestFileRepository_CorruptFile(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(file, []byte("not json{"), 0o600))

	_, err := NewFileRepository(file).Load(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}
