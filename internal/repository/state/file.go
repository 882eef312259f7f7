package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oshokin/alarm-dialer/internal/config"
	domain "github.com/oshokin/alarm-dialer/internal/domain/alarm"
)

// Repository defines persistence operations for the per-entity alarm state.
// An entity absent from the loaded map is equivalent to the zero State:
// inactive, never notified.
type Repository interface {
	Load(ctx context.Context) (map[string]domain.State, error)
	Save(ctx context.Context, states map[string]domain.State) error
}

// fileLayout is the on-disk JSON shape. Versioned so a future layout change
// can migrate old files instead of misreading them.
type fileLayout struct {
	Version  int                     `json:"version"`
	Entities map[string]domain.State `json:"entities"`
}

// layoutVersion is the current on-disk layout version.
const layoutVersion = 1

// FileRepository persists the entity state map to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

// ErrNotFound is returned when the state file does not exist yet.
var ErrNotFound = errors.New("state not found")

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the entity state map from disk.
func (r *FileRepository) Load(_ context.Context) (map[string]domain.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var layout fileLayout
	if err = json.Unmarshal(contents, &layout); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	if layout.Entities == nil {
		layout.Entities = make(map[string]domain.State)
	}

	return layout.Entities, nil
}

// Save writes the entity state map to disk atomically: the JSON is written to
// a temporary file in the same directory and renamed over the target, so a
// crash mid-write leaves the previous file intact.
func (r *FileRepository) Save(_ context.Context, states map[string]domain.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	layout := fileLayout{
		Version:  layoutVersion,
		Entities: states,
	}

	data, err := json.MarshalIndent(layout, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(r.path)

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	tmpName := tmp.Name()

	if err = writeAndClose(tmp, data); err != nil {
		_ = os.Remove(tmpName)

		return err
	}

	if err = os.Rename(tmpName, r.path); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

// writeAndClose writes the payload, syncs and closes the temporary file.
func writeAndClose(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()

		return fmt.Errorf("write temp state file: %w", err)
	}

	if err := f.Chmod(config.DefaultFilePermissions); err != nil {
		_ = f.Close()

		return fmt.Errorf("chmod temp state file: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()

		return fmt.Errorf("sync temp state file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	return nil
}
