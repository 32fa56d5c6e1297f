package file_repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mohammad-safakhou/scholar/models"
	"gopkg.in/yaml.v3"
)

// Repository keeps one YAML document per session under dir, named <id>.yaml.
type Repository struct {
	dir string
}

func New(dir string) (*Repository, error) {
	if dir == "" {
		return nil, errors.New("file repository: empty data dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file repository: %w", err)
	}
	return &Repository{dir: dir}, nil
}

func (r *Repository) path(id string) (string, error) {
	if !models.ValidSessionID(id) {
		return "", fmt.Errorf("file repository: invalid session id %q", id)
	}
	return filepath.Join(r.dir, id+".yaml"), nil
}

// Save writes the snapshot atomically (temp file + rename).
func (r *Repository) Save(ctx context.Context, snap models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := r.path(snap.SessionID)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(r.dir, snap.SessionID+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (r *Repository) Load(ctx context.Context, id string) (models.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Snapshot{}, false, err
	}
	path, err := r.path(id)
	if err != nil {
		return models.Snapshot{}, false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.Snapshot{}, false, nil
		}
		return models.Snapshot{}, false, err
	}
	var snap models.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return models.Snapshot{}, false, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return snap, true, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	path, err := r.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
