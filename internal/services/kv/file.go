package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

type fileEntry struct {
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// NewFileStore keeps one file per key below dir. Values survive process
// restarts, which makes it the default for command line uploads.
func NewFileStore(dir string) (Store, error) {
	err := os.MkdirAll(dir, 0o700)
	if err != nil {
		return nil, fmt.Errorf("ensuring kv directory exists: %w", err)
	}

	return &fileStore{
		dir: dir,
	}, nil
}

type fileStore struct {
	dir string
}

func (f *fileStore) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

func (f *fileStore) Get(_ context.Context, key string) (string, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading entry: %w", err)
	}

	var entry fileEntry
	err = json.Unmarshal(data, &entry)
	if err != nil {
		return "", false, fmt.Errorf("decoding entry: %w", err)
	}

	if entry.ExpiresAt != nil && time.Now().After(*entry.ExpiresAt) {
		_ = os.Remove(f.path(key))
		return "", false, nil
	}

	return entry.Value, true, nil
}

func (f *fileStore) Set(_ context.Context, key string, value string, opts ...Option) error {
	options := applyOptions(opts)

	entry := fileEntry{Value: value}
	if options.Expiration > 0 {
		expiresAt := time.Now().Add(options.Expiration)
		entry.ExpiresAt = &expiresAt
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, ".entry-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}

	err = tmp.Sync()
	if err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	// rename is atomic, readers see either the old or the new entry
	err = os.Rename(tmp.Name(), f.path(key))
	if err != nil {
		return fmt.Errorf("replacing entry: %w", err)
	}

	return nil
}

func (f *fileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing entry: %w", err)
	}
	return nil
}
