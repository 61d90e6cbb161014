package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/the127/chunkyard/internal/config"
	"github.com/the127/chunkyard/internal/storageBackends"
	"github.com/the127/chunkyard/internal/utils"
)

type backend struct {
	path     string
	tempPath string
}

type tempState struct {
	id          string
	partsPath   string
	contentType string
}

func (t tempState) encode() storageBackends.StorageBackendState {
	return storageBackends.StorageBackendState{
		"id":          t.id,
		"partsPath":   t.partsPath,
		"contentType": t.contentType,
	}
}

func decodeState(state storageBackends.StorageBackendState) (tempState, error) {
	id, ok := state["id"]
	if !ok {
		return tempState{}, fmt.Errorf("missing id in state")
	}

	partsPath, ok := state["partsPath"]
	if !ok {
		return tempState{}, fmt.Errorf("missing partsPath in state")
	}

	contentType, ok := state["contentType"]
	if !ok {
		return tempState{}, fmt.Errorf("missing contentType in state")
	}

	return tempState{
		id:          id,
		partsPath:   partsPath,
		contentType: contentType,
	}, nil
}

func New(c config.DirectoryBlobStorageConfig) (storageBackends.StorageBackend, error) {
	err := os.MkdirAll(c.Path, 0o755)
	if err != nil {
		return nil, fmt.Errorf("ensuring path exists: %w", err)
	}

	err = os.MkdirAll(c.TempPath, 0o755)
	if err != nil {
		return nil, fmt.Errorf("ensuring temp path exists: %w", err)
	}

	return &backend{
		path:     c.Path,
		tempPath: c.TempPath,
	}, nil
}

func (b *backend) InitiateUpload(_ context.Context, id uuid.UUID, contentType string) (storageBackends.StorageBackendState, error) {
	partsPath := filepath.Join(b.tempPath, id.String())
	err := os.MkdirAll(partsPath, 0o755)
	if err != nil {
		return nil, fmt.Errorf("creating parts directory: %w", err)
	}

	return tempState{
		id:          id.String(),
		partsPath:   partsPath,
		contentType: contentType,
	}.encode(), nil
}

func partFileName(partsPath string, partNumber int) string {
	return filepath.Join(partsPath, "part-"+strconv.Itoa(partNumber))
}

func (b *backend) WritePart(_ context.Context, state storageBackends.StorageBackendState, partNumber int, reader io.Reader) (int64, error) {
	decodedState, err := decodeState(state)
	if err != nil {
		return 0, fmt.Errorf("decoding state: %w", err)
	}

	_, err = os.Stat(decodedState.partsPath)
	if os.IsNotExist(err) {
		return 0, storageBackends.ErrUploadNotInitiated
	}

	// staged next to the final part file so the rename stays on one filesystem
	stagingFile, err := os.CreateTemp(decodedState.partsPath, "staging-*")
	if err != nil {
		return 0, fmt.Errorf("creating staging file: %w", err)
	}
	defer utils.IgnoreError(func() error {
		return os.Remove(stagingFile.Name())
	})

	written, err := io.Copy(stagingFile, reader)
	if err != nil {
		utils.IgnoreError(stagingFile.Close)
		return 0, fmt.Errorf("writing part to staging file: %w", err)
	}

	err = stagingFile.Close()
	if err != nil {
		return 0, fmt.Errorf("closing staging file: %w", err)
	}

	err = os.Rename(stagingFile.Name(), partFileName(decodedState.partsPath, partNumber))
	if err != nil {
		return 0, fmt.Errorf("renaming staging file: %w", err)
	}

	return written, nil
}

func (b *backend) CompleteUpload(_ context.Context, state storageBackends.StorageBackendState, objectPath string, partNumbers []int) error {
	decodedState, err := decodeState(state)
	if err != nil {
		return fmt.Errorf("decoding state: %w", err)
	}

	dataPath, err := b.objectFileName(objectPath)
	if err != nil {
		return err
	}

	assembledFile, err := os.CreateTemp(decodedState.partsPath, "assembled-*")
	if err != nil {
		return fmt.Errorf("creating assembled file: %w", err)
	}
	defer utils.IgnoreError(func() error {
		return os.Remove(assembledFile.Name())
	})

	for _, partNumber := range partNumbers {
		err = appendPart(assembledFile, partFileName(decodedState.partsPath, partNumber))
		if err != nil {
			utils.IgnoreError(assembledFile.Close)
			return fmt.Errorf("appending part %d: %w", partNumber, err)
		}
	}

	err = assembledFile.Close()
	if err != nil {
		return fmt.Errorf("closing assembled file: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(dataPath), 0o755)
	if err != nil {
		return fmt.Errorf("creating object directory: %w", err)
	}

	// written first so a visible object always has its content type
	err = os.WriteFile(dataPath+".info", []byte(decodedState.contentType), 0o644)
	if err != nil {
		return fmt.Errorf("writing info file: %w", err)
	}

	err = os.Rename(assembledFile.Name(), dataPath)
	if err != nil {
		return fmt.Errorf("renaming assembled file: %w", err)
	}

	err = os.RemoveAll(decodedState.partsPath)
	if err != nil {
		return fmt.Errorf("removing parts directory: %w", err)
	}

	return nil
}

func appendPart(dst io.Writer, partFile string) error {
	src, err := os.Open(partFile)
	if os.IsNotExist(err) {
		return storageBackends.ErrPartNotFound
	}
	if err != nil {
		return fmt.Errorf("opening part file: %w", err)
	}
	defer utils.IgnoreError(src.Close)

	_, err = io.Copy(dst, src)
	return err
}

func (b *backend) AbortUpload(_ context.Context, state storageBackends.StorageBackendState) error {
	decodedState, err := decodeState(state)
	if err != nil {
		return fmt.Errorf("decoding state: %w", err)
	}

	err = os.RemoveAll(decodedState.partsPath)
	if err != nil {
		return fmt.Errorf("removing parts directory: %w", err)
	}

	return nil
}

func (b *backend) DeleteObject(_ context.Context, objectPath string) error {
	dataPath, err := b.objectFileName(objectPath)
	if err != nil {
		return err
	}

	err = os.Remove(dataPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing data file: %w", err)
	}

	err = os.Remove(dataPath + ".info")
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing info file: %w", err)
	}

	return nil
}

func (b *backend) DownloadObject(_ context.Context, w http.ResponseWriter, objectPath string) error {
	dataPath, err := b.objectFileName(objectPath)
	if err != nil {
		return err
	}

	dataFile, err := os.Open(dataPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return storageBackends.ErrObjectNotFound

	case err != nil:
		return fmt.Errorf("opening data file: %w", err)
	}

	defer utils.PanicOnError(dataFile.Close, "closing data file")

	contentType, err := os.ReadFile(dataPath + ".info")
	if err != nil {
		return fmt.Errorf("reading info file: %w", err)
	}

	info, err := dataFile.Stat()
	if err != nil {
		return fmt.Errorf("reading data file info: %w", err)
	}

	w.Header().Set("Content-Type", string(contentType))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))

	_, err = io.Copy(w, dataFile)
	if err != nil {
		return fmt.Errorf("writing data to response writer: %w", err)
	}

	return nil
}

func (b *backend) objectFileName(objectPath string) (string, error) {
	cleaned, err := storageBackends.CleanObjectPath(objectPath)
	if err != nil {
		return "", err
	}

	return filepath.Join(b.path, filepath.FromSlash(cleaned)), nil
}
