package inmemory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/the127/chunkyard/internal/storageBackends"
)

type objectInfo struct {
	contentType string
	data        []byte
}

type backend struct {
	objects   map[string]objectInfo
	temp      map[string]*tempUpload
	objectsMu *sync.RWMutex
	tempMu    *sync.RWMutex
}

type tempUpload struct {
	mu    sync.Mutex
	parts map[int][]byte
}

func New() storageBackends.StorageBackend {
	return &backend{
		objects:   make(map[string]objectInfo),
		temp:      make(map[string]*tempUpload),
		objectsMu: &sync.RWMutex{},
		tempMu:    &sync.RWMutex{},
	}
}

type tempState struct {
	id          string
	contentType string
}

func (t tempState) encode() storageBackends.StorageBackendState {
	return storageBackends.StorageBackendState{
		"id":          t.id,
		"contentType": t.contentType,
	}
}

func decodeTempState(state storageBackends.StorageBackendState) (tempState, error) {
	id, ok := state["id"]
	if !ok {
		return tempState{}, fmt.Errorf("missing id in state")
	}

	contentType, ok := state["contentType"]
	if !ok {
		return tempState{}, fmt.Errorf("missing contentType in state")
	}

	return tempState{
		id:          id,
		contentType: contentType,
	}, nil
}

func (b *backend) InitiateUpload(_ context.Context, id uuid.UUID, contentType string) (storageBackends.StorageBackendState, error) {
	b.setTemp(id.String(), &tempUpload{
		parts: make(map[int][]byte),
	})

	return tempState{
		id:          id.String(),
		contentType: contentType,
	}.encode(), nil
}

func (b *backend) WritePart(_ context.Context, state storageBackends.StorageBackendState, partNumber int, reader io.Reader) (int64, error) {
	decodedState, err := decodeTempState(state)
	if err != nil {
		return 0, fmt.Errorf("decoding state: %w", err)
	}

	tempData := b.getTemp(decodedState.id)
	if tempData == nil {
		return 0, storageBackends.ErrUploadNotInitiated
	}

	buffer := &bytes.Buffer{}
	written, err := io.Copy(buffer, reader)
	if err != nil {
		return 0, fmt.Errorf("copying part to buffer: %w", err)
	}

	tempData.mu.Lock()
	tempData.parts[partNumber] = buffer.Bytes()
	tempData.mu.Unlock()

	return written, nil
}

func (b *backend) CompleteUpload(_ context.Context, state storageBackends.StorageBackendState, objectPath string, partNumbers []int) error {
	decodedState, err := decodeTempState(state)
	if err != nil {
		return fmt.Errorf("decoding state: %w", err)
	}

	objectPath, err = storageBackends.CleanObjectPath(objectPath)
	if err != nil {
		return err
	}

	tempData := b.getTemp(decodedState.id)
	if tempData == nil {
		return storageBackends.ErrUploadNotInitiated
	}

	tempData.mu.Lock()
	var data []byte
	for _, partNumber := range partNumbers {
		part, ok := tempData.parts[partNumber]
		if !ok {
			tempData.mu.Unlock()
			return fmt.Errorf("%w: %s", storageBackends.ErrPartNotFound, strconv.Itoa(partNumber))
		}
		data = append(data, part...)
	}
	tempData.mu.Unlock()

	b.setObject(objectPath, &objectInfo{
		contentType: decodedState.contentType,
		data:        data,
	})
	b.setTemp(decodedState.id, nil)

	return nil
}

func (b *backend) AbortUpload(_ context.Context, state storageBackends.StorageBackendState) error {
	decodedState, err := decodeTempState(state)
	if err != nil {
		return fmt.Errorf("decoding state: %w", err)
	}

	b.setTemp(decodedState.id, nil)

	return nil
}

func (b *backend) DeleteObject(_ context.Context, objectPath string) error {
	objectPath, err := storageBackends.CleanObjectPath(objectPath)
	if err != nil {
		return err
	}

	b.setObject(objectPath, nil)
	return nil
}

func (b *backend) DownloadObject(_ context.Context, w http.ResponseWriter, objectPath string) error {
	objectPath, err := storageBackends.CleanObjectPath(objectPath)
	if err != nil {
		return err
	}

	object := b.getObject(objectPath)
	if object == nil {
		return storageBackends.ErrObjectNotFound
	}

	w.Header().Set("Content-Type", object.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(object.data)))

	_, err = w.Write(object.data)
	if err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}

	return nil
}

func (b *backend) setObject(objectPath string, object *objectInfo) {
	b.objectsMu.Lock()
	defer b.objectsMu.Unlock()

	if object == nil {
		delete(b.objects, objectPath)
	} else {
		b.objects[objectPath] = *object
	}
}

func (b *backend) getObject(objectPath string) *objectInfo {
	b.objectsMu.RLock()
	defer b.objectsMu.RUnlock()

	data, ok := b.objects[objectPath]
	if !ok {
		return nil
	}
	return &data
}

func (b *backend) setTemp(id string, upload *tempUpload) {
	b.tempMu.Lock()
	defer b.tempMu.Unlock()

	if upload == nil {
		delete(b.temp, id)
	} else {
		b.temp[id] = upload
	}
}

func (b *backend) getTemp(id string) *tempUpload {
	b.tempMu.RLock()
	defer b.tempMu.RUnlock()

	return b.temp[id]
}
