// Package gateways holds helpers shared by the object store upload gateways.
package gateways

import (
	"fmt"
	"net/url"
	"path"

	"github.com/the127/chunkyard/internal/upload"
)

const (
	keyField      = "key"
	uploadIdField = "uploadId"
)

// ObjectKey is where a file ends up in the bucket.
func ObjectKey(prefix string, request upload.InitiateRequest) string {
	return prefix + path.Join(request.TaskID, string(request.FileRole), path.Base(request.Filename))
}

// EncodeUploadID packs the object key with the store's multipart id so every
// later call can be made from the upload id alone.
func EncodeUploadID(key string, multipartId string) string {
	return url.Values{
		keyField:      []string{key},
		uploadIdField: []string{multipartId},
	}.Encode()
}

func DecodeUploadID(uploadID string) (string, string, error) {
	values, err := url.ParseQuery(uploadID)
	if err != nil {
		return "", "", fmt.Errorf("malformed upload id %q: %w", uploadID, err)
	}

	key := values.Get(keyField)
	multipartId := values.Get(uploadIdField)
	if key == "" || multipartId == "" {
		return "", "", fmt.Errorf("upload id %q lacks key or multipart id", uploadID)
	}

	return key, multipartId, nil
}

func Reference(bucket string, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}
