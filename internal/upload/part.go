package upload

import (
	"fmt"
	"sort"
)

type FileRole string

const (
	FileRolePrimary   FileRole = "primary"
	FileRoleAuxiliary FileRole = "auxiliary"
)

func ParseFileRole(s string) (FileRole, error) {
	switch FileRole(s) {
	case FileRolePrimary, FileRoleAuxiliary:
		return FileRole(s), nil

	default:
		return "", fmt.Errorf("unsupported file role %q: %w", s, ErrInvalidInput)
	}
}

// Part is one contiguous byte range [Start, End) of the source file.
type Part struct {
	Number int   `json:"part_number"`
	Start  int64 `json:"start_byte"`
	End    int64 `json:"end_byte"`
	Size   int64 `json:"size"`

	// ServerHandle is an optional destination reference handed out by the
	// server, e.g. a pre-signed url for this part.
	ServerHandle string `json:"upload_url,omitempty"`
}

// Receipt is the server's proof that a part has been accepted.
type Receipt struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag"`
	Size       int64  `json:"size,omitempty"`
}

func sortReceipts(receipts []Receipt) {
	sort.Slice(receipts, func(i, j int) bool {
		return receipts[i].PartNumber < receipts[j].PartNumber
	})
}
