package upload

import "fmt"

// Plan partitions totalBytes into consecutive parts of chunkSize bytes. The
// last part holds the remainder. A zero byte file yields exactly one empty
// part so that every upload has something to complete.
func Plan(totalBytes int64, chunkSize int64) ([]Part, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", chunkSize, ErrInvalidInput)
	}

	if totalBytes < 0 {
		return nil, fmt.Errorf("file size must not be negative, got %d: %w", totalBytes, ErrInvalidInput)
	}

	if totalBytes == 0 {
		return []Part{{Number: 1}}, nil
	}

	count := TotalChunks(totalBytes, chunkSize)
	parts := make([]Part, 0, count)

	for i := 0; i < count; i++ {
		start := int64(i) * chunkSize
		end := min(start+chunkSize, totalBytes)

		parts = append(parts, Part{
			Number: i + 1,
			Start:  start,
			End:    end,
			Size:   end - start,
		})
	}

	return parts, nil
}

// TotalChunks is ceil(totalBytes / chunkSize), with a minimum of one.
func TotalChunks(totalBytes int64, chunkSize int64) int {
	if totalBytes <= 0 || chunkSize <= 0 {
		return 1
	}

	return int((totalBytes + chunkSize - 1) / chunkSize)
}

// ValidateParts checks that parts cover [0, totalBytes) exactly once in
// ascending order, numbered from 1 without gaps.
func ValidateParts(parts []Part, totalBytes int64) error {
	if len(parts) == 0 {
		return fmt.Errorf("no parts: %w", ErrInvalidInput)
	}

	var offset int64
	for i, part := range parts {
		if part.Number != i+1 {
			return fmt.Errorf("part %d has number %d: %w", i+1, part.Number, ErrInvalidInput)
		}

		if part.Start != offset {
			return fmt.Errorf("part %d starts at %d, expected %d: %w", part.Number, part.Start, offset, ErrInvalidInput)
		}

		if part.End < part.Start || part.Size != part.End-part.Start {
			return fmt.Errorf("part %d has inconsistent range [%d, %d) of size %d: %w", part.Number, part.Start, part.End, part.Size, ErrInvalidInput)
		}

		offset = part.End
	}

	if offset != totalBytes {
		return fmt.Errorf("parts cover %d bytes, file has %d: %w", offset, totalBytes, ErrInvalidInput)
	}

	return nil
}
