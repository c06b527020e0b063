package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"gocloud.dev/blob"
)

// ValidationResult contains the results of validating a published tree.
type ValidationResult struct {
	Valid              bool     // true if all objects exist and match the manifest
	TotalSize          int64    // total size from manifest
	ObjectCount        int      // number of objects in manifest
	MissingObjects     int      // number of objects that don't exist
	SizeMismatches     int      // number of objects with wrong size
	ChecksumMismatches int      // only counted with WithVerifyChecksum
	Errors             []string // detailed error messages
}

// Validate checks that every object listed in the manifest under prefix
// exists with the recorded size. With WithVerifyChecksum it also downloads
// each object and compares its SHA-256.
//
// Returns an error if:
//   - The manifest doesn't exist (error wraps gcerrors.NotFound)
//   - The manifest JSON is malformed (encoding/json error)
//   - Cannot access object store to check attributes (network/permission error)
//   - The context is cancelled (context.Canceled or context.DeadlineExceeded)
//
// Missing objects and mismatches are NOT returned as errors. They are
// reported in the ValidationResult with Valid=false.
func Validate(ctx context.Context, bucket *blob.Bucket, options ...Option) (*ValidationResult, error) {
	opts := buildOptions(options)

	manifest, err := ReadManifest(ctx, bucket, opts.Prefix)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{
		Valid:       true,
		TotalSize:   manifest.TotalSize,
		ObjectCount: len(manifest.Objects),
		Errors:      make([]string, 0),
	}

	for _, obj := range manifest.Objects {
		key := opts.Prefix + obj.Key

		attrs, err := bucket.Attributes(ctx, key)
		if err != nil {
			if IsNotExist(err) {
				result.Valid = false
				result.MissingObjects++
				result.Errors = append(result.Errors, fmt.Sprintf("object missing: %s", key))
				continue
			}
			return nil, fmt.Errorf("publish: check object %s: %w", key, err)
		}

		if attrs.Size != obj.Size {
			result.Valid = false
			result.SizeMismatches++
			result.Errors = append(result.Errors,
				fmt.Sprintf("object %s size mismatch: expected %d, got %d", key, obj.Size, attrs.Size))
			continue
		}

		if !opts.VerifyChecksum || obj.Checksum == "" {
			continue
		}
		sum, err := checksum(ctx, bucket, key)
		if err != nil {
			return nil, err
		}
		if sum != obj.Checksum {
			result.Valid = false
			result.ChecksumMismatches++
			result.Errors = append(result.Errors,
				fmt.Sprintf("object %s checksum mismatch: expected %s, got %s", key, obj.Checksum, sum))
		}
	}

	return result, nil
}

func checksum(ctx context.Context, bucket *blob.Bucket, key string) (string, error) {
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return "", fmt.Errorf("publish: open object %s: %w", key, err)
	}
	defer r.Close()

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("publish: read object %s: %w", key, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
