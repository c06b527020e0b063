package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// openBucket opens target as a bucket URL, or as a local directory when it
// has no scheme. Local directories are created if missing.
func openBucket(ctx context.Context, target string) (*blob.Bucket, error) {
	if strings.Contains(target, "://") {
		return blob.OpenBucket(ctx, target)
	}

	dir, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolve bucket directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket directory: %w", err)
	}
	return fileblob.OpenBucket(dir, nil)
}
