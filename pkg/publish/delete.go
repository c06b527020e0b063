package publish

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gocloud.dev/blob"
)

// Delete removes a published tree: every object listed in the manifest,
// then the manifest. Objects that are already gone are skipped.
//
// Returns an error if:
//   - The manifest doesn't exist (error wraps gcerrors.NotFound)
//   - The manifest JSON is malformed (encoding/json error)
//   - An object cannot be deleted (permission denied, network error)
//   - The context is cancelled (context.Canceled or context.DeadlineExceeded)
func Delete(ctx context.Context, bucket *blob.Bucket, options ...Option) error {
	opts := buildOptions(options)

	manifest, err := ReadManifest(ctx, bucket, opts.Prefix)
	if err != nil {
		return err
	}

	for _, obj := range manifest.Objects {
		key := opts.Prefix + obj.Key
		if err := bucket.Delete(ctx, key); err != nil && !IsNotExist(err) {
			return fmt.Errorf("publish: delete object %s: %w", key, err)
		}
	}

	// Manifest goes last so an interrupted delete can be retried.
	if err := bucket.Delete(ctx, ManifestKey(opts.Prefix)); err != nil {
		return fmt.Errorf("publish: delete manifest: %w", err)
	}

	opts.Logger.Named("publish").Info("deleted",
		zap.Int("objects", len(manifest.Objects)),
		zap.String("prefix", opts.Prefix),
	)
	return nil
}
