package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// ManifestName is the key of the manifest object relative to the prefix.
// The .stitch/ directory is reserved; published files never use it.
const ManifestName = ".stitch/manifest.json"

// Manifest describes a published tree.
type Manifest struct {
	TotalSize   int64             `json:"total_size"`
	Objects     []ObjectInfo      `json:"objects"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CompletedAt time.Time         `json:"completed_at"`
}

// ObjectInfo describes one published file. Key is relative to the prefix
// and always uses forward slashes.
type ObjectInfo struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
	ContentType string `json:"content_type,omitempty"`
}

// Keys returns the manifest's object keys in manifest order.
func (m *Manifest) Keys() []string {
	keys := make([]string, len(m.Objects))
	for i, o := range m.Objects {
		keys[i] = o.Key
	}
	return keys
}

// Lookup returns the entry for key.
func (m *Manifest) Lookup(key string) (ObjectInfo, bool) {
	i := slices.IndexFunc(m.Objects, func(o ObjectInfo) bool { return o.Key == key })
	if i < 0 {
		return ObjectInfo{}, false
	}
	return m.Objects[i], true
}

// ManifestKey returns the key of the manifest object for prefix.
func ManifestKey(prefix string) string {
	return prefix + ManifestName
}

// ReadManifest loads the manifest stored under prefix.
//
// Returns an error wrapping gcerrors.NotFound if nothing was published
// under prefix.
func ReadManifest(ctx context.Context, bucket *blob.Bucket, prefix string) (*Manifest, error) {
	data, err := bucket.ReadAll(ctx, ManifestKey(prefix))
	if err != nil {
		return nil, fmt.Errorf("publish: read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("publish: unmarshal manifest: %w", err)
	}
	return &m, nil
}

func writeManifest(ctx context.Context, bucket *blob.Bucket, prefix string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("publish: marshal manifest: %w", err)
	}
	opts := &blob.WriterOptions{ContentType: "application/json"}
	if err := bucket.WriteAll(ctx, ManifestKey(prefix), data, opts); err != nil {
		return fmt.Errorf("publish: write manifest: %w", err)
	}
	return nil
}

// IsNotExist returns true if the error indicates the object doesn't exist.
func IsNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
