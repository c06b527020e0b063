package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"slices"
	"time"

	"go.uber.org/zap"
	"gocloud.dev/blob"
	"golang.org/x/sync/errgroup"
)

// ErrReservedKey is returned by Publish when the tree contains a file at the
// manifest's own key.
var ErrReservedKey = errors.New("publish: file uses the reserved manifest key")

// DefaultWorkers is the number of parallel uploads when WithWorkers is not
// given.
const DefaultWorkers = 8

// Observer receives per-file upload events. *progress.Reporter satisfies it.
type Observer interface {
	TaskStarted(key string)
	TaskCompleted(key string, size int64)
	TaskFailed(key string, err error)
}

// Options configures publish operations.
type Options struct {
	Prefix         string
	Workers        int
	Metadata       map[string]string
	VerifyChecksum bool // Validate re-reads objects and compares checksums
	Observer       Observer
	Logger         *zap.Logger
}

// Option is a functional option for configuring publish operations.
type Option func(*Options)

// WithPrefix sets the key prefix objects are stored under. Include a
// trailing slash to publish into a "directory".
func WithPrefix(prefix string) Option {
	return func(o *Options) {
		o.Prefix = prefix
	}
}

// WithWorkers sets the number of parallel uploads.
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithMetadata attaches caller-defined metadata to the manifest.
func WithMetadata(metadata map[string]string) Option {
	return func(o *Options) {
		o.Metadata = metadata
	}
}

// WithVerifyChecksum makes Validate download every object and compare its
// SHA-256 against the manifest.
func WithVerifyChecksum(verify bool) Option {
	return func(o *Options) {
		o.VerifyChecksum = verify
	}
}

// WithObserver reports upload progress to obs.
func WithObserver(obs Observer) Option {
	return func(o *Options) {
		o.Observer = obs
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = log
	}
}

func buildOptions(options []Option) Options {
	opts := Options{Workers: DefaultWorkers}
	for _, o := range options {
		o(&opts)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return opts
}

// ListFiles returns the slash-separated paths of all regular files below
// dir, relative to dir, in lexical order.
func ListFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("publish: list files: %w", err)
	}
	return files, nil
}

// Publish uploads every regular file below dir and writes the manifest.
//
// Uploads run in parallel up to the configured number of workers. The first
// failure cancels the remaining uploads and no manifest is written; objects
// uploaded before the failure are left in place.
func Publish(ctx context.Context, bucket *blob.Bucket, dir string, options ...Option) (*Manifest, error) {
	opts := buildOptions(options)
	log := opts.Logger.Named("publish")

	files, err := ListFiles(dir)
	if err != nil {
		return nil, err
	}
	if slices.Contains(files, ManifestName) {
		return nil, fmt.Errorf("%w: %s", ErrReservedKey, ManifestKey(opts.Prefix))
	}

	objects := make([]ObjectInfo, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i, rel := range files {
		g.Go(func() error {
			if opts.Observer != nil {
				opts.Observer.TaskStarted(rel)
			}

			info, err := upload(gctx, bucket, opts.Prefix, dir, rel)
			if err != nil {
				if opts.Observer != nil {
					opts.Observer.TaskFailed(rel, err)
				}
				return err
			}

			objects[i] = info
			log.Debug("uploaded", zap.String("key", opts.Prefix+rel), zap.Int64("size", info.Size))
			if opts.Observer != nil {
				opts.Observer.TaskCompleted(rel, info.Size)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := &Manifest{
		Objects:     objects,
		Metadata:    opts.Metadata,
		CompletedAt: time.Now().UTC(),
	}
	for _, o := range objects {
		m.TotalSize += o.Size
	}

	if err := writeManifest(ctx, bucket, opts.Prefix, m); err != nil {
		return nil, err
	}

	log.Info("published",
		zap.Int("objects", len(objects)),
		zap.Int64("bytes", m.TotalSize),
		zap.String("manifest", ManifestKey(opts.Prefix)),
	)
	return m, nil
}

// upload copies one file into the bucket, hashing it on the way.
func upload(ctx context.Context, bucket *blob.Bucket, prefix, dir, rel string) (ObjectInfo, error) {
	f, err := os.Open(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("publish: open %s: %w", rel, err)
	}
	defer f.Close()

	info := ObjectInfo{
		Key:         rel,
		ContentType: mime.TypeByExtension(path.Ext(rel)),
	}

	// Canceling wctx before Close discards the partial object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := bucket.NewWriter(wctx, prefix+rel, &blob.WriterOptions{ContentType: info.ContentType})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("publish: create object %s: %w", rel, err)
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, h), f)
	if err != nil {
		cancel()
		w.Close()
		return ObjectInfo{}, fmt.Errorf("publish: upload %s: %w", rel, err)
	}
	if err := w.Close(); err != nil {
		return ObjectInfo{}, fmt.Errorf("publish: upload %s: %w", rel, err)
	}

	info.Size = n
	info.Checksum = hex.EncodeToString(h.Sum(nil))
	return info, nil
}
