package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gocloud.dev/blob"

	stitchhttp "github.com/ligustah/stitch/internal/http"
	"github.com/ligustah/stitch/internal/progress"
	"github.com/ligustah/stitch/pkg/assetloader"
)

func (c *cli) newFetchCmd() *cobra.Command {
	var (
		listFile    string
		maxBodySize string
		strict      bool
	)

	cmd := &cobra.Command{
		Use:   "fetch [url...]",
		Short: "Fetch assets with bounded concurrency and store them in a bucket",
		Long: `Fetch assets over HTTP with at most --concurrency requests in flight and
store each body in a bucket under <host>/<path>. A query string is hashed
into the file name, so /a.json?v=1 is stored as <host>/a-<hash>.json.

URLs come from the arguments and from --list, a file holding a JSON array,
a JSON string or whitespace-separated URLs ("-" reads stdin). Each URL is
fetched once. Two URLs that map to the same key are rejected before
anything is fetched.

By default every successful asset is stored and failures are reported.
With --strict nothing is stored unless all assets load.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := args
			if listFile != "" {
				list, err := readList(listFile)
				if err != nil {
					return withCode(ExitInvalidArgs, err)
				}
				urls = append(urls, assetloader.ParseURLList(list)...)
			}
			if len(urls) == 0 {
				return withCode(ExitInvalidArgs, errors.New("no URLs given"))
			}
			if maxBodySize != "" {
				n, err := progress.ParseBytes(maxBodySize)
				if err != nil {
					return withCode(ExitInvalidArgs, err)
				}
				c.cfg.MaxBodySize = n
			}
			urls = dedupe(urls)
			keys, err := assetKeys(urls)
			if err != nil {
				return withCode(ExitInvalidArgs, err)
			}
			return c.fetch(cmd.Context(), urls, keys, strict)
		},
	}

	cmd.Flags().StringVar(&listFile, "list", "", "File with URLs to fetch (\"-\" for stdin)")
	cmd.Flags().StringVar(&c.overrides.Bucket, "bucket", "", "Destination bucket URL or directory (default assets)")
	cmd.Flags().IntVar(&c.overrides.Concurrency, "concurrency", 0, "Maximum requests in flight (default 4)")
	cmd.Flags().StringVar(&maxBodySize, "max-body-size", "", "Fail assets larger than this, e.g. 10MiB")
	cmd.Flags().DurationVar(&c.overrides.Timeout, "timeout", 0, "Per-request timeout (default 30s)")
	cmd.Flags().IntVar(&c.overrides.Retry.Attempts, "retry-attempts", 0, "Retries for server errors")
	cmd.Flags().BoolVar(&c.overrides.Progress, "progress", false, "Show progress output")
	cmd.Flags().BoolVar(&strict, "strict", false, "Store nothing unless every asset loads")

	return cmd
}

func (c *cli) fetch(ctx context.Context, urls []string, keys map[string]string, strict bool) error {
	bkt, err := openBucket(ctx, c.cfg.Bucket)
	if err != nil {
		return withCode(ExitStorageError, fmt.Errorf("open bucket: %w", err))
	}
	defer bkt.Close()

	client := stitchhttp.NewClient(stitchhttp.Options{
		Timeout:         c.cfg.Timeout,
		RetryAttempts:   c.cfg.Retry.Attempts,
		RetryBackoff:    c.cfg.Retry.Backoff,
		RetryMaxBackoff: c.cfg.Retry.MaxBackoff,
		UserAgent:       "stitch",
	})
	fetcher := assetloader.FetcherFunc(func(ctx context.Context, u string) (*assetloader.Response, error) {
		resp, err := client.Get(ctx, u)
		if err != nil {
			return nil, err
		}
		return &assetloader.Response{Body: resp.Body, ContentType: resp.ContentType}, nil
	})

	opts := []assetloader.Option{
		assetloader.WithConcurrency(c.cfg.Concurrency),
		assetloader.WithMaxBodySize(c.cfg.MaxBodySize),
		assetloader.WithLogger(c.log),
	}

	var reporter *progress.Reporter
	if c.cfg.Progress {
		reporter = progress.NewReporter(progress.Options{
			TotalTasks:  len(urls),
			Concurrency: c.cfg.Concurrency,
			Output:      c.stderr,
		})
		opts = append(opts, assetloader.WithObserver(reporter))
	}

	loader := assetloader.New(fetcher, opts...)
	defer loader.Close()

	if reporter != nil {
		reporter.Start()
	}

	var (
		stored int
		failed []error
	)
	if strict {
		bodies, err := loader.Preload(ctx, urls)
		stopReporter(reporter)
		if err != nil {
			return withCode(ExitSourceNotAccess, err)
		}
		for _, body := range bodies {
			if err := c.store(ctx, bkt, keys[body.URL], body); err != nil {
				return withCode(ExitStorageError, err)
			}
			stored++
		}
	} else {
		pending := make([]*assetloader.Pending, len(urls))
		for i, u := range urls {
			pending[i] = loader.Load(u)
		}
		for _, p := range pending {
			body, err := p.Wait(ctx)
			if err != nil {
				if ctx.Err() != nil {
					stopReporter(reporter)
					return ctx.Err()
				}
				failed = append(failed, err)
				continue
			}
			if err := c.store(ctx, bkt, keys[body.URL], body); err != nil {
				stopReporter(reporter)
				return withCode(ExitStorageError, err)
			}
			stored++
		}
		stopReporter(reporter)
	}

	fmt.Fprintf(c.stdout, "Fetched %d / %d assets into %s\n", stored, len(urls), c.cfg.Bucket)

	if len(failed) > 0 {
		return withCode(ExitSourceNotAccess,
			fmt.Errorf("%d of %d assets failed: %w", len(failed), len(urls), errors.Join(failed...)))
	}
	return nil
}

func stopReporter(r *progress.Reporter) {
	if r != nil {
		r.Stop()
	}
}

// store writes a fetched body to the bucket under key.
func (c *cli) store(ctx context.Context, bkt *blob.Bucket, key string, body *assetloader.Body) error {
	opts := &blob.WriterOptions{ContentType: body.ContentType}
	if err := bkt.WriteAll(ctx, key, body.Data, opts); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}

	c.log.Debug("stored asset",
		zap.String("url", body.URL),
		zap.String("key", key),
		zap.String("kind", body.Kind.String()),
		zap.String("size", progress.FormatBytes(body.Size())),
	)
	return nil
}

// assetKey maps an asset URL to a bucket key: host followed by the path.
// Paths ending in a slash are stored as index.html in that directory.
func assetKey(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid asset URL %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid asset URL %q: missing host", rawURL)
	}

	p := u.Path
	if p == "" || strings.HasSuffix(p, "/") {
		p += "index.html"
	}
	key := path.Clean(u.Host + "/" + strings.TrimPrefix(p, "/"))
	if key == ".." || strings.HasPrefix(key, "../") {
		return "", fmt.Errorf("invalid asset URL %q: path escapes host", rawURL)
	}
	if u.RawQuery != "" {
		sum := sha256.Sum256([]byte(u.RawQuery))
		ext := path.Ext(key)
		key = strings.TrimSuffix(key, ext) + "-" + hex.EncodeToString(sum[:4]) + ext
	}
	return key, nil
}

// assetKeys maps every URL to its asset key. Distinct URLs sharing a key
// are an error, since storing both would silently keep only the last.
func assetKeys(urls []string) (map[string]string, error) {
	keys := make(map[string]string, len(urls))
	owners := make(map[string]string, len(urls))
	for _, u := range urls {
		key, err := assetKey(u)
		if err != nil {
			return nil, err
		}
		if prev, ok := owners[key]; ok {
			return nil, fmt.Errorf("%q and %q both map to key %s", prev, u, key)
		}
		owners[key] = u
		keys[u] = key
	}
	return keys, nil
}

// readList reads a URL list from a file, or stdin for "-".
func readList(name string) (string, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("read URL list: %w", err)
	}
	return string(data), nil
}

// dedupe drops repeated URLs, keeping first occurrences in order.
func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := urls[:0:0]
	for _, u := range urls {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}
