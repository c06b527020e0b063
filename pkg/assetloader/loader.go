package assetloader

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the in-flight limit used when none is configured.
const DefaultConcurrency = 4

var (
	// ErrClosed is returned for loads issued or still queued when the
	// loader is closed.
	ErrClosed = errors.New("assetloader: loader is closed")

	// ErrBodyTooLarge is returned when a body exceeds the configured
	// maximum size.
	ErrBodyTooLarge = errors.New("assetloader: body exceeds maximum size")

	// ErrDecode is returned when a JSON body cannot be parsed.
	ErrDecode = errors.New("assetloader: cannot decode body")
)

// Response is what a Fetcher returns for a successful request. The loader
// closes Body.
type Response struct {
	Body        io.ReadCloser
	ContentType string
}

// Fetcher performs a single network fetch. It must return an error for
// transport failures and non-success statuses.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) (*Response, error)

// Fetch calls f(ctx, url).
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Response, error) {
	return f(ctx, url)
}

// Observer is notified as fetches move through the loader.
type Observer interface {
	TaskStarted(url string)
	TaskCompleted(url string, size int64)
	TaskFailed(url string, err error)
}

// Options configures a Loader.
type Options struct {
	Concurrency int
	MaxBodySize int64 // 0 means unlimited
	Observer    Observer
	Logger      *zap.Logger
}

// Option is a functional option for configuring a Loader.
type Option func(*Options)

// WithConcurrency sets the maximum number of in-flight fetches.
// Values <= 0 select DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		o.Concurrency = n
	}
}

// WithMaxBodySize limits the size of a single body. Larger bodies fail with
// ErrBodyTooLarge.
func WithMaxBodySize(n int64) Option {
	return func(o *Options) {
		o.MaxBodySize = n
	}
}

// WithObserver registers an observer for task progress.
func WithObserver(obs Observer) Option {
	return func(o *Options) {
		o.Observer = obs
	}
}

// WithLogger sets the logger. The default discards all output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Stats is a snapshot of the loader's queue.
type Stats struct {
	InFlight int
	Queued   int
	Cached   int
}

type task struct {
	url     string
	pending *Pending
}

// Loader fetches assets with bounded concurrency and caches the results
// by URL.
type Loader struct {
	fetcher Fetcher
	opts    Options
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	cache  map[string]*Pending
	queue  []*task
	active int
	closed bool
}

// New creates a Loader that fetches through fetcher.
func New(fetcher Fetcher, options ...Option) *Loader {
	opts := Options{
		Concurrency: DefaultConcurrency,
	}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Loader{
		fetcher: fetcher,
		opts:    opts,
		log:     opts.Logger.Named("assetloader"),
		ctx:     ctx,
		cancel:  cancel,
		cache:   make(map[string]*Pending),
	}
}

// Load returns the shared result for url, enqueueing a fetch if the URL is
// not cached.
func (l *Loader) Load(url string) *Pending {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		p := newPending()
		p.resolve(nil, ErrClosed)
		return p
	}

	if p, ok := l.cache[url]; ok {
		return p
	}

	p := newPending()
	l.cache[url] = p
	l.queue = append(l.queue, &task{url: url, pending: p})
	l.log.Debug("asset queued", zap.String("url", url), zap.Int("queued", len(l.queue)))
	l.next()

	return p
}

// Preload loads every URL and waits for all of them. Bodies are returned in
// the order of urls. If any load fails, Preload returns the first failure;
// the other loads keep running and stay cached.
func (l *Loader) Preload(ctx context.Context, urls []string) ([]*Body, error) {
	pendings := make([]*Pending, len(urls))
	for i, u := range urls {
		pendings[i] = l.Load(u)
	}

	bodies := make([]*Body, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range pendings {
		g.Go(func() error {
			body, err := p.Wait(gctx)
			if err != nil {
				return err
			}
			bodies[i] = body
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, goerr.Wrap(err, "preload failed", goerr.V("urls", len(urls)))
	}
	return bodies, nil
}

// ClearCache forgets every cached result. Queued and in-flight fetches are
// not cancelled and still resolve the Pending values already handed out.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cache = make(map[string]*Pending)
}

// Stats returns a snapshot of in-flight, queued and cached counts.
func (l *Loader) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		InFlight: l.active,
		Queued:   len(l.queue),
		Cached:   len(l.cache),
	}
}

// Close cancels in-flight fetches, rejects queued ones with ErrClosed and
// waits for all fetch goroutines to exit. Loads issued after Close fail
// with ErrClosed.
func (l *Loader) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	queued := l.queue
	l.queue = nil
	for _, t := range queued {
		if l.cache[t.url] == t.pending {
			delete(l.cache, t.url)
		}
	}
	l.mu.Unlock()

	l.cancel()
	for _, t := range queued {
		t.pending.resolve(nil, ErrClosed)
	}
	l.wg.Wait()

	return nil
}

// next starts queued tasks while slots are free. Must be called with l.mu
// held.
func (l *Loader) next() {
	for l.active < l.opts.Concurrency && len(l.queue) > 0 {
		t := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.active++
		l.wg.Add(1)
		go l.run(t)
	}
}

// run fetches one task and releases its slot.
func (l *Loader) run(t *task) {
	defer l.wg.Done()

	if l.opts.Observer != nil {
		l.opts.Observer.TaskStarted(t.url)
	}

	body, err := l.fetch(t.url)

	l.mu.Lock()
	l.active--
	if err != nil && l.cache[t.url] == t.pending {
		delete(l.cache, t.url)
	}
	l.next()
	l.mu.Unlock()

	if err != nil {
		l.log.Warn("asset fetch failed", zap.String("url", t.url), zap.Error(err))
		if l.opts.Observer != nil {
			l.opts.Observer.TaskFailed(t.url, err)
		}
	} else {
		l.log.Debug("asset loaded",
			zap.String("url", t.url),
			zap.Stringer("kind", body.Kind),
			zap.Int64("size", body.Size()),
		)
		if l.opts.Observer != nil {
			l.opts.Observer.TaskCompleted(t.url, body.Size())
		}
	}

	t.pending.resolve(body, err)
}

// fetch performs the network request and decodes the body.
func (l *Loader) fetch(url string) (*Body, error) {
	resp, err := l.fetcher.Fetch(l.ctx, url)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch asset", goerr.V("url", url))
	}
	defer resp.Body.Close()

	var r io.Reader = resp.Body
	if l.opts.MaxBodySize > 0 {
		r = io.LimitReader(resp.Body, l.opts.MaxBodySize+1)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read asset body", goerr.V("url", url))
	}
	if l.opts.MaxBodySize > 0 && int64(len(raw)) > l.opts.MaxBodySize {
		return nil, goerr.Wrap(ErrBodyTooLarge, "asset too large",
			goerr.V("url", url),
			goerr.V("max_size", l.opts.MaxBodySize),
		)
	}

	return decode(url, resp.ContentType, raw)
}
