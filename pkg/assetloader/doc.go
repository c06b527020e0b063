// Package assetloader schedules asset fetches with bounded concurrency.
//
// A [Loader] keeps at most N fetches in flight (default 4) and starts queued
// fetches in FIFO order as slots free up. Every URL maps to one shared
// [Pending] result: calling [Loader.Load] again for a URL that is queued,
// in flight or already resolved returns the same Pending without another
// network request.
//
// # Decoding
//
// Response bodies are classified by their Content-Type header:
//   - application/json: parsed into Body.JSON
//   - text/*, or a URL path ending in .txt, .md or .csv: Body.Text
//   - anything else: opaque bytes in Body.Data
//
// Body.Data always holds the raw bytes so a body can be persisted as is.
//
// # Failures
//
// A failed fetch (transport error, non-success status, undecodable JSON)
// rejects that URL's Pending and evicts it from the cache, so the next Load
// starts a fresh fetch. Failures never affect other queued or in-flight
// fetches. There is no retry policy; callers retry by calling Load again.
//
// # Fan-out
//
// [Loader.Preload] loads a list of URLs and waits for all of them, failing
// as soon as any one fails.
//
//	loader := assetloader.New(fetcher, assetloader.WithConcurrency(4))
//	defer loader.Close()
//
//	bodies, err := loader.Preload(ctx, []string{"/data/services.json", "/content/about.md"})
package assetloader
