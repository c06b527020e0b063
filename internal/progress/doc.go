// Package progress provides progress reporting for asset fetches and
// uploads.
//
// The reporter prints human-readable status lines to stderr: how many
// tasks have finished, how many are in flight or pending, bytes
// transferred and throughput. Labels default to fetch wording and can be
// changed with Options.Action, Options.Done and Options.Unit.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    TotalTasks:  len(urls),
//	    Concurrency: 4,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	// The asset loader calls these as tasks move through the queue.
//	reporter.TaskStarted(url)
//	reporter.TaskCompleted(url, size)
//
// # Output Format
//
//	[stitch] Fetching 12 assets | Concurrency: 4
//	[stitch] Progress: 58.3% | 7 / 12 assets | 1.2 MiB | Speed: 310 KiB/s
//	[stitch] Tasks: 7 completed | 4 in-flight | 1 failed | 0 pending
package progress
