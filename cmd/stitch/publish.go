package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ligustah/stitch/internal/progress"
	"github.com/ligustah/stitch/pkg/publish"
)

func (c *cli) newPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish [outputDir]",
		Short: "Upload a reconciled tree to a bucket",
		Long: `Upload every file below outputDir (default dist) to a bucket under
--prefix, then write <prefix>.stitch/manifest.json listing each object with
its size and SHA-256 checksum. The manifest is written only after all
uploads succeed.`,
		Args: argsWithCode(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.cfg.OutputDir
			if len(args) > 0 {
				dir = args[0]
			}

			info, err := os.Stat(dir)
			if err != nil {
				return withCode(ExitSourceNotAccess, err)
			}
			if !info.IsDir() {
				return withCode(ExitSourceNotAccess, fmt.Errorf("%s is not a directory", dir))
			}

			ctx := cmd.Context()
			bkt, err := openBucket(ctx, c.cfg.Bucket)
			if err != nil {
				return withCode(ExitStorageError, fmt.Errorf("open bucket: %w", err))
			}
			defer bkt.Close()

			opts := []publish.Option{
				publish.WithPrefix(c.cfg.Prefix),
				publish.WithWorkers(c.cfg.Workers),
				publish.WithMetadata(map[string]string{"source": dir}),
				publish.WithLogger(c.log),
			}

			if c.cfg.Progress {
				files, err := publish.ListFiles(dir)
				if err != nil {
					return withCode(ExitSourceNotAccess, err)
				}
				reporter := progress.NewReporter(progress.Options{
					TotalTasks:  len(files),
					Concurrency: c.cfg.Workers,
					Output:      c.stderr,
					Action:      "Publishing",
					Done:        "Published",
					Unit:        "files",
				})
				opts = append(opts, publish.WithObserver(reporter))
				reporter.Start()
				defer reporter.Stop()
			}

			m, err := publish.Publish(ctx, bkt, dir, opts...)
			if errors.Is(err, publish.ErrReservedKey) {
				return withCode(ExitInvalidArgs, err)
			}
			if err != nil {
				return withCode(ExitStorageError, err)
			}

			fmt.Fprintf(c.stdout, "Published %d files (%s) to %s\n",
				len(m.Objects), progress.FormatBytes(m.TotalSize), c.cfg.Bucket)
			fmt.Fprintf(c.stdout, "Manifest: %s\n", publish.ManifestKey(c.cfg.Prefix))
			return nil
		},
	}

	cmd.Flags().StringVar(&c.overrides.Bucket, "bucket", "", "Destination bucket URL or directory (default assets)")
	cmd.Flags().StringVar(&c.overrides.Prefix, "prefix", "", "Key prefix for published objects")
	cmd.Flags().IntVar(&c.overrides.Workers, "workers", 0, "Number of parallel uploads (default 8)")
	cmd.Flags().BoolVar(&c.overrides.Progress, "progress", false, "Show progress output")

	return cmd
}
