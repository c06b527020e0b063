package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ligustah/stitch/internal/progress"
	"github.com/ligustah/stitch/pkg/publish"
)

// errInvalid is returned when a published tree does not match its manifest.
// The details have already been printed.
var errInvalid = errors.New("published tree does not match manifest")

func (c *cli) newVerifyCmd() *cobra.Command {
	var checksums bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a published tree against its manifest",
		Long: `Check that every object listed in <prefix>.stitch/manifest.json exists
with the recorded size. Only object metadata is read unless --checksum is
given.`,
		Args: argsWithCode(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			bkt, err := openBucket(ctx, c.cfg.Bucket)
			if err != nil {
				return withCode(ExitStorageError, fmt.Errorf("open bucket: %w", err))
			}
			defer bkt.Close()

			result, err := publish.Validate(ctx, bkt,
				publish.WithPrefix(c.cfg.Prefix),
				publish.WithVerifyChecksum(checksums),
			)
			if err != nil {
				return withCode(ExitStorageError, err)
			}

			out := c.stdout
			fmt.Fprintf(out, "Manifest: %s\n", publish.ManifestKey(c.cfg.Prefix))
			fmt.Fprintf(out, "Total size: %s\n", progress.FormatBytes(result.TotalSize))
			fmt.Fprintf(out, "Objects: %d\n", result.ObjectCount)

			if result.Valid {
				fmt.Fprintln(out, "Status: VALID")
				return nil
			}

			fmt.Fprintln(out, "Status: INVALID")
			fmt.Fprintf(out, "Missing objects: %d\n", result.MissingObjects)
			fmt.Fprintf(out, "Size mismatches: %d\n", result.SizeMismatches)
			if checksums {
				fmt.Fprintf(out, "Checksum mismatches: %d\n", result.ChecksumMismatches)
			}

			if len(result.Errors) > 0 {
				fmt.Fprintln(out, "\nErrors:")
				for _, e := range result.Errors {
					fmt.Fprintf(out, "  - %s\n", e)
				}
			}

			return withCode(ExitValidationFailed, errInvalid)
		},
	}

	cmd.Flags().StringVar(&c.overrides.Bucket, "bucket", "", "Bucket URL or directory (default assets)")
	cmd.Flags().StringVar(&c.overrides.Prefix, "prefix", "", "Key prefix the tree was published under")
	cmd.Flags().BoolVar(&checksums, "checksum", false, "Download objects and verify SHA-256 checksums")

	return cmd
}
