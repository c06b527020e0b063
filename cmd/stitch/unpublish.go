package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ligustah/stitch/pkg/publish"
)

func (c *cli) newUnpublishCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "unpublish",
		Short: "Remove a published tree and its manifest",
		Args:  argsWithCode(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				return withCode(ExitInvalidArgs, fmt.Errorf("refusing to delete %s without --force",
					publish.ManifestKey(c.cfg.Prefix)))
			}

			ctx := cmd.Context()
			bkt, err := openBucket(ctx, c.cfg.Bucket)
			if err != nil {
				return withCode(ExitStorageError, fmt.Errorf("open bucket: %w", err))
			}
			defer bkt.Close()

			if err := publish.Delete(ctx, bkt, publish.WithPrefix(c.cfg.Prefix), publish.WithLogger(c.log)); err != nil {
				return withCode(ExitStorageError, err)
			}
			fmt.Fprintf(c.stdout, "Deleted %s\n", publish.ManifestKey(c.cfg.Prefix))
			return nil
		},
	}

	cmd.Flags().StringVar(&c.overrides.Bucket, "bucket", "", "Bucket URL or directory (default assets)")
	cmd.Flags().StringVar(&c.overrides.Prefix, "prefix", "", "Key prefix the tree was published under")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Confirm deletion")

	return cmd
}
