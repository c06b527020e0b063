package main

import (
	"github.com/spf13/cobra"

	"github.com/ligustah/stitch/pkg/reconcile"
)

func (c *cli) newReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile [inputDir] [outputDir]",
		Short: "Merge name.partN.ext files into whole files",
		Long: `Merge files split into numbered parts back into whole files.

Every file below inputDir is grouped by its name with the .partN suffix
removed. Parts are joined in ascending N with a newline between parts and
written to the same relative path below outputDir. Files without a part
suffix are copied through. Gaps and duplicates in a sequence are reported
as warnings.

inputDir defaults to ai_files and outputDir to dist.`,
		Args: argsWithCode(cobra.MaximumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := reconcile.Options{
				InputDir:  c.cfg.InputDir,
				OutputDir: c.cfg.OutputDir,
				Logger:    c.log,
			}
			if len(args) > 0 {
				opts.InputDir = args[0]
			}
			if len(args) > 1 {
				opts.OutputDir = args[1]
			}

			_, err := reconcile.Run(cmd.Context(), opts)
			return withCode(ExitGeneralError, err)
		},
	}

	return cmd
}
