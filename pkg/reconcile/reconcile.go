package reconcile

import (
	"context"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"go.uber.org/zap"
)

const (
	// DefaultInputDir is the input directory used when none is given.
	DefaultInputDir = "ai_files"
	// DefaultOutputDir is the output directory used when none is given.
	DefaultOutputDir = "dist"
)

// Options configures a reconciliation run.
type Options struct {
	InputDir  string
	OutputDir string

	// Logger receives warnings and progress. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Result describes a completed run.
type Result struct {
	// Outputs lists the written files relative to the output directory, in
	// the order they were written.
	Outputs []string

	// Bytes is the total number of bytes written.
	Bytes int64

	Warnings []Warning
}

// Run reconciles opts.InputDir into opts.OutputDir.
//
// Directory checks happen before anything is written. An input directory
// with no files is not an error: Run returns a result holding a single
// WarnNoFiles warning and does not create the output directory.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.InputDir == "" {
		opts.InputDir = DefaultInputDir
	}
	if opts.OutputDir == "" {
		opts.OutputDir = DefaultOutputDir
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	inputDir, err := filepath.Abs(opts.InputDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve input directory", goerr.V("input", opts.InputDir))
	}
	outputDir, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve output directory", goerr.V("output", opts.OutputDir))
	}

	if err := checkDirs(inputDir, outputDir); err != nil {
		return nil, err
	}

	entries, err := Scan(inputDir)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	if len(entries) == 0 {
		w := Warning{Kind: WarnNoFiles}
		result.Warnings = append(result.Warnings, w)
		log.Warn(w.String(), zap.String("input", inputDir))
		return result, nil
	}

	groups := GroupFiles(entries)
	log.Debug("scanned input",
		zap.String("input", inputDir),
		zap.Int("files", len(entries)),
		zap.Int("groups", len(groups)),
	)

	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		plan := PlanGroup(g)
		for _, w := range plan.Warnings {
			log.Warn(w.String(), zap.String("kind", string(w.Kind)), zap.String("output", w.Group))
		}
		result.Warnings = append(result.Warnings, plan.Warnings...)

		rel := plan.Key.String()
		dest := filepath.Join(outputDir, rel)
		n, err := mergeFiles(ctx, dest, plan.Entries)
		if err != nil {
			return result, goerr.Wrap(err, "failed to reconcile file", goerr.V("output", rel))
		}

		result.Outputs = append(result.Outputs, rel)
		result.Bytes += n
		log.Info("reconciled", zap.String("output", rel), zap.Int("parts", len(plan.Entries)))
	}

	log.Info("reconciliation complete",
		zap.Int("files", len(result.Outputs)),
		zap.String("output", outputDir),
	)

	return result, nil
}
