// Package config defines configuration for the stitch CLI.
//
// Values are layered, later sources winning:
//   - Defaults
//   - YAML configuration file (--config)
//   - Environment variables (STITCH_ prefix)
//   - Command-line flags
//
// Sizes such as max_body_size accept human-readable values ("10MiB",
// "512KB"); durations use Go syntax ("30s", "1m30s").
//
// # Example
//
//	input_dir: ai_files
//	output_dir: dist
//	concurrency: 8
//	max_body_size: 16MiB
//	bucket: s3://site-assets?region=eu-west-1
//	prefix: v1/
//	retry:
//	  attempts: 3
//	  backoff: 500ms
package config
