// Package publish uploads a reconciled output tree to object storage and
// checks published trees against their manifest.
//
// Storage access goes through gocloud.dev/blob, so any bucket URL with a
// registered driver works (file://, mem://, s3://, gs://).
//
// # Publishing
//
// [Publish] uploads every regular file below a directory in parallel
// ([WithWorkers]) under a key prefix ([WithPrefix]), then writes a manifest
// listing each object with its size and SHA-256 checksum. The manifest is
// written last, so its presence marks a complete publish. The manifest sits
// under the reserved .stitch/ directory; a tree that already contains
// .stitch/manifest.json is rejected with [ErrReservedKey].
//
// # Checking
//
// [Validate] compares the bucket against the manifest using object
// attributes only, or by re-reading objects when [WithVerifyChecksum] is
// set. Missing objects and mismatches are reported in the
// [ValidationResult], not as errors.
//
// [Delete] removes every object listed in the manifest and then the
// manifest itself.
//
// # Storage Layout
//
//	{bucket}/{prefix}.stitch/manifest.json
//	{bucket}/{prefix}docs/guide.md
//	{bucket}/{prefix}report.txt
package publish
