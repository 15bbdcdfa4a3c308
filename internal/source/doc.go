// Package source resolves audio inputs to files on local disk.
// Uploads and S3 objects are staged into temporary files that keep their
// extension; local paths are used in place. Staged files are removed by
// Cleanup, which only logs failures.
package source
