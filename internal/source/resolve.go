package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrS3NotConfigured is returned for s3:// references without credentials
var ErrS3NotConfigured = errors.New("S3 input is not configured")

// Ref is a parsed input reference
type Ref struct {
	Path   string // local path, empty for S3
	Bucket string
	Key    string
}

// IsS3 reports whether the reference points into an object store
func (r Ref) IsS3() bool {
	return r.Bucket != ""
}

func (r Ref) String() string {
	if r.IsS3() {
		return "s3://" + r.Bucket + "/" + r.Key
	}
	return r.Path
}

// ParseRef accepts a local path or an s3://bucket/key URI
func ParseRef(ref string) (Ref, error) {
	if ref == "" {
		return Ref{}, errors.New("empty input reference")
	}

	rest, ok := strings.CutPrefix(ref, "s3://")
	if !ok {
		return Ref{Path: ref}, nil
	}

	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return Ref{}, fmt.Errorf("invalid S3 URI %q: expected s3://bucket/key", ref)
	}
	return Ref{Bucket: bucket, Key: key}, nil
}

// Resolver turns input references into local files
type Resolver struct {
	s3     *S3Fetcher
	logger *slog.Logger
}

// NewResolver creates a resolver; s3 may be nil when S3 is not configured
func NewResolver(s3 *S3Fetcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{s3: s3, logger: logger}
}

// Resolve returns a local file for ref. Callers must Cleanup the result.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Staged, error) {
	parsed, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}

	if !parsed.IsS3() {
		return Local(parsed.Path)
	}

	if r.s3 == nil {
		return nil, fmt.Errorf("%w: %s", ErrS3NotConfigured, parsed)
	}
	return r.s3.Fetch(ctx, parsed.Bucket, parsed.Key)
}
