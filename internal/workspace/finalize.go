package workspace

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"yt-resolver/internal/runstore"
)

// ErrDestinationExists is returned when delivery would replace a file.
var ErrDestinationExists = errors.New("destination already exists")

// Destination receives a copy of the final artifact.
type Destination interface {
	// Deliver copies src to name under the destination and returns where it
	// landed.
	Deliver(ctx context.Context, src, name string) (string, error)
	String() string
}

type LocalDestination struct {
	Dir            string
	AllowOverwrite bool
}

func (d LocalDestination) String() string {
	return d.Dir
}

func (d LocalDestination) Deliver(ctx context.Context, src, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(d.Dir) == "" {
		return "", fmt.Errorf("destination directory is required")
	}
	target := filepath.Join(d.Dir, name)
	if !d.AllowOverwrite {
		if runstore.Exists(target) {
			return "", fmt.Errorf("%w: %s", ErrDestinationExists, target)
		}
	}
	if _, err := runstore.CopyFile(src, target); err != nil {
		return "", err
	}
	return target, nil
}

// DestinationOptions configures ParseDestination.
type DestinationOptions struct {
	AllowOverwrite bool
	S3             S3Options
}

// ParseDestination maps "s3://bucket/prefix" to an S3Destination and
// anything else to a local directory.
func ParseDestination(ctx context.Context, raw string, opts DestinationOptions) (Destination, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("destination is required")
	}
	if strings.HasPrefix(s, "s3://") {
		bucket, prefix, err := ParseS3URI(s)
		if err != nil {
			return nil, err
		}
		dest, err := NewS3Destination(ctx, opts.S3, bucket, prefix, opts.AllowOverwrite)
		if err != nil {
			return nil, err
		}
		return dest, nil
	}
	abs, err := filepath.Abs(s)
	if err != nil {
		return nil, fmt.Errorf("resolve destination %s: %w", s, err)
	}
	return LocalDestination{Dir: abs, AllowOverwrite: opts.AllowOverwrite}, nil
}

// Finalize copies the preferred final artifact to dest as
// "<sanitized intended name>.<ext>". The canonical file stays in place.
func (w Workspace) Finalize(ctx context.Context, ref ItemRef, dest Destination, intendedName string) (string, error) {
	if dest == nil {
		return "", fmt.Errorf("finalize %s: destination is required", ref.Key())
	}
	final, ok, err := w.FinalArtifact(ref)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("finalize %s: no final artifact in %s", ref.Key(), w.ItemDir(ref))
	}

	base := strings.TrimSpace(intendedName)
	if base == "" {
		base = ref.ID
	}
	name := SanitizeFilename(base) + "." + final.Ext

	location, err := dest.Deliver(ctx, final.Path, name)
	if err != nil {
		return "", fmt.Errorf("finalize %s to %s: %w", ref.Key(), dest, err)
	}
	return location, nil
}
