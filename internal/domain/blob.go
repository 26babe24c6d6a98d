package domain

import (
	"context"
	"io"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver uploads the artifacts of a finished run (equity curve, metrics,
// order log) to cold storage and returns the object prefix it wrote under.
type Archiver interface {
	ArchiveRun(ctx context.Context, run Run, equity []EquityPoint, orderLogPath string) (string, error)
}
