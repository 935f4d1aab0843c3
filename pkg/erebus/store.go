// Package erebus is the blob store behind the evaluation report archive.
package erebus

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("blob not found")

type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// List returns the keys under prefix in lexical order
	List(ctx context.Context, prefix string) ([]string, error)
}
