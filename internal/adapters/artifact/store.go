// Package artifact stores opaque named blobs (trained models) on the local
// filesystem or in S3.
package artifact

import (
	"context"
	"path"
	"strings"
)

// Store persists artifacts by name.
type Store interface {
	// Put writes data under name, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error

	// Get returns the content stored under name. Missing names yield an
	// error matching ErrObjectNotFound.
	Get(ctx context.Context, name string) ([]byte, error)

	// Location describes where name lives, for logs and API responses.
	Location(name string) string
}

// validName rejects names that would escape the store root.
func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name != path.Clean(name) || name == "." || name == ".." {
		return ErrInvalidName
	}
	return nil
}
