package artifact

import (
	"errors"
	"fmt"
	"io/fs"
)

// Common errors for artifact operations. ErrObjectNotFound matches
// fs.ErrNotExist so callers need not know which backend they talk to.
var (
	ErrObjectNotFound = fmt.Errorf("object not found: %w", fs.ErrNotExist)
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrInvalidName    = errors.New("invalid artifact name")
)
