package config

import (
	"context"
	"errors"
)

// ErrTargetNotFound is returned by a Loader when a directory's
// descriptor exists but does not declare the requested named target.
// The walker treats it as fatal: an explicitly requested target that
// cannot be resolved means the run would build the wrong thing.
var ErrTargetNotFound = errors.New("named target not found in descriptor")

// Loader reads one directory's descriptor into the agnostic model.
//
// A missing descriptor file is not an error: implementations return the
// zero Descriptor. A malformed descriptor is downgraded to a warning
// and an empty Descriptor, so a partially broken tree still builds.
// When target is non-empty and the descriptor file exists, the loader
// resolves the matching target block instead of the top-level body, or
// fails with ErrTargetNotFound.
type Loader interface {
	Load(ctx context.Context, dir string, target string) (*Descriptor, error)
}
