// Package config defines the format-agnostic descriptor model shared by
// the rest of the engine, plus the Loader interface that concrete
// parsers (currently HCL) implement. Nothing in this package knows how
// a descriptor is serialized on disk.
package config
