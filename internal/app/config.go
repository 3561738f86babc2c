package app

// CacheFileName is the per-root persisted cache, by convention.
const CacheFileName = ".stagemake-cache.yaml"

// Config holds everything an App instance needs for one run.
type Config struct {
	// RootDir is the tree to build. Defaults to the current directory.
	RootDir string

	// Target selects a named alternate descriptor in every directory
	// that has a descriptor file. Empty means the top-level body.
	Target string

	// EnvOverrides are command-line variable bindings. Their names win
	// over descriptor inherit entries at every depth.
	EnvOverrides map[string]string

	// CachePath relocates the persisted cache file. Empty means
	// RootDir/CacheFileName.
	CachePath string

	// Terse limits output to per-job narration; Debug turns on full
	// reasoning and materialized commands. Debug wins when both are
	// set.
	Terse bool
	Debug bool
}

// NewConfig applies defaults and returns a validated configuration.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.RootDir == "" {
		cfg.RootDir = "."
	}
	return &cfg, nil
}
