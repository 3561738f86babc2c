package hcl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/stagemake/internal/config"
	"github.com/specialistvlad/stagemake/internal/ctxlog"
	"github.com/specialistvlad/stagemake/internal/schema"
)

// Loader reads stagemake.hcl files into the agnostic descriptor model.
// It keeps a per-run cache keyed by (directory, target): descriptors
// are re-resolved once per stage, and their content cannot change
// mid-run, so re-parsing would only burn syscalls.
type Loader struct {
	parser *hclparse.Parser
	cache  map[string]*config.Descriptor
}

// NewLoader creates a Loader with an empty parse cache.
func NewLoader() *Loader {
	return &Loader{
		parser: hclparse.NewParser(),
		cache:  make(map[string]*config.Descriptor),
	}
}

// Load implements config.Loader.
func (l *Loader) Load(ctx context.Context, dir string, target string) (*config.Descriptor, error) {
	logger := ctxlog.FromContext(ctx)
	cacheKey := dir + "\x00" + target
	if cached, ok := l.cache[cacheKey]; ok {
		return cached, nil
	}

	path := filepath.Join(dir, config.DescriptorFileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			descriptor := &config.Descriptor{}
			l.cache[cacheKey] = descriptor
			return descriptor, nil
		}
		return nil, fmt.Errorf("stat descriptor %s: %w", path, err)
	}

	file, diags := l.parser.ParseHCLFile(path)
	if diags.HasErrors() {
		logger.Warn("Descriptor failed to parse, treating as empty.", "path", path, "error", diags.Error())
		descriptor := &config.Descriptor{}
		l.cache[cacheKey] = descriptor
		return descriptor, nil
	}

	var raw schema.DescriptorFile
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		logger.Warn("Descriptor has an invalid shape, treating as empty.", "path", path, "error", diags.Error())
		descriptor := &config.Descriptor{}
		l.cache[cacheKey] = descriptor
		return descriptor, nil
	}

	if target != "" {
		resolved, err := l.resolveTarget(ctx, path, &raw, target)
		if err != nil {
			return nil, err
		}
		raw = *resolved
	}

	descriptor := translate(ctx, path, &raw)
	l.cache[cacheKey] = descriptor
	return descriptor, nil
}

// resolveTarget swaps the effective descriptor for the body of the
// named target block. A descriptor that exists but lacks the requested
// target is a hard error: the caller asked for a build variant this
// directory does not define.
func (l *Loader) resolveTarget(ctx context.Context, path string, raw *schema.DescriptorFile, target string) (*schema.DescriptorFile, error) {
	logger := ctxlog.FromContext(ctx)
	for _, block := range raw.Targets {
		if block.Name != target {
			continue
		}
		var inner schema.DescriptorFile
		if diags := gohcl.DecodeBody(block.Body, nil, &inner); diags.HasErrors() {
			logger.Warn("Target body has an invalid shape, treating as empty.",
				"path", path, "target", target, "error", diags.Error())
			return &schema.DescriptorFile{}, nil
		}
		return &inner, nil
	}
	return nil, fmt.Errorf("%s: target %q: %w", path, target, config.ErrTargetNotFound)
}
