package hcl

import (
	"context"
	"strconv"
	"strings"

	"github.com/specialistvlad/stagemake/internal/config"
	"github.com/specialistvlad/stagemake/internal/ctxlog"
	"github.com/specialistvlad/stagemake/internal/schema"
)

// translate converts the HCL-specific file schema into the agnostic
// descriptor model. Individually malformed entries (a non-numeric
// stage label, a bad naming key) are warned about and dropped rather
// than failing the directory.
func translate(ctx context.Context, path string, raw *schema.DescriptorFile) *config.Descriptor {
	logger := ctxlog.FromContext(ctx)
	descriptor := &config.Descriptor{
		Inherit:         raw.Inherit,
		DisregardUnless: raw.DisregardUnless,
	}

	if len(raw.Subdirs) > 0 {
		descriptor.Subdirs = make(map[string]config.SubdirPolicy, len(raw.Subdirs))
		for name, value := range raw.Subdirs {
			descriptor.Subdirs[name] = translateSubdirPolicy(value)
		}
	}

	if len(raw.Naming) > 0 {
		descriptor.Naming = make(map[int]string, len(raw.Naming))
		for key, label := range raw.Naming {
			stage, err := strconv.Atoi(key)
			if err != nil || stage < 0 {
				logger.Warn("Ignoring naming entry with non-numeric stage key.", "path", path, "key", key)
				continue
			}
			descriptor.Naming[stage] = label
		}
	}

	if len(raw.Stages) > 0 {
		descriptor.Stages = make(map[int][]*config.TransformSection)
		for _, block := range raw.Stages {
			stage, err := strconv.Atoi(block.Number)
			if err != nil || stage < 0 {
				logger.Warn("Ignoring stage block with non-numeric label.", "path", path, "label", block.Number)
				continue
			}
			descriptor.Stages[stage] = append(descriptor.Stages[stage], &config.TransformSection{
				Source:      block.Source,
				Destination: block.Destination,
				Transform:   block.Transform,
				Parallel:    block.Parallel,
				OnlyOnce:    block.OnlyOnce,
			})
		}
	}

	return descriptor
}

// translateSubdirPolicy maps a subdirs entry value onto the policy
// model: the literal "ignore" skips the subtree, anything else is a
// forced command replacing recursion into it.
func translateSubdirPolicy(value string) config.SubdirPolicy {
	if strings.TrimSpace(value) == "ignore" {
		return config.SubdirPolicy{Ignore: true}
	}
	return config.SubdirPolicy{MakeCommand: strings.TrimSpace(value)}
}
