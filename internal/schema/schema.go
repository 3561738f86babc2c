// Package schema holds the HCL-facing struct definitions for the
// per-directory descriptor file. These are decode targets for gohcl
// only; the rest of the engine works with the agnostic config model.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// StageBlock is one `stage "<N>" { ... }` block: a single transform
// section belonging to stage N. Repeating the block with the same label
// appends sections in file order.
type StageBlock struct {
	Number      string `hcl:"number,label"`
	Source      string `hcl:"source"`
	Destination string `hcl:"destination"`
	Transform   string `hcl:"transform,optional"`
	Parallel    int    `hcl:"parallel,optional"`
	OnlyOnce    bool   `hcl:"onlyonce,optional"`
}

// TargetBlock is a named alternate top-level descriptor. Its body uses
// the same schema as the file itself and is decoded lazily, only when
// the target is selected on the command line.
type TargetBlock struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// DescriptorFile is the top-level structure of a stagemake.hcl file.
type DescriptorFile struct {
	Inherit         map[string]string `hcl:"inherit,optional"`
	DisregardUnless string            `hcl:"disregard_unless,optional"`
	Subdirs         map[string]string `hcl:"subdirs,optional"`
	Naming          map[string]string `hcl:"naming,optional"`
	Stages          []*StageBlock     `hcl:"stage,block"`
	Targets         []*TargetBlock    `hcl:"target,block"`
}
