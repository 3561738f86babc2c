package config

// DescriptorFileName is the per-directory build descriptor, by convention.
const DescriptorFileName = "stagemake.hcl"

// SubdirPolicy overrides how the walker treats one child directory.
// Exactly one of Ignore or MakeCommand is meaningful: Ignore skips the
// subtree entirely, MakeCommand replaces recursion with a single forced
// command executed in the child directory.
type SubdirPolicy struct {
	Ignore      bool
	MakeCommand string
}

// TransformSection is one rule set within a stage: a source selector, a
// destination-derivation rule, a transform command template, and the
// optional parallelism / one-shot flags.
type TransformSection struct {
	// Source is either a whitespace-separated literal file list or a
	// "shell:" command whose stdout yields one file per line.
	Source string

	// Destination selects how destinations are derived per source: a
	// built-in rule tag, a "shell:" delegated rule, a "func:" custom
	// deriver, or a literal list of destination names.
	Destination string

	// Transform is the command template run to produce a destination.
	// Placeholders: {in}, {out}, {dir}.
	Transform string

	// Parallel, when > 0, allows up to Parallel sibling jobs from the
	// same stage and directory to run as one concurrent batch.
	Parallel int

	// OnlyOnce limits the section to at most one emitted job per stage
	// pass. Sources are still hashed for the remaining destinations.
	OnlyOnce bool
}

// Descriptor is one directory's resolved build configuration. A missing
// descriptor file yields the zero Descriptor: no local rules, but the
// walker still traverses subdirectories.
type Descriptor struct {
	// Inherit propagates environment overrides to this directory and
	// its whole subtree. Values prefixed "shell:" are computed by the
	// shell at first use.
	Inherit map[string]string

	// DisregardUnless gates the directory: when the shell condition
	// exits nonzero, the directory and its subtree are excluded.
	DisregardUnless string

	// Subdirs overrides traversal policy for named children.
	Subdirs map[string]SubdirPolicy

	// Naming maps stage numbers to human labels for log output.
	Naming map[int]string

	// Stages holds the ordered transform sections per stage number.
	Stages map[int][]*TransformSection
}

// MaxStage returns the highest stage number present in the descriptor,
// or -1 when it declares no stages at all.
func (d *Descriptor) MaxStage() int {
	max := -1
	for n := range d.Stages {
		if n > max {
			max = n
		}
	}
	return max
}

// Empty reports whether the descriptor carries no configuration at all.
func (d *Descriptor) Empty() bool {
	return len(d.Inherit) == 0 &&
		d.DisregardUnless == "" &&
		len(d.Subdirs) == 0 &&
		len(d.Naming) == 0 &&
		len(d.Stages) == 0
}
