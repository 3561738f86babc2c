package scheduler

// Job is one unit of work: a fully materialized command bound to a
// directory, with enough bookkeeping to narrate why it runs and to
// roll its cache contributions back if it fails. Jobs are built during
// stage enumeration and discarded once executed; they are never
// persisted.
type Job struct {
	// Stage the job belongs to. Forced-make jobs run before stage 0
	// and carry stage 0 for display purposes only.
	Stage int

	// Dir is the working directory the command runs in, joined from
	// the invocation root. DirRel is the root-relative form used in
	// cache keys and narration.
	Dir    string
	DirRel string

	// Destination is the file this job produces. Empty for forced-make
	// jobs, which are commands rather than file productions.
	Destination string

	// Script is the rendered transform command; Command is Script
	// prefixed with the directory's environment assignments. Command
	// is what actually executes.
	Script  string
	Command string

	// Reason is the human explanation: "destination absent",
	// "source changed (…)", "make forced".
	Reason string

	// ContributingSources lists the cache keys to purge on failure.
	ContributingSources []string

	// ParallelWidth, when > 1, allows this job to lead a concurrent
	// batch of up to ParallelWidth compatible siblings.
	ParallelWidth int
}

// label names the job in narration output.
func (j *Job) label() string {
	if j.Destination != "" {
		return j.Destination
	}
	return j.DirRel
}
