package scheduler

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches any {word} placeholder, used to reject
// templates that still contain unresolved placeholders after
// substitution.
var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

// RenderCommand substitutes the named placeholders of a transform
// template: {in} with the space-joined input files, {out} with the
// destination, {dir} with the working directory. Any placeholder left
// over after substitution is an error rather than a command silently
// handed to the shell half-expanded.
func RenderCommand(template string, inputs []string, out string, dir string) (string, error) {
	rendered := strings.NewReplacer(
		"{in}", strings.Join(inputs, " "),
		"{out}", out,
		"{dir}", dir,
	).Replace(template)

	if leftover := placeholderPattern.FindString(rendered); leftover != "" {
		return "", fmt.Errorf("unresolved placeholder %s in transform %q", leftover, template)
	}
	return rendered, nil
}
