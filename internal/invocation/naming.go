package invocation

import (
	"regexp"
	"slices"
	"strings"
)

var nameInvalid = regexp.MustCompile(`[^A-Za-z0-9-]`)

// CommandName derives a stable identifier from a set of commands: sorted,
// joined with "-", and stripped to letters, digits and dashes.
func CommandName(cmds []string) string {
	sorted := slices.Clone(cmds)
	slices.Sort(sorted)
	return nameInvalid.ReplaceAllString(strings.Join(sorted, "-"), "")
}

// LTPCommand returns the command running the given LTP tests.
func LTPCommand(tests []string) string {
	return "cd /opt/ltp && ./runltp -s " + strings.Join(tests, " ")
}
