// Package stacktrace trims runtime stacks down to this module's own frames.
package stacktrace

import "strings"

// InternalPaths returns the "internal/...go:line" locations found in a raw
// debug.Stack output, outermost call last.
func InternalPaths(stack []byte) []string {
	lines := strings.Split(string(stack), "\n")
	paths := make([]string, 0, len(lines)/2)

	for _, line := range lines {
		line = strings.TrimSpace(line)

		idx := strings.Index(line, "/internal/")
		if idx == -1 || !strings.Contains(line, ".go:") {
			continue
		}

		loc := line[idx+1:]
		if sp := strings.IndexByte(loc, ' '); sp != -1 {
			loc = loc[:sp]
		}
		paths = append(paths, loc)
	}

	return paths
}
