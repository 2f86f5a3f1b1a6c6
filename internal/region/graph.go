package region

import (
	"fmt"
	"slices"
	"strings"
)

// Graph renders the modulation edges of the given regions as a DOT digraph.
// Lines are sorted and deduplicated so the output is stable across runs.
func Graph(regions []*Region) string {
	var lines []string
	for _, r := range regions {
		for _, t := range r.targets {
			for _, c := range t.Connections {
				lines = append(lines, fmt.Sprintf("\t%q -> %q", c.Source.String(), c.Target.String()))
			}
		}
	}
	slices.Sort(lines)
	lines = slices.Compact(lines)

	var sb strings.Builder
	sb.WriteString("digraph {\n")
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}
