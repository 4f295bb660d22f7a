package extract

import (
	"fmt"
	"sort"
	"strings"
)

// Stats captures what the extractor removed.
type Stats struct {
	InputBytes  int            `json:"input_bytes"`
	OutputBytes int            `json:"output_bytes"`
	Removed     map[string]int `json:"removed"` // reason -> count
}

func newStats() *Stats {
	return &Stats{Removed: make(map[string]int)}
}

func (s *Stats) record(reason string) {
	s.Removed[reason]++
}

// Total returns the number of removed elements.
func (s *Stats) Total() int {
	total := 0
	for _, n := range s.Removed {
		total += n
	}
	return total
}

// String returns a one-line summary, reasons sorted for stable logs.
func (s *Stats) String() string {
	reasons := make([]string, 0, len(s.Removed))
	for r := range s.Removed {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)

	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		parts = append(parts, fmt.Sprintf("%s=%d", r, s.Removed[r]))
	}
	return fmt.Sprintf("%d -> %d bytes, removed %d (%s)",
		s.InputBytes, s.OutputBytes, s.Total(), strings.Join(parts, " "))
}
