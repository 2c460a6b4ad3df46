package batch

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/loreweave/loreweave/kb"
)

// SourceStats counts per-source outcomes for one pass.
type SourceStats struct {
	Found    int
	NotFound int
	Errors   int
}

// Stats aggregates one pass: per-source hit counts, per-provenance
// success counts, and the entities no source could resolve.
type Stats struct {
	Total          int
	BySource       map[kb.Source]SourceStats
	ByProvenance   map[kb.Stage]int
	Unresolved     []string // entity names with no found record in any source
	PhaseDurations map[kb.Source]time.Duration
	Duration       time.Duration
}

func NewStats() *Stats {
	return &Stats{
		BySource:       make(map[kb.Source]SourceStats),
		ByProvenance:   make(map[kb.Stage]int),
		PhaseDurations: make(map[kb.Source]time.Duration),
	}
}

func (s *Stats) finalize(contexts []*kb.EntityContext, duration time.Duration) {
	s.Total = len(contexts)
	s.Duration = duration

	for _, ec := range contexts {
		for _, source := range kb.AllSources {
			rec := ec.Record(source)
			if rec == nil {
				continue
			}
			counts := s.BySource[source]
			switch rec.Status {
			case kb.StatusFound:
				counts.Found++
				s.ByProvenance[rec.Provenance]++
			case kb.StatusNotFound:
				counts.NotFound++
			case kb.StatusError:
				counts.Errors++
			}
			s.BySource[source] = counts
		}
		if !ec.Resolved() {
			s.Unresolved = append(s.Unresolved, ec.Name)
		}
	}
}

// Summary renders a one-line digest for logs.
func (s *Stats) Summary() string {
	var parts []string
	for _, source := range kb.AllSources {
		counts, ok := s.BySource[source]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %d/%d", source, counts.Found, counts.Found+counts.NotFound+counts.Errors))
	}
	provenances := make([]string, 0, len(s.ByProvenance))
	for stage, n := range s.ByProvenance {
		provenances = append(provenances, fmt.Sprintf("%s=%d", stage, n))
	}
	sort.Strings(provenances)

	return fmt.Sprintf("%d entities in %s: %s; provenance %s; %d unresolved",
		s.Total,
		s.Duration.Round(time.Millisecond),
		strings.Join(parts, ", "),
		strings.Join(provenances, " "),
		len(s.Unresolved),
	)
}
