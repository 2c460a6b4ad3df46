package kb

import "strings"

// SourceRecord is the structured result of resolving one entity against one
// knowledge base. Records are written into an EntityContext atomically, as
// a whole value, never mutated field by field after publication.
type SourceRecord struct {
	Status RecordStatus `json:"status"`

	// Canonical identifier within the source's namespace (page title,
	// Q-id, resource URI fragment)
	ID  string `json:"id,omitempty"`
	URI string `json:"uri,omitempty"`

	Label   string `json:"label,omitempty"`
	Summary string `json:"summary,omitempty"`

	// AltLabel keeps an auxiliary reference when a fallback stage resolved
	// a different title or language than the one originally requested
	AltLabel string `json:"alt_label,omitempty"`

	Categories []string `json:"categories,omitempty"`
	Types      []string `json:"types,omitempty"`
	PartOf     []string `json:"part_of,omitempty"`
	HasPart    []string `json:"has_part,omitempty"`

	// Provenance identifies the cascade stage that produced this record;
	// Attempts counts stages tried before the cascade terminated
	Provenance Stage `json:"provenance,omitempty"`
	Attempts   int   `json:"attempts"`

	// Note carries diagnostic text for not_found/error records
	Note string `json:"note,omitempty"`
}

// Usable reports whether the record is informative enough to terminate the
// cascade: found status, a non-empty identifier, and a summary at least
// minSummaryLen runes long. "Found but useless" and "not found" share one
// trigger in the cascade.
func (r *SourceRecord) Usable(minSummaryLen int) bool {
	if r == nil || r.Status != StatusFound {
		return false
	}
	if strings.TrimSpace(r.ID) == "" {
		return false
	}
	return len([]rune(strings.TrimSpace(r.Summary))) >= minSummaryLen
}

// Partial reports whether the record carries some identifying data (id or
// label) without a usable summary. Partial records may be cached to bound
// repeated failed lookups but are never presented downstream as found.
func (r *SourceRecord) Partial() bool {
	if r == nil {
		return false
	}
	hasIdentity := strings.TrimSpace(r.ID) != "" || strings.TrimSpace(r.Label) != ""
	return hasIdentity && strings.TrimSpace(r.Summary) == ""
}

// Normalize enforces the hard invariant: status found requires both a
// non-empty identifier and a non-empty summary. Anything else claiming
// found is demoted to not_found, keeping its fields for diagnostics.
func (r *SourceRecord) Normalize() {
	if r == nil || r.Status != StatusFound {
		return
	}
	if strings.TrimSpace(r.ID) == "" || strings.TrimSpace(r.Summary) == "" {
		r.Status = StatusNotFound
		if r.Note == "" {
			r.Note = "demoted: found record missing identifier or summary"
		}
	}
}

// Merge folds fields from other into r without clobbering populated ones.
// Used when a later stage improves on a partial earlier result: summary,
// label and relation lists fill in only where r is empty. Provenance and
// attempt bookkeeping are not merged; the cascade owns those.
func (r *SourceRecord) Merge(other *SourceRecord) {
	if other == nil {
		return
	}
	if r.ID == "" {
		r.ID = other.ID
	}
	if r.URI == "" {
		r.URI = other.URI
	}
	if r.Label == "" {
		r.Label = other.Label
	}
	if r.Summary == "" {
		r.Summary = other.Summary
	}
	if r.AltLabel == "" {
		r.AltLabel = other.AltLabel
	}
	if len(r.Categories) == 0 {
		r.Categories = other.Categories
	}
	if len(r.Types) == 0 {
		r.Types = other.Types
	}
	if len(r.PartOf) == 0 {
		r.PartOf = other.PartOf
	}
	if len(r.HasPart) == 0 {
		r.HasPart = other.HasPart
	}
}

// Clone returns a deep copy. Slices are copied so a cached record can be
// handed to multiple contexts safely.
func (r *SourceRecord) Clone() *SourceRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Categories = append([]string(nil), r.Categories...)
	out.Types = append([]string(nil), r.Types...)
	out.PartOf = append([]string(nil), r.PartOf...)
	out.HasPart = append([]string(nil), r.HasPart...)
	return &out
}
