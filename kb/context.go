package kb

import (
	"github.com/google/uuid"

	"github.com/loreweave/loreweave/errors"
)

// Entity is one extracted mention handed in by the upstream producer.
// Treated as opaque input; DeclaredType and PreKnownID are optional.
type Entity struct {
	Name         string `json:"name" yaml:"name"`
	DeclaredType string `json:"type,omitempty" yaml:"type,omitempty"`
	PreKnownID   string `json:"id,omitempty" yaml:"id,omitempty"`
	Language     string `json:"language,omitempty" yaml:"language,omitempty"`
}

// EntityContext is the per-entity accumulator. Every resolver stage reads
// and writes it. One context exists per entity per pass; concurrent
// resolvers never share a context across entities, so isolation comes from
// the one-context-per-entity discipline, not locking.
type EntityContext struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DeclaredType string `json:"declared_type,omitempty"`
	Language     string `json:"language"`

	// Records holds one slot per source, written at most once per pass
	Records map[Source]*SourceRecord `json:"records"`

	// Attempted tracks sources already invoked this pass
	Attempted map[Source]bool `json:"attempted"`

	// Scratch carries cross-source identifiers discovered by one resolver
	// that seed others (wikibase id, wikipedia title, candidate URLs)
	Scratch map[string]string `json:"scratch,omitempty"`
}

// NewEntityContext creates a context for one entity entering the pipeline.
// A pre-known identifier from the producer is seeded into scratch so the
// first resolver can use it.
func NewEntityContext(e Entity, defaultLanguage string) *EntityContext {
	lang := e.Language
	if lang == "" {
		lang = defaultLanguage
	}
	ec := &EntityContext{
		ID:           uuid.NewString(),
		Name:         e.Name,
		DeclaredType: e.DeclaredType,
		Language:     lang,
		Records:      make(map[Source]*SourceRecord),
		Attempted:    make(map[Source]bool),
		Scratch:      make(map[string]string),
	}
	if e.PreKnownID != "" {
		ec.Scratch[ScratchWikibaseID] = e.PreKnownID
	}
	return ec
}

// SetRecord writes the record for one source. The slot is single-write per
// pass: a second write for the same source is rejected so no stage can
// clobber another's result. The record is normalized on the way in, which
// enforces the found-requires-id-and-summary invariant atomically.
func (ec *EntityContext) SetRecord(source Source, rec *SourceRecord) error {
	if rec == nil {
		return errors.New("nil record")
	}
	if !source.Valid() {
		return errors.Newf("unknown source %q", source)
	}
	if _, exists := ec.Records[source]; exists {
		return errors.Newf("record slot for %s already written for entity %q", source, ec.Name)
	}
	rec.Normalize()
	ec.Records[source] = rec
	return nil
}

// Record returns the record for a source, or nil if that source has not
// produced one.
func (ec *EntityContext) Record(source Source) *SourceRecord {
	return ec.Records[source]
}

// MarkAttempted records that a source's resolver has been invoked for this
// entity during this pass.
func (ec *EntityContext) MarkAttempted(source Source) {
	ec.Attempted[source] = true
}

// IsAttempted reports whether a source was already invoked this pass.
func (ec *EntityContext) IsAttempted(source Source) bool {
	return ec.Attempted[source]
}

// SetScratch stores a cross-source seed value. Empty values are ignored so
// a failed discovery never erases an earlier one.
func (ec *EntityContext) SetScratch(key, value string) {
	if value == "" {
		return
	}
	ec.Scratch[key] = value
}

// GetScratch returns a cross-source seed value and whether it was present.
func (ec *EntityContext) GetScratch(key string) (string, bool) {
	v, ok := ec.Scratch[key]
	return v, ok
}

// Resolved reports whether the entity has a found record for any source.
func (ec *EntityContext) Resolved() bool {
	for _, rec := range ec.Records {
		if rec != nil && rec.Status == StatusFound {
			return true
		}
	}
	return false
}
