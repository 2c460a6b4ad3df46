package kb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceRecord_Usable(t *testing.T) {
	tests := []struct {
		name   string
		rec    *SourceRecord
		minLen int
		want   bool
	}{
		{
			name:   "full record",
			rec:    &SourceRecord{Status: StatusFound, ID: "Q64", Summary: "Berlin is the capital of Germany."},
			minLen: 10,
			want:   true,
		},
		{
			name:   "found without summary",
			rec:    &SourceRecord{Status: StatusFound, ID: "Q64"},
			minLen: 10,
			want:   false,
		},
		{
			name:   "summary below minimum length",
			rec:    &SourceRecord{Status: StatusFound, ID: "Q64", Summary: "Berlin."},
			minLen: 50,
			want:   false,
		},
		{
			name:   "found without identifier",
			rec:    &SourceRecord{Status: StatusFound, Summary: "Berlin is the capital of Germany."},
			minLen: 10,
			want:   false,
		},
		{
			name:   "not found",
			rec:    &SourceRecord{Status: StatusNotFound, ID: "Q64", Summary: "Berlin is the capital of Germany."},
			minLen: 10,
			want:   false,
		},
		{
			name:   "nil record",
			rec:    nil,
			minLen: 10,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.Usable(tt.minLen))
		})
	}
}

func TestSourceRecord_Normalize(t *testing.T) {
	// found with id but no summary must be demoted to not_found
	rec := &SourceRecord{Status: StatusFound, ID: "Q64", Label: "Berlin"}
	rec.Normalize()
	assert.Equal(t, StatusNotFound, rec.Status)
	assert.NotEmpty(t, rec.Note)
	// identifying fields survive for diagnostics
	assert.Equal(t, "Q64", rec.ID)

	// a complete record is untouched
	full := &SourceRecord{Status: StatusFound, ID: "Q64", Summary: "Berlin is the capital of Germany."}
	full.Normalize()
	assert.Equal(t, StatusFound, full.Status)

	// non-found statuses are never touched
	nf := &SourceRecord{Status: StatusNotFound}
	nf.Normalize()
	assert.Equal(t, StatusNotFound, nf.Status)
}

func TestSourceRecord_Partial(t *testing.T) {
	assert.True(t, (&SourceRecord{ID: "Q64"}).Partial())
	assert.True(t, (&SourceRecord{Label: "Berlin"}).Partial())
	assert.False(t, (&SourceRecord{ID: "Q64", Summary: "text"}).Partial())
	assert.False(t, (&SourceRecord{}).Partial())
}

func TestSourceRecord_Merge(t *testing.T) {
	dst := &SourceRecord{Status: StatusFound, ID: "Q64", Summary: "kept"}
	src := &SourceRecord{ID: "other", Label: "Berlin", Summary: "discarded", Categories: []string{"Cities"}}
	dst.Merge(src)

	assert.Equal(t, "Q64", dst.ID, "populated fields are not clobbered")
	assert.Equal(t, "kept", dst.Summary)
	assert.Equal(t, "Berlin", dst.Label, "empty fields fill in")
	assert.Equal(t, []string{"Cities"}, dst.Categories)
}

func TestSourceRecord_Clone(t *testing.T) {
	orig := &SourceRecord{Status: StatusFound, ID: "Q64", Summary: "s", Categories: []string{"a"}}
	clone := orig.Clone()
	clone.Categories[0] = "b"
	assert.Equal(t, "a", orig.Categories[0], "clone must not share slices")
}
