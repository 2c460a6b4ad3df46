package kb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityContext_SingleWritePerSource(t *testing.T) {
	ec := NewEntityContext(Entity{Name: "Berlin"}, "en")

	err := ec.SetRecord(SourceWikipedia, &SourceRecord{Status: StatusFound, ID: "Berlin", Summary: "The capital of Germany."})
	require.NoError(t, err)

	// second write for the same source must be rejected
	err = ec.SetRecord(SourceWikipedia, &SourceRecord{Status: StatusNotFound})
	assert.Error(t, err)

	rec := ec.Record(SourceWikipedia)
	require.NotNil(t, rec)
	assert.Equal(t, StatusFound, rec.Status)
}

func TestEntityContext_SetRecordNormalizes(t *testing.T) {
	ec := NewEntityContext(Entity{Name: "Berlin"}, "en")

	// a found record without a summary is demoted on write, atomically:
	// no observer can ever see found-without-summary in the slot
	err := ec.SetRecord(SourceWikidata, &SourceRecord{Status: StatusFound, ID: "Q64"})
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, ec.Record(SourceWikidata).Status)
}

func TestEntityContext_Attempted(t *testing.T) {
	ec := NewEntityContext(Entity{Name: "Berlin"}, "en")

	assert.False(t, ec.IsAttempted(SourceDBpedia))
	ec.MarkAttempted(SourceDBpedia)
	assert.True(t, ec.IsAttempted(SourceDBpedia))
}

func TestEntityContext_Scratch(t *testing.T) {
	ec := NewEntityContext(Entity{Name: "Berlin"}, "en")

	ec.SetScratch(ScratchWikibaseID, "Q64")
	v, ok := ec.GetScratch(ScratchWikibaseID)
	assert.True(t, ok)
	assert.Equal(t, "Q64", v)

	// empty values never erase an earlier discovery
	ec.SetScratch(ScratchWikibaseID, "")
	v, _ = ec.GetScratch(ScratchWikibaseID)
	assert.Equal(t, "Q64", v)
}

func TestNewEntityContext_SeedsPreKnownID(t *testing.T) {
	ec := NewEntityContext(Entity{Name: "Berlin", PreKnownID: "Q64"}, "en")
	v, ok := ec.GetScratch(ScratchWikibaseID)
	assert.True(t, ok)
	assert.Equal(t, "Q64", v)
	assert.Equal(t, "en", ec.Language)

	// entity-level language wins over the default
	ec2 := NewEntityContext(Entity{Name: "Berlin", Language: "de"}, "en")
	assert.Equal(t, "de", ec2.Language)
}

func TestEntityContext_Resolved(t *testing.T) {
	ec := NewEntityContext(Entity{Name: "Berlin"}, "en")
	assert.False(t, ec.Resolved())

	require.NoError(t, ec.SetRecord(SourceWikipedia, &SourceRecord{Status: StatusNotFound}))
	assert.False(t, ec.Resolved())

	require.NoError(t, ec.SetRecord(SourceWikidata, &SourceRecord{Status: StatusFound, ID: "Q64", Summary: "The capital of Germany."}))
	assert.True(t, ec.Resolved())
}
