package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreweave/loreweave/kb"
)

func resolvedContext(t *testing.T, name string, rec *kb.SourceRecord) *kb.EntityContext {
	t.Helper()
	ec := kb.NewEntityContext(kb.Entity{Name: name}, "en")
	require.NoError(t, ec.SetRecord(kb.SourceWikipedia, rec))
	return ec
}

func TestBuilder_Build(t *testing.T) {
	berlin := resolvedContext(t, "Berlin", &kb.SourceRecord{
		Status:     kb.StatusFound,
		ID:         "Berlin",
		URI:        "https://en.wikipedia.org/wiki/Berlin",
		Label:      "Berlin",
		Summary:    "Berlin is the capital and largest city of Germany.",
		Types:      []string{"city"},
		Categories: []string{"Capitals in Europe"},
		PartOf:     []string{"Germany"},
		Provenance: kb.StagePrimary,
	})
	unresolved := kb.NewEntityContext(kb.Entity{Name: "NonExistentXYZ"}, "en")

	g := NewBuilder(nil).Build([]*kb.EntityContext{berlin, unresolved})

	// Berlin, NonExistentXYZ, type:city, category:Capitals in Europe, Germany
	assert.Len(t, g.Nodes, 5)
	assert.Len(t, g.Links, 3)
	assert.Equal(t, 1, g.Meta.Stats.ResolvedNodes)
	assert.Equal(t, 1, g.Meta.Stats.UnresolvedNodes)

	var linkTypes []string
	for _, link := range g.Links {
		assert.Equal(t, "Berlin", link.Source)
		linkTypes = append(linkTypes, link.Type)
	}
	assert.ElementsMatch(t, []string{LinkInstanceOf, LinkCategoryOf, LinkPartOf}, linkTypes)

	// Unresolved entities keep their node
	var names []string
	for _, node := range g.Nodes {
		names = append(names, node.ID)
	}
	assert.Contains(t, names, "NonExistentXYZ")
}

func TestBuilder_SourcePriority(t *testing.T) {
	ec := kb.NewEntityContext(kb.Entity{Name: "Berlin"}, "en")
	require.NoError(t, ec.SetRecord(kb.SourceWikipedia, &kb.SourceRecord{
		Status: kb.StatusNotFound, Provenance: kb.StageNotFound,
	}))
	require.NoError(t, ec.SetRecord(kb.SourceWikidata, &kb.SourceRecord{
		Status: kb.StatusFound, ID: "Q64", Label: "Berlin", Summary: "capital of Germany", Provenance: kb.StagePrimary,
	}))

	g := NewBuilder(nil).Build([]*kb.EntityContext{ec})
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "Berlin", g.Nodes[0].Label)
	assert.Equal(t, 1, g.Meta.Stats.ResolvedNodes, "a later source's found record still resolves the node")
}

func TestBuilder_DeduplicatesSharedTargets(t *testing.T) {
	a := resolvedContext(t, "Berlin", &kb.SourceRecord{
		Status: kb.StatusFound, ID: "Berlin", Summary: "x", PartOf: []string{"Germany"}, Provenance: kb.StagePrimary,
	})
	b := resolvedContext(t, "Hamburg", &kb.SourceRecord{
		Status: kb.StatusFound, ID: "Hamburg", Summary: "y", PartOf: []string{"Germany"}, Provenance: kb.StagePrimary,
	})

	g := NewBuilder(nil).Build([]*kb.EntityContext{a, b})

	// Berlin, Hamburg, Germany: the shared parent appears once
	assert.Len(t, g.Nodes, 3)
	assert.Len(t, g.Links, 2)
}
