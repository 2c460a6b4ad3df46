package producer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreweave/loreweave/kb"
)

func writeEntityFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileProducer(t *testing.T) {
	path := writeEntityFile(t, `
language: en
entities:
  - Berlin
  - name: Elbe
    type: river
  - name: Germany
    id: Q183
    language: de
`)

	entities, err := NewFileProducer(path).Entities(context.Background())
	require.NoError(t, err)

	require.Len(t, entities, 3)
	assert.Equal(t, kb.Entity{Name: "Berlin", Language: "en"}, entities[0])
	assert.Equal(t, kb.Entity{Name: "Elbe", DeclaredType: "river", Language: "en"}, entities[1])
	assert.Equal(t, kb.Entity{Name: "Germany", PreKnownID: "Q183", Language: "de"}, entities[2])
}

func TestFileProducer_EmptyFile(t *testing.T) {
	path := writeEntityFile(t, "entities: []\n")

	_, err := NewFileProducer(path).Entities(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entities")
}

func TestFileProducer_MissingFile(t *testing.T) {
	_, err := NewFileProducer(filepath.Join(t.TempDir(), "absent.yaml")).Entities(context.Background())
	require.Error(t, err)
}

func TestFileProducer_MalformedYAML(t *testing.T) {
	path := writeEntityFile(t, "entities: [unclosed\n")

	_, err := NewFileProducer(path).Entities(context.Background())
	require.Error(t, err)
}

func TestStaticProducer(t *testing.T) {
	entities, err := NewStaticProducer([]string{"Berlin", "", "Hamburg"}).Entities(context.Background())
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "Berlin", entities[0].Name)
	assert.Equal(t, "Hamburg", entities[1].Name)

	_, err = NewStaticProducer(nil).Entities(context.Background())
	require.Error(t, err)
}
