// Package producer supplies the ordered entity list entering the
// pipeline. The upstream extraction step is an external collaborator;
// this package only parses its output.
package producer

import (
	"context"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/loreweave/loreweave/errors"
	"github.com/loreweave/loreweave/kb"
)

// Producer yields the ordered entity list for one pass.
type Producer interface {
	Entities(ctx context.Context) ([]kb.Entity, error)
}

// entry accepts both the full mapping form and a bare name string, so
// entity files can mix `- Berlin` with `- {name: Berlin, type: city}`.
type entry struct {
	kb.Entity
}

func (e *entry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.Name = value.Value
		return nil
	}
	return value.Decode(&e.Entity)
}

type entityFile struct {
	Language string  `yaml:"language"`
	Entities []entry `yaml:"entities"`
}

// FileProducer reads entities from a YAML file.
type FileProducer struct {
	path string
}

// NewFileProducer creates a producer over the given YAML file.
func NewFileProducer(path string) *FileProducer {
	return &FileProducer{path: path}
}

// Entities implements Producer. A file-level language applies to every
// entity that does not set its own.
func (p *FileProducer) Entities(_ context.Context) ([]kb.Entity, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, errors.Wrapf(err, "read entity file %s", p.path)
	}

	var parsed entityFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, errors.Wrapf(err, "parse entity file %s", p.path)
	}

	entities := make([]kb.Entity, 0, len(parsed.Entities))
	for _, e := range parsed.Entities {
		if e.Name == "" {
			continue
		}
		if e.Language == "" {
			e.Language = parsed.Language
		}
		entities = append(entities, e.Entity)
	}
	if len(entities) == 0 {
		return nil, errors.Newf("entity file %s contains no entities", p.path)
	}
	return entities, nil
}

// StaticProducer yields a fixed list, used for command-line arguments.
type StaticProducer struct {
	entities []kb.Entity
}

// NewStaticProducer creates a producer over the given names.
func NewStaticProducer(names []string) *StaticProducer {
	entities := make([]kb.Entity, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		entities = append(entities, kb.Entity{Name: name})
	}
	return &StaticProducer{entities: entities}
}

// Entities implements Producer.
func (p *StaticProducer) Entities(_ context.Context) ([]kb.Entity, error) {
	if len(p.entities) == 0 {
		return nil, errors.New("no entities given")
	}
	return p.entities, nil
}

var (
	_ Producer = (*FileProducer)(nil)
	_ Producer = (*StaticProducer)(nil)
)
