package graph

import (
	"time"

	"go.uber.org/zap"

	"github.com/loreweave/loreweave/kb"
)

// Builder assembles a graph from enriched entity contexts.
type Builder struct {
	logger *zap.SugaredLogger

	timeNow func() time.Time
}

// NewBuilder creates a graph builder. logger may be nil.
func NewBuilder(logger *zap.SugaredLogger) *Builder {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Builder{logger: logger, timeNow: time.Now}
}

// Build produces one node per entity plus derived nodes for each type,
// category and part-of relation found in the records. Unresolved
// entities keep a node so the graph never loses an input, just without
// derived structure.
func (b *Builder) Build(contexts []*kb.EntityContext) *Graph {
	g := &Graph{}
	nodeIndex := make(map[string]int) // node ID -> index in g.Nodes
	linkSeen := make(map[string]struct{})

	addNode := func(node Node) {
		if _, ok := nodeIndex[node.ID]; ok {
			return
		}
		nodeIndex[node.ID] = len(g.Nodes)
		g.Nodes = append(g.Nodes, node)
	}
	addLink := func(link Link) {
		key := link.Source + "\x00" + link.Target + "\x00" + link.Type
		if _, ok := linkSeen[key]; ok {
			return
		}
		linkSeen[key] = struct{}{}
		g.Links = append(g.Links, link)
	}

	resolved := 0
	for _, ec := range contexts {
		rec := bestRecord(ec)
		node := Node{
			ID:    ec.Name,
			Type:  "entity",
			Label: ec.Name,
			Group: GroupEntity,
		}
		if rec != nil {
			resolved++
			node.Label = firstNonEmpty(rec.Label, ec.Name)
			node.Metadata = map[string]interface{}{
				"uri":        rec.URI,
				"summary":    rec.Summary,
				"provenance": string(rec.Provenance),
			}
		}
		addNode(node)
		if rec == nil {
			continue
		}

		for _, typ := range rec.Types {
			addNode(Node{ID: "type:" + typ, Type: "type", Label: typ, Group: GroupType})
			addLink(Link{Source: ec.Name, Target: "type:" + typ, Type: LinkInstanceOf, Weight: 1})
		}
		for _, category := range rec.Categories {
			addNode(Node{ID: "category:" + category, Type: "category", Label: category, Group: GroupCategory})
			addLink(Link{Source: ec.Name, Target: "category:" + category, Type: LinkCategoryOf, Weight: 0.5})
		}
		for _, parent := range rec.PartOf {
			addNode(Node{ID: parent, Type: "related", Label: parent, Group: GroupRelated})
			addLink(Link{Source: ec.Name, Target: parent, Type: LinkPartOf, Weight: 2})
		}
		for _, part := range rec.HasPart {
			addNode(Node{ID: part, Type: "related", Label: part, Group: GroupRelated})
			addLink(Link{Source: ec.Name, Target: part, Type: LinkHasPart, Weight: 2})
		}
	}

	g.Meta = Meta{
		GeneratedAt: b.timeNow(),
		Stats: Stats{
			TotalNodes:      len(g.Nodes),
			TotalEdges:      len(g.Links),
			ResolvedNodes:   resolved,
			UnresolvedNodes: len(contexts) - resolved,
		},
	}
	b.logger.Debugw("Graph built",
		"nodes", g.Meta.Stats.TotalNodes,
		"edges", g.Meta.Stats.TotalEdges,
		"unresolved", g.Meta.Stats.UnresolvedNodes,
	)
	return g
}

// bestRecord picks the first found record in source priority order.
func bestRecord(ec *kb.EntityContext) *kb.SourceRecord {
	for _, source := range kb.AllSources {
		rec := ec.Record(source)
		if rec != nil && rec.Status == kb.StatusFound {
			return rec
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
