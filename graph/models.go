// Package graph turns enriched entity contexts into a renderable
// knowledge graph: one node per entity plus derived nodes for types,
// categories and part-of relations.
package graph

import (
	"time"
)

// Graph is the complete structure handed to visualization.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
	Meta  Meta   `json:"meta"`
}

// Node is one entity or derived concept in the graph.
type Node struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"` // "entity", "type", "category" or "related"
	Label    string                 `json:"label"`
	Group    int                    `json:"group,omitempty"` // for coloring/clustering
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Link is one relationship between nodes.
type Link struct {
	Source string  `json:"source"` // node ID
	Target string  `json:"target"` // node ID
	Type   string  `json:"type"`   // "instance_of", "category_of", "part_of", "has_part"
	Weight float64 `json:"value"`  // D3 uses "value"
}

// Meta carries graph-level metadata.
type Meta struct {
	GeneratedAt time.Time `json:"generated_at"`
	Stats       Stats     `json:"stats"`
}

// Stats summarizes the graph.
type Stats struct {
	TotalNodes      int `json:"total_nodes"`
	TotalEdges      int `json:"total_edges"`
	ResolvedNodes   int `json:"resolved_nodes"`
	UnresolvedNodes int `json:"unresolved_nodes"`
}

// Link types by relation kind.
const (
	LinkInstanceOf = "instance_of"
	LinkCategoryOf = "category_of"
	LinkPartOf     = "part_of"
	LinkHasPart    = "has_part"
)

// Node groups for clustering.
const (
	GroupEntity = iota + 1
	GroupType
	GroupCategory
	GroupRelated
)
