package agents

import (
	"context"
	"fmt"

	"github.com/agentic-navigator/navigator/pkg/models"
	"github.com/agentic-navigator/navigator/pkg/workflow"
)

// GraphTypeMindMap is the layout the visualiser renders.
const GraphTypeMindMap = "MIND_MAP"

// Visualiser lays out the extracted entities and relationships as a
// mind map rooted at the most prominent entity. It owns graph_json.
type Visualiser struct{}

func NewVisualiser() *Visualiser {
	return &Visualiser{}
}

func (v *Visualiser) Name() string {
	return models.AgentVisualiser
}

func (v *Visualiser) Process(ctx context.Context, view *models.SessionContext, opts workflow.Options) (*workflow.PartialResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	graph := &models.GraphJSON{
		Type:  GraphTypeMindMap,
		Nodes: []models.GraphNode{},
		Edges: []models.GraphEdge{},
	}

	seen := make(map[string]bool)
	for _, entity := range view.KeyEntities {
		if seen[entity] {
			continue
		}
		seen[entity] = true
		node := models.GraphNode{ID: entity, Label: entity}
		if meta, ok := view.EntityMetadata[entity]; ok {
			node.Data = meta
		}
		graph.Nodes = append(graph.Nodes, node)
	}

	for i, rel := range view.Relationships {
		if !seen[rel.Source] || !seen[rel.Target] {
			continue
		}
		graph.Edges = append(graph.Edges, models.GraphEdge{
			ID:     fmt.Sprintf("e%d", i+1),
			Source: rel.Source,
			Target: rel.Target,
			Label:  rel.Label,
		})
	}

	return &workflow.PartialResult{GraphJSON: graph}, nil
}
