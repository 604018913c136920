package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-navigator/navigator/pkg/config"
	"github.com/agentic-navigator/navigator/pkg/models"
	"github.com/agentic-navigator/navigator/pkg/workflow"
)

const sampleDocument = "The mitochondrion is the powerhouse of the cell."

func testOptions() workflow.Options {
	return workflow.Options{ModelType: config.ModelTypePrimary, CorrelationID: "c1"}
}

func TestOrchestrator_DetectsDocument(t *testing.T) {
	view := models.NewSessionContext("s1", sampleDocument, "")

	pr, err := NewOrchestrator().Process(context.Background(), view, testOptions())
	require.NoError(t, err)

	assert.Equal(t, models.ContentTypeDocument, pr.ContentType)
	assert.Contains(t, pr.SummaryInsights["orchestrator_notes"], "content_type=document")
}

func TestOrchestrator_DetectsCodebase(t *testing.T) {
	source := "package main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println(\"hi\") }\n"
	view := models.NewSessionContext("s1", source, "")

	pr, err := NewOrchestrator().Process(context.Background(), view, testOptions())
	require.NoError(t, err)
	assert.Equal(t, models.ContentTypeCodebase, pr.ContentType)
}

func TestSummariser_ExtractiveSummary(t *testing.T) {
	long := "First sentence. Second sentence. Third sentence. Fourth sentence."
	view := models.NewSessionContext("s1", long, models.ContentTypeDocument)

	pr, err := NewSummariser().Process(context.Background(), view, testOptions())
	require.NoError(t, err)

	assert.Equal(t, "First sentence. Second sentence. Third sentence.", pr.SummaryText)
	assert.Equal(t, 4, pr.SummaryInsights["sentence_count"])
	assert.Equal(t, "primary", pr.SummaryInsights["model_type"])
}

func TestSummariser_ShortInputSummarisedWhole(t *testing.T) {
	view := models.NewSessionContext("s1", sampleDocument, models.ContentTypeDocument)

	pr, err := NewSummariser().Process(context.Background(), view, testOptions())
	require.NoError(t, err)
	assert.Equal(t, sampleDocument, pr.SummaryText)
}

func TestLinker_ExtractsEntitiesAndRelationships(t *testing.T) {
	view := models.NewSessionContext("s1", sampleDocument, models.ContentTypeDocument)

	pr, err := NewLinker().Process(context.Background(), view, testOptions())
	require.NoError(t, err)

	assert.Contains(t, pr.KeyEntities, "mitochondrion")
	assert.Contains(t, pr.KeyEntities, "cell")

	require.NotEmpty(t, pr.Relationships)
	rel := pr.Relationships[0]
	assert.Equal(t, "mitochondrion", rel.Source)
	assert.Equal(t, "cell", rel.Target)
	assert.Equal(t, "powerhouse of", rel.Label)
	assert.Equal(t, models.ConfidenceHigh, rel.Confidence)

	require.Contains(t, pr.EntityMetadata, "mitochondrion")
	assert.Equal(t, 1, pr.EntityMetadata["mitochondrion"]["occurrences"])
}

func TestLinker_Deterministic(t *testing.T) {
	view := models.NewSessionContext("s1", sampleDocument, models.ContentTypeDocument)
	linker := NewLinker()

	first, err := linker.Process(context.Background(), view, testOptions())
	require.NoError(t, err)
	second, err := linker.Process(context.Background(), view, testOptions())
	require.NoError(t, err)

	assert.Equal(t, first.KeyEntities, second.KeyEntities)
	assert.Equal(t, first.Relationships, second.Relationships)
}

func TestVisualiser_BuildsMindMap(t *testing.T) {
	view := models.NewSessionContext("s1", sampleDocument, models.ContentTypeDocument)
	view.KeyEntities = []string{"mitochondrion", "powerhouse", "cell"}
	view.Relationships = []models.EntityRelationship{
		{Source: "mitochondrion", Target: "cell", Type: "related_to", Label: "powerhouse of", Confidence: models.ConfidenceHigh},
	}
	view.EntityMetadata = map[string]map[string]any{
		"mitochondrion": {"occurrences": 1},
	}

	pr, err := NewVisualiser().Process(context.Background(), view, testOptions())
	require.NoError(t, err)

	graph := pr.GraphJSON
	require.NotNil(t, graph)
	assert.Equal(t, GraphTypeMindMap, graph.Type)
	assert.Len(t, graph.Nodes, 3)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, "mitochondrion", graph.Edges[0].Source)
	assert.Equal(t, "cell", graph.Edges[0].Target)
}

func TestVisualiser_SkipsEdgesWithUnknownEndpoints(t *testing.T) {
	view := models.NewSessionContext("s1", "", models.ContentTypeDocument)
	view.KeyEntities = []string{"alpha"}
	view.Relationships = []models.EntityRelationship{
		{Source: "alpha", Target: "missing", Type: "related_to", Label: "x", Confidence: models.ConfidenceLow},
	}

	pr, err := NewVisualiser().Process(context.Background(), view, testOptions())
	require.NoError(t, err)
	assert.Empty(t, pr.GraphJSON.Edges)
}

func TestAgents_HonourContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	view := models.NewSessionContext("s1", sampleDocument, models.ContentTypeDocument)

	plugins := []workflow.AgentPlugin{NewOrchestrator(), NewSummariser(), NewLinker(), NewVisualiser()}
	for _, p := range plugins {
		_, err := p.Process(ctx, view, testOptions())
		assert.ErrorIs(t, err, context.Canceled, p.Name())
	}
}
