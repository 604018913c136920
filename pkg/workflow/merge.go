package workflow

import (
	"log/slog"

	"github.com/agentic-navigator/navigator/pkg/models"
)

// orchestratorNotesKey is where the orchestrator's observations land in
// summary_insights.
const orchestratorNotesKey = "orchestrator_notes"

// merge applies a partial result to the context, honouring the field
// ownership table. Each field is writable by exactly one agent; writes
// outside the owner's turn are logged and dropped. A field already
// written is never overwritten.
func merge(sc *models.SessionContext, agent string, pr *PartialResult, logger *slog.Logger) {
	if pr == nil {
		return
	}

	switch agent {
	case models.AgentOrchestrator:
		if pr.ContentType != "" && sc.ContentType == "" {
			sc.ContentType = pr.ContentType
		}
		if notes, ok := pr.SummaryInsights[orchestratorNotesKey]; ok {
			if sc.SummaryInsights == nil {
				sc.SummaryInsights = make(map[string]any)
			}
			sc.SummaryInsights[orchestratorNotesKey] = notes
		}
		dropOutOfTurn(agent, pr, logger, fieldSummaryText, fieldKeyEntities, fieldRelationships, fieldEntityMetadata, fieldGraphJSON)

	case models.AgentSummariser:
		if pr.SummaryText != "" && sc.SummaryText == "" {
			sc.SummaryText = pr.SummaryText
		}
		for k, v := range pr.SummaryInsights {
			if sc.SummaryInsights == nil {
				sc.SummaryInsights = make(map[string]any)
			}
			if _, taken := sc.SummaryInsights[k]; !taken {
				sc.SummaryInsights[k] = v
			}
		}
		dropOutOfTurn(agent, pr, logger, fieldKeyEntities, fieldRelationships, fieldEntityMetadata, fieldGraphJSON)

	case models.AgentLinker:
		if len(pr.KeyEntities) > 0 && sc.KeyEntities == nil {
			sc.KeyEntities = pr.KeyEntities
		}
		if len(pr.Relationships) > 0 && sc.Relationships == nil {
			sc.Relationships = pr.Relationships
		}
		if len(pr.EntityMetadata) > 0 && sc.EntityMetadata == nil {
			sc.EntityMetadata = pr.EntityMetadata
		}
		dropOutOfTurn(agent, pr, logger, fieldSummaryText, fieldGraphJSON)

	case models.AgentVisualiser:
		if pr.GraphJSON != nil && sc.GraphJSON == nil {
			sc.GraphJSON = pr.GraphJSON
		}
		dropOutOfTurn(agent, pr, logger, fieldSummaryText, fieldKeyEntities, fieldRelationships, fieldEntityMetadata)
	}

	for key := range pr.Extra {
		logger.Warn("Ignoring unknown partial result key", "agent", agent, "key", key)
	}
}

const (
	fieldSummaryText    = "summary_text"
	fieldKeyEntities    = "key_entities"
	fieldRelationships  = "relationships"
	fieldEntityMetadata = "entity_metadata"
	fieldGraphJSON      = "graph_json"
)

// dropOutOfTurn logs every populated field the agent does not own.
func dropOutOfTurn(agent string, pr *PartialResult, logger *slog.Logger, fields ...string) {
	for _, field := range fields {
		populated := false
		switch field {
		case fieldSummaryText:
			populated = pr.SummaryText != ""
		case fieldKeyEntities:
			populated = len(pr.KeyEntities) > 0
		case fieldRelationships:
			populated = len(pr.Relationships) > 0
		case fieldEntityMetadata:
			populated = len(pr.EntityMetadata) > 0
		case fieldGraphJSON:
			populated = pr.GraphJSON != nil
		}
		if populated {
			logger.Warn("Dropping field written outside owning agent's turn",
				"agent", agent, "field", field)
		}
	}
}
