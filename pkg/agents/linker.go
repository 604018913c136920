package agents

import (
	"context"
	"regexp"
	"strings"

	"github.com/agentic-navigator/navigator/pkg/models"
	"github.com/agentic-navigator/navigator/pkg/workflow"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "in": true, "into": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true,
	"that": true, "the": true, "this": true, "to": true, "was": true,
	"were": true, "which": true, "with": true,
}

// copulaPattern matches "<source> is/are the <label> of (the) <target>".
var copulaPattern = regexp.MustCompile(`(?i)\b([\p{L}-]+)\s+(?:is|are)\s+the\s+([\p{L}-]+)\s+of\s+(?:the\s+)?([\p{L}-]+)`)

// Linker extracts entities and directed relationships from the raw
// input. It owns key_entities, relationships and entity_metadata.
type Linker struct{}

func NewLinker() *Linker {
	return &Linker{}
}

func (l *Linker) Name() string {
	return models.AgentLinker
}

func (l *Linker) Process(ctx context.Context, view *models.SessionContext, opts workflow.Options) (*workflow.PartialResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entities, metadata := extractEntities(view.RawInput)
	relationships := extractRelationships(view.RawInput)

	return &workflow.PartialResult{
		KeyEntities:    entities,
		Relationships:  relationships,
		EntityMetadata: metadata,
	}, nil
}

// extractEntities returns the distinct non-stopword terms in first-seen
// order, with occurrence counts as metadata.
func extractEntities(text string) ([]string, map[string]map[string]any) {
	counts := make(map[string]int)
	var order []string
	for _, raw := range strings.Fields(text) {
		word := normaliseWord(raw)
		if len(word) < 3 || stopwords[word] {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}

	metadata := make(map[string]map[string]any, len(order))
	for _, entity := range order {
		metadata[entity] = map[string]any{"occurrences": counts[entity]}
	}
	return order, metadata
}

func extractRelationships(text string) []models.EntityRelationship {
	var out []models.EntityRelationship
	for _, match := range copulaPattern.FindAllStringSubmatch(text, -1) {
		source := normaliseWord(match[1])
		label := normaliseWord(match[2])
		target := normaliseWord(match[3])
		if source == "" || target == "" || stopwords[source] || stopwords[target] {
			continue
		}
		out = append(out, models.EntityRelationship{
			Source:     source,
			Target:     target,
			Type:       "related_to",
			Label:      label + " of",
			Confidence: models.ConfidenceHigh,
		})
	}
	return out
}

func normaliseWord(raw string) string {
	return strings.ToLower(strings.Trim(raw, ".,;:!?\"'()[]{}"))
}
