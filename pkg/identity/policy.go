package identity

import (
	"github.com/agentic-navigator/navigator/pkg/models"
)

// Broadcast is the wildcard recipient delivered to every registered agent
// except the sender.
const Broadcast = "*"

// Authorised reports whether from may address to. The policy is static:
// the orchestrator may address anyone; worker agents may only address the
// orchestrator or broadcast. Everything else is denied.
func Authorised(from, to string) bool {
	switch from {
	case models.AgentOrchestrator:
		return true
	case models.AgentSummariser, models.AgentLinker, models.AgentVisualiser:
		return to == models.AgentOrchestrator || to == Broadcast
	default:
		return false
	}
}
