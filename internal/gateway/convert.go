package gateway

import (
	"github.com/flemzord/crosstalk/internal/memory"
	"github.com/flemzord/crosstalk/internal/orchestrator"
	"github.com/flemzord/crosstalk/pkg/protocol"
)

// orchestratorCapture maps a wire capture onto an orchestrator request.
func orchestratorCapture(msg protocol.Capture, sessionID string) orchestrator.CaptureRequest {
	return orchestrator.CaptureRequest{
		Summary:         toMemorySummary(msg.Summary),
		TargetAgent:     msg.TargetAgent,
		SourceModel:     msg.SourceModel,
		ConversationID:  msg.ConversationID,
		SourceSessionID: sessionID,
	}
}

// toMemorySummary maps the wire summary onto the consolidation type.
func toMemorySummary(s protocol.Summary) memory.Summary {
	out := memory.Summary{
		Topic:          s.Topic,
		UserGoal:       s.UserGoal,
		CurrentTask:    s.CurrentTask,
		ImportantFacts: s.ImportantFacts,
		DecisionsMade:  s.DecisionsMade,
		OpenQuestions:  s.OpenQuestions,
		Constraints:    s.Constraints,
	}
	for _, e := range s.Entities {
		out.Entities = append(out.Entities, memory.SummaryEntity{
			Name:    e.Name,
			Type:    e.Type,
			Summary: e.Summary,
		})
	}
	return out
}
