package connector

import (
	"fmt"
	"strings"

	"github.com/stacklok/dbsync-orchestrator/internal/connect"
	"github.com/stacklok/dbsync-orchestrator/internal/task"
)

// MessageNotFound is the health message reported for a connector Kafka Connect does not know
const MessageNotFound = "Connector not found"

// Health is the derived health of a connector
type Health struct {
	Status  task.HealthStatus
	Message string

	// Raw is the status snapshot the health was derived from; nil when the connector is absent
	Raw *connect.ConnectorStatus
}

// DeriveHealth maps a connector state and its task states to a health status.
// State comparisons ignore case.
func DeriveHealth(state string, tasks []connect.TaskState) task.HealthStatus {
	switch {
	case connect.IsState(state, connect.StateRunning):
		for _, t := range tasks {
			if !connect.IsState(t.State, connect.StateRunning) {
				return task.HealthDegraded
			}
		}
		return task.HealthHealthy
	case connect.IsState(state, connect.StatePaused):
		return task.HealthPaused
	case connect.IsState(state, connect.StateFailed):
		return task.HealthUnhealthy
	default:
		return task.HealthUnknown
	}
}

// HealthMessage describes a status snapshot for operators, e.g.
// "Connector state: RUNNING, Running tasks: 1/2, Error: <trace>".
func HealthMessage(status *connect.ConnectorStatus) string {
	if status == nil {
		return MessageNotFound
	}
	var b strings.Builder
	b.WriteString("Connector state: ")
	b.WriteString(status.Connector.State)

	running := 0
	trace := ""
	failed := false
	for _, t := range status.Tasks {
		if connect.IsState(t.State, connect.StateRunning) {
			running++
		}
		if !failed && connect.IsState(t.State, connect.StateFailed) {
			failed = true
			trace = t.Trace
		}
	}
	fmt.Fprintf(&b, ", Running tasks: %d/%d", running, len(status.Tasks))
	if failed {
		b.WriteString(", Error: ")
		b.WriteString(trace)
	}
	return b.String()
}

func healthOf(status *connect.ConnectorStatus) Health {
	return Health{
		Status:  DeriveHealth(status.Connector.State, status.Tasks),
		Message: HealthMessage(status),
		Raw:     status,
	}
}
