package connect

import (
	"strings"
)

// Connector and task states reported by Kafka Connect.
const (
	StateRunning    = "RUNNING"
	StatePaused     = "PAUSED"
	StateFailed     = "FAILED"
	StateUnassigned = "UNASSIGNED"
	StateRestarting = "RESTARTING"
	StateStopped    = "STOPPED"
)

// ConnectorInfo is the definition of a connector as stored by Kafka Connect.
type ConnectorInfo struct {
	Name   string            `json:"name"`
	Config map[string]string `json:"config"`
	Tasks  []TaskRef         `json:"tasks"`
	Type   string            `json:"type,omitempty"`
}

// ServerInfo describes the Kafka Connect worker answering the REST API.
type ServerInfo struct {
	Version        string `json:"version"`
	Commit         string `json:"commit"`
	KafkaClusterID string `json:"kafka_cluster_id"`
}

// TaskRef identifies one task of a connector.
type TaskRef struct {
	Connector string `json:"connector"`
	Task      int    `json:"task"`
}

// ConnectorStatus is the run state of a connector and its workers.
type ConnectorStatus struct {
	Name      string
	Connector WorkerState
	Tasks     []TaskState
	Type      string
}

// WorkerState is the state of the connector instance.
type WorkerState struct {
	State    string
	WorkerID string
	Trace    string
}

// TaskState is the state of a single connector task.
type TaskState struct {
	ID       int
	State    string
	WorkerID string
	Trace    string
}

// IsState compares a reported state case-insensitively.
func IsState(reported, want string) bool {
	return strings.EqualFold(strings.TrimSpace(reported), want)
}

// ValidationResult is the outcome of validating a connector configuration.
type ValidationResult struct {
	Name       string
	ErrorCount int
	Groups     []string
	Configs    []ConfigValidation
}

// ConfigValidation is the validation outcome of a single configuration key.
type ConfigValidation struct {
	Name   string
	Value  string
	Errors []string
}

// Valid reports whether the configuration has no validation errors.
func (v *ValidationResult) Valid() bool {
	return v != nil && v.ErrorCount == 0
}

// Problems returns "key: error" lines for every failing key.
func (v *ValidationResult) Problems() []string {
	if v == nil {
		return nil
	}
	var out []string
	for _, c := range v.Configs {
		for _, e := range c.Errors {
			out = append(out, c.Name+": "+e)
		}
	}
	return out
}
