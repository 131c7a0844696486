// Package builder turns sync tasks into Kafka Connect connector configurations.
// Each supported source database kind has one Builder strategy, looked up through a Registry.
package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"github.com/stacklok/dbsync-orchestrator/internal/task"
)

//go:generate mockgen -destination=mocks/mock_builder.go -package=mocks -source=builder.go Builder

// Builder produces the connector configuration for one source database kind
type Builder interface {
	// Kind returns the database kind handled by this builder
	Kind() task.DatabaseKind

	// ConnectorClass returns the Kafka Connect plugin class of the produced configuration
	ConnectorClass() string

	// BuildConfig derives the connector configuration from the task. It performs no I/O.
	BuildConfig(t *task.SyncTask) (map[string]string, error)

	// ValidateConnection probes that the source database described by raw is reachable.
	// It never returns an error; any failure yields false.
	ValidateConnection(ctx context.Context, raw json.RawMessage) bool
}

// Registry maps database kinds to their builders. It is immutable after construction.
type Registry struct {
	builders map[task.DatabaseKind]Builder
}

// NewRegistry creates a registry from the given builders. Registering two builders
// for the same kind is an error.
func NewRegistry(builders ...Builder) (*Registry, error) {
	r := &Registry{builders: make(map[task.DatabaseKind]Builder, len(builders))}
	for _, b := range builders {
		if b == nil {
			return nil, fmt.Errorf("nil builder")
		}
		if _, dup := r.builders[b.Kind()]; dup {
			return nil, fmt.Errorf("duplicate builder for database kind %s", b.Kind())
		}
		r.builders[b.Kind()] = b
	}
	return r, nil
}

// Get returns the builder for kind
func (r *Registry) Get(kind task.DatabaseKind) (Builder, bool) {
	b, ok := r.builders[kind]
	return b, ok
}

// Kinds returns the registered kinds in a stable order
func (r *Registry) Kinds() []task.DatabaseKind {
	kinds := make([]task.DatabaseKind, 0, len(r.builders))
	for k := range r.builders {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Require fails when any of the given kinds has no registered builder
func (r *Registry) Require(kinds ...task.DatabaseKind) error {
	var missing []string
	for _, k := range kinds {
		if _, ok := r.builders[k]; !ok {
			missing = append(missing, string(k))
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("no connector builder registered for database kinds %v", missing)
	}
	return nil
}
