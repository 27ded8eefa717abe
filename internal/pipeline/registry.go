// Package pipeline selects and executes outstanding work, updating the
// manifest with successes as they land.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Producer fetches one unit of data for one date, leaving a single output
// file at outputPath and returning the row count. Zero rows is success;
// producers return an error only for genuine failures.
type Producer func(ctx context.Context, db *sql.DB, date, outputPath, network string) (int64, error)

// Registry maps work-unit ids to statically bound producers. It is assembled
// once at startup; no name-based resolution happens anywhere downstream.
type Registry struct {
	producers map[string]Producer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{producers: map[string]Producer{}}
}

// Register binds a producer to a unit id, replacing any previous binding.
func (r *Registry) Register(id string, p Producer) {
	r.producers[id] = p
}

// Producer returns the producer bound to a unit id.
func (r *Registry) Producer(id string) (Producer, error) {
	p, ok := r.producers[id]
	if !ok {
		return nil, fmt.Errorf("no producer registered for unit %q", id)
	}
	return p, nil
}

// IDs returns the registered unit ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.producers))
	for id := range r.producers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
