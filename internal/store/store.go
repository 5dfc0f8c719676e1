package store

import (
	"context"

	"github.com/ghrcdaac/granuledb/internal/granule"
)

// Classification is the per-name outcome of a classify run. Each slice is
// sorted by name.
type Classification struct {
	New       []string `json:"new"`
	Changed   []string `json:"changed"`
	Unchanged []string `json:"unchanged"`
}

// Count returns the number of actionable (new or changed) names.
func (c Classification) Count() int {
	return len(c.New) + len(c.Changed)
}

// Actionable returns new and changed names, new first.
func (c Classification) Actionable() []string {
	out := make([]string, 0, c.Count())
	out = append(out, c.New...)
	return append(out, c.Changed...)
}

type Store interface {
	// Lifecycle
	Initialize(ctx context.Context, location string) error
	Location() string
	Close() error

	// Engines
	ClassifyAndRecord(ctx context.Context, batch granule.Batch) (int, error)
	Classify(ctx context.Context, batch granule.Batch) (Classification, error)
	InsertOrFail(ctx context.Context, batch granule.Batch) (int, error)
	Replace(ctx context.Context, batch granule.Batch) (int, error)
	InsertMany(ctx context.Context, batch granule.Batch) (int, error)
	DeleteByNames(ctx context.Context, names []string) (int, error)

	// Queries
	SelectMatching(ctx context.Context, batch granule.Batch) ([]string, error)
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, limit int) ([]granule.Granule, error)
}

var _ Store = (*SQLiteStore)(nil)
