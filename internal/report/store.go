package report

import "context"

// Store is the persistence boundary for report definitions. Implementations
// return failures as error values; nothing crosses the boundary as a panic.
type Store interface {
	// List returns summaries of all stored definitions, most recently
	// updated first.
	List(ctx context.Context) ([]Summary, error)

	// Get returns the definition with the given id, or an error when it
	// does not exist.
	Get(ctx context.Context, id int64) (*Definition, error)

	// Create persists a new definition and returns the stored copy with its
	// assigned id and timestamps.
	Create(ctx context.Context, def *Definition) (*Definition, error)

	// Update replaces the stored definition with the given id and returns
	// the stored copy.
	Update(ctx context.Context, id int64, def *Definition) (*Definition, error)

	// Delete removes the definition with the given id. The boolean reports
	// whether a row was actually removed.
	Delete(ctx context.Context, id int64) (bool, error)
}
