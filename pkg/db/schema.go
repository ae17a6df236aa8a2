package db

import "context"

// SchemaInterface manages the version of the database schema.
type SchemaInterface interface {
	// Upgrade applies all versions newer than the database.
	Upgrade(ctx context.Context) error

	// Version is the version applied to the database.
	Version(ctx context.Context) (int, error)

	// Context derives a context canceled once the database is behind the schema repository.
	//
	// Processes depending on the schema run in the context, and stop on upgrade.
	Context(ctx context.Context) (context.Context, context.CancelFunc)
}
