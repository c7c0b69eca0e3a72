package engine

import (
	"context"
	"dbeval/generator"
)

// Engine is the capability interface every backend adapter implements. All
// methods are called by a single goroutine.
type Engine interface {
	// Returns the backend name (e.g., "mongodb")
	Name() string
	// Returns which guarantees the backend enforces itself and which the adapter emulates
	Capabilities() Capabilities
	// Drops the schema object if it exists (best-effort) and creates it with its indexes and constraints
	Provision(ctx context.Context, schema string) error
	// Drops the schema object, ignoring any failure
	Drop(ctx context.Context, schema string)
	// Inserts the records as one bulk operation and returns how many were stored
	InsertMany(ctx context.Context, schema string, records []generator.Record) (int, error)
	// Inserts a single record and classifies the result
	InsertOne(ctx context.Context, schema string, record generator.Record) Outcome
	// Reads the records matching the filter (at most limit, 0 for all) and returns how many were read
	Find(ctx context.Context, schema string, filter Filter, limit int) (int, error)
	// Counts the records matching the filter
	Count(ctx context.Context, schema string, filter Filter) (int64, error)
	// Applies the mutation to the records matching the filter and returns how many were modified
	Update(ctx context.Context, schema string, filter Filter, mutation Mutation) (int64, error)
	// Deletes the records matching the filter (cascading to dependents) and returns how many were deleted
	Delete(ctx context.Context, schema string, filter Filter) (int64, error)
	// Runs fn as one all-or-nothing unit; any error returned by fn aborts it
	RunTransaction(ctx context.Context, fn TxFunc) Outcome
	// Returns storage statistics of the harness schema objects
	Stats(ctx context.Context) (Stats, error)
	// Releases the connection
	Close(ctx context.Context) error
}

// Tx is the view of the backend inside a transaction.
type Tx interface {
	// Returns the first record matching the filter, locking it until the transaction ends
	FindOne(ctx context.Context, schema string, filter Filter) (generator.Record, bool, error)
	Insert(ctx context.Context, schema string, record generator.Record) error
	Update(ctx context.Context, schema string, filter Filter, mutation Mutation) (int64, error)
}

type TxFunc func(ctx context.Context, tx Tx) error

type Guarantee string

const (
	// Enforced by the database itself
	Native Guarantee = "native"
	// Enforced by the adapter before or around the write
	Emulated Guarantee = "emulated"
	Unsupported Guarantee = "unsupported"
)

type Capabilities struct {
	SchemaMigrationRequired bool      `json:"schema_migration_required" yaml:"schema_migration_required"`
	NestedStructures        Guarantee `json:"nested_structures" yaml:"nested_structures"`
	Validation              Guarantee `json:"validation" yaml:"validation"`
	References              Guarantee `json:"references" yaml:"references"`
	CascadeDelete           Guarantee `json:"cascade_delete" yaml:"cascade_delete"`
	Transactions            Guarantee `json:"transactions" yaml:"transactions"`
}

type Stats struct {
	StorageBytes int64 `json:"storage_bytes" yaml:"storage_bytes"`
}
