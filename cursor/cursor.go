// Package cursor implements the streaming physical-operator engine from
// §4.4. Every operator is a lazy, single-consumer cursor over a subspace,
// record accessor and transaction; all satisfy the same Cursor contract so
// operators compose by wrapping one another (§9 "Ownership of cursors").
package cursor

import (
	"context"

	"github.com/mantisdb/recordlayer/kv"
	"github.com/mantisdb/recordlayer/record"
	"github.com/mantisdb/recordlayer/tuple"
)

// Cursor is the common contract every physical operator satisfies: a
// forward-only, single-consumer stream, shaped after the teacher's own
// key-value Iterator (Next/Key/Value/Error/Close) but carrying decoded
// records and a context on the blocking step, per the task-suspension
// model in §5.
type Cursor interface {
	// Next advances the cursor and reports whether a record is available.
	// It blocks (suspending the calling task, never an OS thread) on
	// KV-store I/O as needed.
	Next(ctx context.Context) bool

	// Record returns the record produced by the most recent Next call that
	// returned true. Its result is undefined otherwise.
	Record() record.Record

	// Err returns the first error encountered, if any. Callers must check
	// Err after Next returns false to distinguish exhaustion from failure.
	Err() error

	// Close releases the cursor's resources. Cursors that created their
	// own transaction cancel it here; cursors that borrowed the caller's
	// transaction do not touch it.
	Close()
}

// Env bundles the dependencies every operator needs to execute: the record
// subspace, the record accessor, the transaction and the
// snapshot-read flag. It is passed by value down the plan tree so nested
// operators share one set of collaborators without a global.
type Env struct {
	RecordSubspace kv.Subspace
	Accessor       record.Accessor
	Txn            kv.Txn
	Snapshot       bool
}

// primaryKeyOf is a small convenience used by every operator that needs a
// record's PK for deduplication or merge comparison.
func primaryKeyOf(env Env, r record.Record, pk record.PrimaryKey) (primaryKeyTuple, error) {
	t, err := env.Accessor.ExtractPrimaryKey(r, pk)
	if err != nil {
		return nil, err
	}
	return primaryKeyTuple(t), nil
}

// fetchByPK point-reads a single record by its type name and primary key,
// per the record key layout in §6: `<record-subspace> <recordTypeName>
// <primaryKeyTuple>`. Used by operators (vector k-NN, spatial range) that
// resolve candidate PKs from an external index source rather than a
// subspace range scan.
func (env Env) fetchByPK(ctx context.Context, recordType string, pk tuple.Tuple) (record.Record, error) {
	key := env.RecordSubspace.Pack(append(recordTypeTuple(recordType), pk...))
	raw, err := env.Txn.GetValue(ctx, key, env.Snapshot)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return env.Accessor.Deserialize(ctx, raw)
}
