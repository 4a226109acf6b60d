// Package kv declares the external KV-store collaborator interfaces from
// §6. The transaction API, on-disk layout and conflict tracking all belong
// to the KV store itself (§1 non-goals) — this package only states the
// shape the planner and cursor engine depend on. Every blocking call takes
// a context.Context: the engine's task-based concurrency model (§5)
// suspends at these boundaries rather than blocking an OS thread.
package kv

import (
	"context"

	"github.com/mantisdb/recordlayer/tuple"
)

// Store creates transactions against the underlying KV store.
type Store interface {
	CreateTransaction(ctx context.Context) (Txn, error)
}

// KeyValue is one entry returned from a range read.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// Txn is the transaction collaborator. Snapshot reads (snapshot=true)
// request read-committed-within-txn semantics without conflict tracking
// (§5 "Snapshot semantics").
type Txn interface {
	GetValue(ctx context.Context, key []byte, snapshot bool) ([]byte, error)

	// GetRange streams (key, value) pairs in the half-open range
	// [begin, end) in key order. The returned channel is closed when the
	// range is exhausted or ctx is cancelled; errCh yields at most one
	// error.
	GetRange(ctx context.Context, begin, end KeySelector, snapshot bool) (<-chan KeyValue, <-chan error)

	// GetKey resolves a key selector to a concrete key, used for MIN/MAX
	// evaluation.
	GetKey(ctx context.Context, sel KeySelector, snapshot bool) ([]byte, error)

	Set(ctx context.Context, key, value []byte)
	Clear(ctx context.Context, key []byte)

	Commit(ctx context.Context) error
	Cancel()
}

// KeySelector mirrors the three selector constructors from §6.
type KeySelector struct {
	Key       []byte
	OrEqual   bool
	Offset    int
	greater   bool
	lastLess  bool
}

func FirstGreaterOrEqual(k []byte) KeySelector {
	return KeySelector{Key: k, OrEqual: true, greater: true}
}

func FirstGreaterThan(k []byte) KeySelector {
	return KeySelector{Key: k, greater: true}
}

func LastLessThan(k []byte) KeySelector {
	return KeySelector{Key: k, lastLess: true}
}

// Subspace reserves a key prefix for one logical keyspace (a record type,
// an index, the statistics sub-keyspace). Pack/Unpack defer to the
// KV-store's tuple codec, which is an external collaborator (§1); this
// package only declares the contract.
type Subspace interface {
	Sub(part string) Subspace
	Pack(t tuple.Tuple) []byte
	Unpack(key []byte) (tuple.Tuple, error)
	Range() (begin, end []byte)
	Bytes() []byte
}
