package cursor

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/mantisdb/recordlayer/kv"
	"github.com/mantisdb/recordlayer/tuple"
)

// encodeTuple packs a tuple into an order-preserving byte string, good
// enough to drive the operators in this package's GetRange-dependent
// tests. It only handles the element kinds those tests actually use
// (int64, string); a real KV-store codec is out of this module's scope.
func encodeTuple(t tuple.Tuple) []byte {
	var buf []byte
	for _, e := range t {
		switch e.Kind() {
		case tuple.KindInt64:
			buf = append(buf, 0x01)
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], uint64(e.Int64()))
			buf = append(buf, b[:]...)
		case tuple.KindString:
			buf = append(buf, 0x02)
			buf = append(buf, []byte(e.String())...)
			buf = append(buf, 0x00)
		default:
			panic(fmt.Sprintf("encodeTuple: unsupported kind %v", e.Kind()))
		}
	}
	return buf
}

func decodeTuple(key []byte) tuple.Tuple {
	var out tuple.Tuple
	for len(key) > 0 {
		tag := key[0]
		key = key[1:]
		switch tag {
		case 0x01:
			v := int64(binary.BigEndian.Uint64(key[:8]))
			key = key[8:]
			out = append(out, tuple.Int64(v))
		case 0x02:
			i := bytes.IndexByte(key, 0x00)
			out = append(out, tuple.String(string(key[:i])))
			key = key[i+1:]
		default:
			panic(fmt.Sprintf("decodeTuple: unknown tag %x", tag))
		}
	}
	return out
}

// memKV is a minimal in-memory kv.Store/kv.Txn good enough to exercise
// real GetRange ordering semantics without a real transactional engine.
type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) CreateTransaction(ctx context.Context) (kv.Txn, error) {
	return &memTxn{kv: m}, nil
}

func (m *memKV) put(key, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = append([]byte(nil), value...)
}

type memTxn struct{ kv *memKV }

func (t *memTxn) GetValue(ctx context.Context, key []byte, snapshot bool) ([]byte, error) {
	t.kv.mu.Lock()
	defer t.kv.mu.Unlock()
	v, ok := t.kv.data[string(key)]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (t *memTxn) GetRange(ctx context.Context, begin, end kv.KeySelector, snapshot bool) (<-chan kv.KeyValue, <-chan error) {
	t.kv.mu.Lock()
	keys := make([]string, 0, len(t.kv.data))
	for k := range t.kv.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var matched []kv.KeyValue
	for _, k := range keys {
		kb := []byte(k)
		if bytes.Compare(kb, begin.Key) < 0 {
			continue
		}
		if bytes.Compare(kb, end.Key) >= 0 {
			continue
		}
		matched = append(matched, kv.KeyValue{Key: kb, Value: t.kv.data[k]})
	}
	t.kv.mu.Unlock()

	kvCh := make(chan kv.KeyValue, len(matched))
	errCh := make(chan error, 1)
	for _, kvp := range matched {
		kvCh <- kvp
	}
	close(kvCh)
	close(errCh)
	return kvCh, errCh
}

func (t *memTxn) GetKey(ctx context.Context, sel kv.KeySelector, snapshot bool) ([]byte, error) {
	return nil, nil
}
func (t *memTxn) Set(ctx context.Context, key, value []byte) { t.kv.put(key, value) }
func (t *memTxn) Clear(ctx context.Context, key []byte) {
	t.kv.mu.Lock()
	defer t.kv.mu.Unlock()
	delete(t.kv.data, string(key))
}
func (t *memTxn) Commit(ctx context.Context) error { return nil }
func (t *memTxn) Cancel()                          {}

// memSubspace packs tuples with encodeTuple under a fixed byte prefix.
type memSubspace struct {
	prefix []byte
}

func newMemSubspace(name string) memSubspace { return memSubspace{prefix: []byte(name + "\x00")} }

func (s memSubspace) Sub(part string) kv.Subspace {
	return memSubspace{prefix: append(append([]byte(nil), s.prefix...), []byte(part+"\x00")...)}
}
func (s memSubspace) Pack(t tuple.Tuple) []byte {
	return append(append([]byte(nil), s.prefix...), encodeTuple(t)...)
}
// Unpack strips this subspace's prefix when present. It also accepts bytes
// with no prefix, since the index-scan covering path decodes a stored
// value tuple through the same subspace codec rather than a key.
func (s memSubspace) Unpack(key []byte) (tuple.Tuple, error) {
	if bytes.HasPrefix(key, s.prefix) {
		key = key[len(s.prefix):]
	}
	return decodeTuple(key), nil
}
func (s memSubspace) Range() (begin, end []byte) {
	return append([]byte(nil), s.prefix...), append(append([]byte(nil), s.prefix...), 0xff)
}
func (s memSubspace) Bytes() []byte { return s.prefix }
