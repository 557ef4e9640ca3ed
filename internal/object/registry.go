// Package object implements the Object Managers: the per-connection state
// for attachments, transactions, statements, BLOBs, events, services, and
// batches that sit above the Session State Machine. Every manager shares the
// same handle-table shape and the same close-on-broken-connection and
// handle-validation contracts.
package object

import (
	"sync"
	"sync/atomic"
)

// Registry is a generic handle table: server-assigned int32 handles mapping
// to live objects of one kind, guarded the way the teacher's session
// manager guards its sessions map (a concurrent map plus an atomic id
// counter) but parameterized so every object kind gets its own table
// instead of one map keyed by interface{}.
type Registry[T any] struct {
	items sync.Map // int32 -> *T
	next  atomic.Int32
}

// NewRegistry returns an empty registry. Handles start at 1; 0 is reserved
// the way the protocol reserves handle 0 for "no object".
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Register allocates a fresh handle for v and stores it.
func (r *Registry[T]) Register(v *T) int32 {
	handle := r.next.Add(1)
	r.items.Store(handle, v)
	return handle
}

// Lookup returns the object stored at handle, if any.
func (r *Registry[T]) Lookup(handle int32) (*T, bool) {
	v, ok := r.items.Load(handle)
	if !ok {
		return nil, false
	}
	return v.(*T), true
}

// Adopt stores v under an already-assigned handle, without allocating a new
// one. Used when a child object's canonical handle comes from a different
// registry (TransactionManager's shared table) but the owning attachment
// still needs to find it during Detach.
func (r *Registry[T]) Adopt(handle int32, v *T) {
	r.items.Store(handle, v)
}

// Release removes handle from the table. Idempotent: releasing an already
// absent handle is a no-op, which is what makes the client's repeated
// detach/free calls safe after a connection has already gone broken.
func (r *Registry[T]) Release(handle int32) {
	r.items.Delete(handle)
}

// Range visits every live handle. Used by detach/drop to walk and release
// children before removing the parent.
func (r *Registry[T]) Range(f func(handle int32, v *T) bool) {
	r.items.Range(func(k, v any) bool {
		return f(k.(int32), v.(*T))
	})
}
