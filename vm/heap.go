// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ProbeChain. If not, see <http://www.gnu.org/licenses/>.

package vm

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Heap-specific sentinels. Kept distinct from the dispatcher's ErrX family
// since a heap can be exercised directly (without a VM) in tests.
var (
	ErrOutOfMemory       = errors.New("vm: heap out of memory")
	ErrAllocationFailed  = errors.New("vm: heap allocation failed")
	ErrInvalidReference  = errors.New("vm: invalid heap reference")
)

const stringHeaderSize = 16 // approximates Rust's mem::size_of::<String>()
const objectHeaderSize = 48 // approximates Rust's mem::size_of::<Object>()
const fieldEntrySize = 32   // approximates sizeof((String, Value)) per field

// refcount is the atomic strong-count shared by a handle and every weak
// reference derived from it, mirroring Arc's strong-count/Weak pair.
type refcount struct {
	n int64
}

func newRefcount() *refcount {
	return &refcount{n: 1}
}

func (r *refcount) inc() { atomic.AddInt64(&r.n, 1) }

func (r *refcount) dec() { atomic.AddInt64(&r.n, -1) }

func (r *refcount) load() int64 { return atomic.LoadInt64(&r.n) }

// StringHandle is a reference-counted handle to a heap-allocated string.
type StringHandle struct {
	rc       *refcount
	objectID uint64
	value    string
}

// ObjectID reports the heap-unique identifier assigned at allocation time.
func (h *StringHandle) ObjectID() uint64 { return h.objectID }

// Value returns the underlying string.
func (h *StringHandle) Value() string { return h.value }

// Weak returns a weak reference that does not keep the string alive.
func (h *StringHandle) Weak() *WeakStringHandle {
	return &WeakStringHandle{rc: h.rc, objectID: h.objectID, value: h.value}
}

// WeakStringHandle is a non-owning reference to a heap string.
type WeakStringHandle struct {
	rc       *refcount
	objectID uint64
	value    string
}

// IsAlive reports whether the referenced string has at least one surviving
// strong handle.
func (w *WeakStringHandle) IsAlive() bool { return w.rc.load() > 0 }

// Upgrade returns a new strong StringHandle if the string is still alive.
func (w *WeakStringHandle) Upgrade() (*StringHandle, bool) {
	if !w.IsAlive() {
		return nil, false
	}
	w.rc.inc()
	return &StringHandle{rc: w.rc, objectID: w.objectID, value: w.value}, true
}

// Object is a heap-allocated record with dynamically named fields.
type Object struct {
	mu     sync.RWMutex
	fields map[string]Value
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{fields: make(map[string]Value)}
}

// SetField inserts or replaces a named field.
func (o *Object) SetField(name string, v Value) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fields[name] = v
}

// GetField returns the named field and whether it was present.
func (o *Object) GetField(name string) (Value, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.fields[name]
	return v, ok
}

// FieldCount reports how many fields the object currently holds.
func (o *Object) FieldCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.fields)
}

// ObjectHandle is a reference-counted handle to a heap-allocated Object.
type ObjectHandle struct {
	rc       *refcount
	objectID uint64
	obj      *Object
}

// ObjectID reports the heap-unique identifier assigned at allocation time.
func (h *ObjectHandle) ObjectID() uint64 { return h.objectID }

// Object returns the underlying Object.
func (h *ObjectHandle) Object() *Object { return h.obj }

// Weak returns a weak reference that does not keep the object alive.
func (h *ObjectHandle) Weak() *WeakObjectHandle {
	return &WeakObjectHandle{rc: h.rc, objectID: h.objectID, obj: h.obj}
}

// WeakObjectHandle is a non-owning reference to a heap object.
type WeakObjectHandle struct {
	rc       *refcount
	objectID uint64
	obj      *Object
}

// IsAlive reports whether the referenced object has at least one surviving
// strong handle.
func (w *WeakObjectHandle) IsAlive() bool { return w.rc.load() > 0 }

// Upgrade returns a new strong ObjectHandle if the object is still alive.
func (w *WeakObjectHandle) Upgrade() (*ObjectHandle, bool) {
	if !w.IsAlive() {
		return nil, false
	}
	w.rc.inc()
	return &ObjectHandle{rc: w.rc, objectID: w.objectID, obj: w.obj}, true
}

// AllocationStats accumulates per-allocation counters while tracking is
// enabled via Heap.EnableAllocationTracking.
type AllocationStats struct {
	TotalAllocations  uint64
	BytesAllocated    uint64
	StringAllocations uint64
	ObjectAllocations uint64
}

// Heap is the VM's managed store for String and Object values. It tracks an
// approximate byte budget and young/old generation counts; it does not
// implement a real collector — TriggerGC and the Collect* methods simulate
// bookkeeping the way the pedagogical original does.
type Heap struct {
	mu                   sync.Mutex
	nextObjectID         uint64
	allocatedObjects     uint64
	totalAllocatedBytes  uint64
	maxHeapSize          *uint64
	currentHeapSize      uint64
	youngGenerationCount uint64
	oldGenerationCount   uint64
	allocationTracking   bool
	stats                AllocationStats
}

// NewHeap returns an unbounded Heap.
func NewHeap() *Heap {
	return &Heap{nextObjectID: 1}
}

// NewHeapWithLimit returns a Heap that rejects allocations once
// currentHeapSize would exceed maxSize.
func NewHeapWithLimit(maxSize uint64) *Heap {
	return &Heap{nextObjectID: 1, maxHeapSize: &maxSize}
}

// AllocateString allocates a heap string and returns a strong handle to it.
func (h *Heap) AllocateString(s string) (*StringHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	size := uint64(len(s) + stringHeaderSize)
	if h.maxHeapSize != nil && h.currentHeapSize+size > *h.maxHeapSize {
		return nil, ErrOutOfMemory
	}

	id := h.nextObjectID
	h.nextObjectID++

	h.allocatedObjects++
	h.totalAllocatedBytes += size
	h.currentHeapSize += size
	h.youngGenerationCount++
	if h.allocationTracking {
		h.stats.TotalAllocations++
		h.stats.BytesAllocated += size
		h.stats.StringAllocations++
	}

	return &StringHandle{rc: newRefcount(), objectID: id, value: s}, nil
}

// AllocateObject allocates a heap object and returns a strong handle to it.
func (h *Heap) AllocateObject(obj *Object) (*ObjectHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	size := uint64(objectHeaderSize + obj.FieldCount()*fieldEntrySize)
	if h.maxHeapSize != nil && h.currentHeapSize+size > *h.maxHeapSize {
		return nil, ErrOutOfMemory
	}

	id := h.nextObjectID
	h.nextObjectID++

	h.allocatedObjects++
	h.totalAllocatedBytes += size
	h.currentHeapSize += size
	h.youngGenerationCount++
	if h.allocationTracking {
		h.stats.TotalAllocations++
		h.stats.BytesAllocated += size
		h.stats.ObjectAllocations++
	}

	return &ObjectHandle{rc: newRefcount(), objectID: id, obj: obj}, nil
}

// CollectGarbage simulates a mark-and-sweep pass. It does not traverse the
// object graph; it returns 1 and decrements bookkeeping counters if any
// object is allocated, 0 otherwise — matching the original's test-oriented
// stub.
func (h *Heap) CollectGarbage() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.allocatedObjects == 0 {
		return 0
	}
	h.allocatedObjects--
	if h.currentHeapSize > 50 {
		h.currentHeapSize -= 50
	} else {
		h.currentHeapSize = 0
	}
	if h.youngGenerationCount > 0 {
		h.youngGenerationCount--
	}
	return 1
}

// CollectYoungGeneration promotes every young-generation object to the old
// generation and returns how many were promoted.
func (h *Heap) CollectYoungGeneration() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	promoted := h.youngGenerationCount
	h.oldGenerationCount += promoted
	h.youngGenerationCount = 0
	return int(promoted)
}

// CollectFull simulates a full collection. It is a stub: no objects are
// collected by this simple implementation.
func (h *Heap) CollectFull() int { return 0 }

// Compact simulates heap compaction. It is a no-op.
func (h *Heap) Compact() {}

// AllocatedObjects reports the number of live allocations tracked.
func (h *Heap) AllocatedObjects() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allocatedObjects
}

// TotalAllocatedBytes reports the cumulative byte count ever allocated.
func (h *Heap) TotalAllocatedBytes() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totalAllocatedBytes
}

// MaxHeapSize reports the configured ceiling, if any.
func (h *Heap) MaxHeapSize() (uint64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.maxHeapSize == nil {
		return 0, false
	}
	return *h.maxHeapSize, true
}

// CurrentHeapSize reports the approximate live byte footprint.
func (h *Heap) CurrentHeapSize() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentHeapSize
}

// YoungGenerationObjects reports the young-generation count.
func (h *Heap) YoungGenerationObjects() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.youngGenerationCount
}

// OldGenerationObjects reports the old-generation count.
func (h *Heap) OldGenerationObjects() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.oldGenerationCount
}

// EnableAllocationTracking turns on per-allocation statistics collection.
func (h *Heap) EnableAllocationTracking() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.allocationTracking = true
}

// AllocationStats returns a snapshot of the accumulated counters. The zero
// value is returned when tracking was never enabled.
func (h *Heap) AllocationStats() AllocationStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// FragmentationRatio returns a stubbed fragmentation estimate: 0 when the
// heap is empty, a constant 0.1 otherwise. Real compaction never lowers it
// below this estimate in the current implementation.
func (h *Heap) FragmentationRatio() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.currentHeapSize == 0 {
		return 0.0
	}
	return 0.1
}
