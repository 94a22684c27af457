package ffi

import (
	"sync"

	"github.com/chazu/ssaeval/rt"
)

// ---------------------------------------------------------------------------
// Handles: pointer-shaped stand-ins for managed values
// ---------------------------------------------------------------------------

// Managed values cannot be handed to native code directly, so a value
// passed as Any (or returned through value_ptr) crosses the boundary as an
// opaque handle. Handles stay valid for the lifetime of the table.

const handleBase uintptr = 0x7a00_0000_0000

// Handles maps opaque addresses to managed values.
type Handles struct {
	mu     sync.RWMutex
	next   uintptr
	values map[uintptr]rt.Value
}

// NewHandles creates an empty handle table.
func NewHandles() *Handles {
	return &Handles{values: make(map[uintptr]rt.Value)}
}

// Register pins v and returns its handle.
func (h *Handles) Register(v rt.Value) uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	addr := handleBase + h.next<<4
	h.values[addr] = v
	return addr
}

// Value returns the value pinned at addr.
func (h *Handles) Value(addr uintptr) (rt.Value, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.values[addr]
	return v, ok
}

// Release unpins the value at addr.
func (h *Handles) Release(addr uintptr) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.values, addr)
}

// Len returns the number of pinned values.
func (h *Handles) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.values)
}
