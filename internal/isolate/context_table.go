package isolate

import (
	"sync"

	"github.com/gmfc/helios-os/internal/bridge"
)

// SyscallContext is the per-isolate data the syscall callback needs to
// reach back into the host: which bridge to call into, and on whose
// behalf. It replaces the original engine's boxed raw pointer handed to
// the engine as opaque external data — here the guest callback recovers
// it by a small integer handle captured in its FunctionTemplate closure,
// never by a raw address.
type SyscallContext struct {
	Bridge *bridge.Bridge
	Pid    uint32
}

// contextTable is the arena of live SyscallContexts, keyed by handle. A
// handle outlives every guest function that may read it and is removed
// exactly once, when its isolate is torn down.
type contextTable struct {
	mu      sync.Mutex
	next    int64
	entries map[int64]*SyscallContext
}

func newContextTable() *contextTable {
	return &contextTable{entries: make(map[int64]*SyscallContext)}
}

func (t *contextTable) put(sc *SyscallContext) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	handle := t.next
	t.entries[handle] = sc
	return handle
}

func (t *contextTable) get(handle int64) (*SyscallContext, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sc, ok := t.entries[handle]
	return sc, ok
}

func (t *contextTable) remove(handle int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, handle)
}
