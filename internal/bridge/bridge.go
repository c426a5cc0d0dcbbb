// Package bridge implements the syscall bridge: the correlated,
// bidirectional channel that lets guest code suspend on a host-mediated
// operation and resume once the shell answers it.
package bridge

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gmfc/helios-os/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrSyscallFailed is surfaced to the guest (as a rejected deferred value)
// when a pending syscall is force-rejected without ever receiving a
// response (isolate teardown, drop_isolate).
var ErrSyscallFailed = errors.New("syscall failed")

// ErrSendFailed guards trySend's recover() path: Respond and ForceReject
// both reclaim an id's table entry atomically under mu before touching
// its channel, so in practice only one of them ever reaches a given
// entry and this is never actually returned. It stays as a defensive
// fallback rather than a panic if that invariant is ever broken.
var ErrSendFailed = errors.New("send failed")

type syscallResult struct {
	value json.RawMessage
	err   error
}

type pendingEntry struct {
	ch  chan syscallResult
	pid uint32
}

// Bridge owns the correlation-id counter and the pending-syscall table. A
// single Bridge is shared by every isolate in the process.
type Bridge struct {
	nextID uint64 // atomic, monotonically increasing

	mu      sync.Mutex
	pending map[uint64]*pendingEntry
	byPid   map[uint32]map[uint64]struct{}

	emit func(types.SyscallEvent)
}

// New creates a Bridge that calls emit for every syscall event headed to
// the shell.
func New(emit func(types.SyscallEvent)) *Bridge {
	return &Bridge{
		pending: make(map[uint64]*pendingEntry),
		byPid:   make(map[uint32]map[uint64]struct{}),
		emit:    emit,
	}
}

// Syscall allocates a correlation id, emits the "syscall" event, and blocks
// the calling goroutine until a matching Respond (or a force-reject)
// arrives. It is the host-side half of the guest's injected syscall(...)
// function.
func (b *Bridge) Syscall(pid uint32, call string, args []json.RawMessage) (json.RawMessage, error) {
	id := atomic.AddUint64(&b.nextID, 1)
	ch := make(chan syscallResult, 1)

	b.mu.Lock()
	b.pending[id] = &pendingEntry{ch: ch, pid: pid}
	if b.byPid[pid] == nil {
		b.byPid[pid] = make(map[uint64]struct{})
	}
	b.byPid[pid][id] = struct{}{}
	b.mu.Unlock()

	start := time.Now()
	b.emit(types.SyscallEvent{ID: id, Pid: pid, Call: call, Args: args})

	res, ok := <-ch
	syscallRoundtrip.WithLabelValues(call).Observe(time.Since(start).Seconds())
	if !ok {
		return nil, ErrSyscallFailed
	}
	return res.value, res.err
}

// Respond delivers result to the waiter parked on id. A second call with
// the same id, or a call naming an id that was never allocated or that
// ForceReject already reclaimed, is a silent no-op: the map lookup and
// delete happen atomically under mu, so whichever of Respond or
// ForceReject reaches an id first is the only one that ever touches its
// channel. ErrSendFailed remains as a defensive return for trySend's
// recover() path in case that invariant is ever broken, but ordinary
// operation never returns it.
func (b *Bridge) Respond(id uint64, result json.RawMessage) error {
	b.mu.Lock()
	entry, ok := b.pending[id]
	if !ok {
		b.mu.Unlock()
		return nil
	}
	delete(b.pending, id)
	if set := b.byPid[entry.pid]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(b.byPid, entry.pid)
		}
	}
	b.mu.Unlock()

	if !trySend(entry.ch, syscallResult{value: result}) {
		return ErrSendFailed
	}
	return nil
}

// ForceReject rejects every syscall currently parked by pid, delivering
// ErrSyscallFailed to each waiter, and reclaims their table entries. Used
// by drop_isolate and by the one-shot timeout reaper once an abandoned
// worker finally completes. A Respond that arrives afterward for one of
// these ids finds nothing and is a silent no-op, same as any other
// unknown id — once force-rejected, no later response is expected.
func (b *Bridge) ForceReject(pid uint32) {
	b.mu.Lock()
	ids := b.byPid[pid]
	delete(b.byPid, pid)
	entries := make([]*pendingEntry, 0, len(ids))
	for id := range ids {
		if e, ok := b.pending[id]; ok {
			entries = append(entries, e)
			delete(b.pending, id)
		}
	}
	b.mu.Unlock()

	for _, e := range entries {
		close(e.ch)
	}
}

// trySend attempts a non-blocking, panic-safe send on a buffered channel
// that may already be closed by a concurrent ForceReject.
func trySend(ch chan syscallResult, v syscallResult) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()
	ch <- v
	return true
}

var syscallRoundtrip = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "helios_syscall_roundtrip_seconds",
		Help:    "Time between a guest syscall() call and its host response.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"call"},
)

func init() {
	prometheus.MustRegister(syscallRoundtrip)
}
