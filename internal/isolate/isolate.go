// Package isolate owns the sandboxed V8 execution runtime: one-shot runs,
// time-sliced runs that persist an isolate across invocations, and the
// syscall entry point installed into every guest's global scope.
package isolate

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gmfc/helios-os/internal/bridge"
	"github.com/gmfc/helios-os/pkg/types"
	v8go "github.com/rogchap/v8go"
)

var (
	ErrBadCode       = errors.New("bad code")
	ErrCompileFailed = errors.New("compile")
	ErrRunFailed     = errors.New("run")
	ErrTimeout       = errors.New("timeout")
	ErrNoCode        = errors.New("no code")
)

// processIsolate is the registry's unit of state: one V8 isolate and
// context kept alive across slices, plus whatever of its compiled script
// and terminal result still needs to be tracked.
type processIsolate struct {
	iso      *v8go.Isolate
	ctx      *v8go.Context
	handle   int64
	quotaMem uint64

	script   *v8go.UnboundScript // consumed by the first slice that runs it
	exitCode *int                // set once the script has produced a result
}

// Runtime is the Isolate Manager: the registry of paused isolates, the
// syscall context table, and a bounded worker pool that every run_isolate
// and run_isolate_slice call executes on.
type Runtime struct {
	bridge *bridge.Bridge
	table  *contextTable

	regMu    sync.Mutex
	registry map[uint32]*processIsolate

	workers chan struct{} // counting semaphore bounding concurrent isolate workers
}

// NewRuntime creates a Runtime backed by br, with up to maxWorkers isolate
// executions running concurrently.
func NewRuntime(br *bridge.Bridge, maxWorkers int) *Runtime {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Runtime{
		bridge:   br,
		table:    newContextTable(),
		registry: make(map[uint32]*processIsolate),
		workers:  make(chan struct{}, maxWorkers),
	}
}

func (r *Runtime) acquireWorker() { r.workers <- struct{}{} }
func (r *Runtime) releaseWorker() { <-r.workers }

// RunIsolate executes code to completion (or until quotaMs elapses) in a
// fresh, ephemeral isolate that never enters the registry.
func (r *Runtime) RunIsolate(pid uint32, code string, quotaMs int, quotaMem uint64) (*types.IsolateResult, error) {
	if !utf8.ValidString(code) {
		return nil, ErrBadCode
	}

	type outcome struct {
		result *types.IsolateResult
		err    error
	}
	done := make(chan outcome, 1)

	r.acquireWorker()
	go func() {
		defer r.releaseWorker()
		res, err := r.runOneShot(code, pid, quotaMem)
		done <- outcome{res, err}
		if err == nil {
			runsTotal.WithLabelValues("oneshot", "ok").Inc()
		} else if !errors.Is(err, ErrTimeout) {
			runsTotal.WithLabelValues("oneshot", "error").Inc()
		}
	}()

	select {
	case o := <-done:
		if o.result != nil {
			cpuMs.Observe(float64(o.result.CPUMs))
		}
		return o.result, o.err
	case <-time.After(time.Duration(quotaMs) * time.Millisecond):
		timeoutsTotal.Inc()
		runsTotal.WithLabelValues("oneshot", "timeout").Inc()
		// The worker is abandoned, not killed: it still owns a live V8
		// isolate and may be blocked inside a guest syscall(). Execution is
		// not interrupted here, so a runaway script keeps its worker slot
		// until it returns on its own; the worker then does its own
		// teardown (including reaping this pid's pending syscalls).
		return nil, ErrTimeout
	}
}

func (r *Runtime) runOneShot(code string, pid uint32, quotaMem uint64) (*types.IsolateResult, error) {
	iso := v8go.NewIsolate()
	handle := r.table.put(&SyscallContext{Bridge: r.bridge, Pid: pid})
	defer func() {
		r.table.remove(handle)
		iso.Dispose()
		r.bridge.ForceReject(pid)
	}()

	global := v8go.NewObjectTemplate(iso)
	if err := global.Set("syscall", v8go.NewFunctionTemplate(iso, r.syscallCallback(handle))); err != nil {
		return nil, fmt.Errorf("install syscall: %w", err)
	}
	v8ctx := v8go.NewContext(iso, global)
	defer v8ctx.Close()

	script, err := iso.CompileUnboundScript(code, "guest.js", v8go.CompileOptions{})
	if err != nil {
		return nil, ErrCompileFailed
	}

	start := time.Now()
	val, err := script.Run(v8ctx)
	elapsed := time.Since(start)
	if err != nil {
		return nil, ErrRunFailed
	}

	stats := iso.GetHeapStatistics()
	if stats.TotalHeapSize > quotaMem {
		memExceededTotal.Inc()
	}

	return &types.IsolateResult{
		ExitCode: valueToInt(val),
		CPUMs:    elapsed.Milliseconds(),
		MemBytes: stats.TotalHeapSize,
	}, nil
}

// RunIsolateSlice runs one bounded slice of pid's isolate, creating it
// from code if it doesn't already exist in the registry.
func (r *Runtime) RunIsolateSlice(pid uint32, code *string, sliceMs int, quotaMem uint64) (*types.SliceResult, error) {
	r.regMu.Lock()
	pi, existed := r.registry[pid]
	delete(r.registry, pid)
	r.regMu.Unlock()

	if !existed {
		if code == nil {
			return nil, ErrNoCode
		}
		if !utf8.ValidString(*code) {
			return nil, ErrBadCode
		}
		iso := v8go.NewIsolate()
		handle := r.table.put(&SyscallContext{Bridge: r.bridge, Pid: pid})
		global := v8go.NewObjectTemplate(iso)
		if err := global.Set("syscall", v8go.NewFunctionTemplate(iso, r.syscallCallback(handle))); err != nil {
			iso.Dispose()
			r.table.remove(handle)
			return nil, fmt.Errorf("install syscall: %w", err)
		}
		v8ctx := v8go.NewContext(iso, global)
		script, err := iso.CompileUnboundScript(*code, "guest.js", v8go.CompileOptions{})
		if err != nil {
			v8ctx.Close()
			iso.Dispose()
			r.table.remove(handle)
			return nil, ErrCompileFailed
		}
		pi = &processIsolate{iso: iso, ctx: v8ctx, handle: handle, quotaMem: quotaMem, script: script}
	}

	type sliceOutcome struct {
		exitCode *int
		cpuMs    int64
		memBytes uint64
		err      error
	}
	done := make(chan sliceOutcome, 1)

	r.acquireWorker()
	go func() {
		defer r.releaseWorker()
		start := time.Now()
		var exitCode *int
		var runErr error

		if pi.script != nil {
			script := pi.script
			pi.script = nil
			val, err := script.Run(pi.ctx)
			if err != nil {
				runErr = ErrRunFailed
			} else {
				ec := valueToInt(val)
				exitCode = &ec
				pi.exitCode = &ec
			}
		} else {
			exitCode = pi.exitCode
		}

		elapsed := time.Since(start)
		stats := pi.iso.GetHeapStatistics()
		if stats.TotalHeapSize > quotaMem {
			memExceededTotal.Inc()
		}
		done <- sliceOutcome{exitCode: exitCode, cpuMs: elapsed.Milliseconds(), memBytes: stats.TotalHeapSize, err: runErr}
	}()

	select {
	case o := <-done:
		r.regMu.Lock()
		r.registry[pid] = pi
		r.regMu.Unlock()
		if o.err != nil {
			runsTotal.WithLabelValues("slice", "error").Inc()
			return nil, o.err
		}
		runsTotal.WithLabelValues("slice", "ok").Inc()
		cpuMs.Observe(float64(o.cpuMs))
		return &types.SliceResult{ExitCode: o.exitCode, CPUMs: o.cpuMs, MemBytes: o.memBytes, Running: false}, nil

	case <-time.After(time.Duration(sliceMs) * time.Millisecond):
		timeoutsTotal.Inc()
		runsTotal.WithLabelValues("slice", "running").Inc()
		pi.iso.TerminateExecution()
		// Per the concurrency model (SPEC_FULL.md §5), the isolate is
		// absent from the registry until the abandoned worker actually
		// finishes and re-inserts it — re-inserting it here would let a
		// second slice call enter the same isolate concurrently.
		go func() {
			o := <-done
			r.regMu.Lock()
			r.registry[pid] = pi
			r.regMu.Unlock()
			_ = o
		}()
		return &types.SliceResult{CPUMs: int64(sliceMs), MemBytes: quotaMem, Running: true}, nil
	}
}

// DropIsolate removes and destroys pid's isolate, if any, and force-rejects
// any syscalls it had parked. No error if pid was never registered.
func (r *Runtime) DropIsolate(pid uint32) {
	r.regMu.Lock()
	pi, ok := r.registry[pid]
	delete(r.registry, pid)
	r.regMu.Unlock()

	if ok {
		r.table.remove(pi.handle)
		pi.ctx.Close()
		pi.iso.Dispose()
	}
	r.bridge.ForceReject(pid)
}

// syscallCallback builds the FunctionCallback installed as the guest
// global `syscall`. It runs on the same goroutine already executing guest
// code for this isolate, so the synchronous block inside bridge.Syscall
// does not race any other use of the isolate.
func (r *Runtime) syscallCallback(handle int64) v8go.FunctionCallback {
	return func(fcinfo *v8go.FunctionCallbackInfo) *v8go.Value {
		v8ctx := fcinfo.Context()
		iso := v8ctx.Isolate()
		args := fcinfo.Args()

		resolver, _ := v8go.NewPromiseResolver(v8ctx)

		sc, ok := r.table.get(handle)
		if !ok {
			rejectSyscallFailed(resolver, iso)
			return resolver.GetPromise().Value
		}

		var name string
		if len(args) > 0 {
			name = args[0].String()
		}

		jsonArgs := make([]json.RawMessage, 0, len(args))
		if len(args) > 1 {
			for _, a := range args[1:] {
				s, err := v8go.JSONStringify(v8ctx, a)
				if err != nil {
					s = "null"
				}
				jsonArgs = append(jsonArgs, json.RawMessage(s))
			}
		}

		result, err := sc.Bridge.Syscall(sc.Pid, name, jsonArgs)
		if err != nil {
			rejectSyscallFailed(resolver, iso)
			return resolver.GetPromise().Value
		}
		if result == nil {
			result = json.RawMessage("null")
		}

		val, err := v8go.JSONParse(v8ctx, string(result))
		if err != nil {
			val = v8go.Undefined(iso)
		}
		resolver.Resolve(val)
		return resolver.GetPromise().Value
	}
}

func rejectSyscallFailed(resolver *v8go.PromiseResolver, iso *v8go.Isolate) {
	msg, err := v8go.NewValue(iso, "syscall failed")
	if err != nil {
		resolver.Reject(v8go.Undefined(iso))
		return
	}
	resolver.Reject(msg)
}

func valueToInt(val *v8go.Value) int {
	if val == nil {
		return 0
	}
	return int(val.Integer())
}
