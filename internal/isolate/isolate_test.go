package isolate

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gmfc/helios-os/internal/bridge"
	"github.com/gmfc/helios-os/pkg/types"
)

// newRuntime builds a Runtime wired to a Bridge that auto-answers every
// syscall with `null`, so guest code using syscall() doesn't hang a test
// that isn't specifically exercising the bridge.
func newRuntime(t *testing.T) *Runtime {
	t.Helper()
	var br *bridge.Bridge
	br = bridge.New(func(ev types.SyscallEvent) {
		go br.Respond(ev.ID, json.RawMessage(`null`))
	})
	return NewRuntime(br, 4)
}

func TestRunIsolateArithmetic(t *testing.T) {
	rt := newRuntime(t)

	res, err := rt.RunIsolate(1, "1+2", 1000, 10_000_000)
	if err != nil {
		t.Fatalf("RunIsolate() error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
}

func TestRunIsolateBadCodeIsRejectedBeforeCompile(t *testing.T) {
	rt := newRuntime(t)

	_, err := rt.RunIsolate(1, string([]byte{0xff, 0xfe}), 1000, 10_000_000)
	if !errors.Is(err, ErrBadCode) {
		t.Fatalf("expected ErrBadCode, got %v", err)
	}
}

func TestRunIsolateCompileErrorIsReported(t *testing.T) {
	rt := newRuntime(t)

	_, err := rt.RunIsolate(1, "this is not valid javascript (((", 1000, 10_000_000)
	if !errors.Is(err, ErrCompileFailed) {
		t.Fatalf("expected ErrCompileFailed, got %v", err)
	}
}

func TestRunIsolateTimeout(t *testing.T) {
	rt := newRuntime(t)

	_, err := rt.RunIsolate(1, "while(true){}", 20, 10_000_000)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestRunIsolateSliceCreatesAndPersists(t *testing.T) {
	rt := newRuntime(t)
	code := "globalThis.__n = (globalThis.__n||0)+1; globalThis.__n"

	res, err := rt.RunIsolateSlice(7, &code, 1000, 10_000_000)
	if err != nil {
		t.Fatalf("first slice error: %v", err)
	}
	if res.Running {
		t.Fatal("expected slice to complete")
	}
	if res.ExitCode == nil || *res.ExitCode != 1 {
		t.Fatalf("exit code = %v, want 1", res.ExitCode)
	}

	// Second call with no code reuses the registered isolate and reports
	// the same terminal exit code without re-running the script.
	res2, err := rt.RunIsolateSlice(7, nil, 1000, 10_000_000)
	if err != nil {
		t.Fatalf("second slice error: %v", err)
	}
	if res2.ExitCode == nil || *res2.ExitCode != 1 {
		t.Fatalf("second slice exit code = %v, want 1 (stored, not re-run)", res2.ExitCode)
	}
}

func TestRunIsolateSliceWithoutCodeAndNoExistingIsolate(t *testing.T) {
	rt := newRuntime(t)

	_, err := rt.RunIsolateSlice(42, nil, 1000, 10_000_000)
	if !errors.Is(err, ErrNoCode) {
		t.Fatalf("expected ErrNoCode, got %v", err)
	}
}

func TestRunIsolateSliceTimeoutReportsRunningAndLeavesRegistryEmpty(t *testing.T) {
	rt := newRuntime(t)
	code := "while(true){}"

	res, err := rt.RunIsolateSlice(8, &code, 20, 10_000_000)
	if err != nil {
		t.Fatalf("slice error: %v", err)
	}
	if !res.Running {
		t.Fatal("expected Running=true on slice timeout")
	}

	// A slice call issued immediately after must not find the isolate
	// back in the registry yet (it is owned by the abandoned worker),
	// so it requires code again.
	_, err = rt.RunIsolateSlice(8, nil, 20, 10_000_000)
	if !errors.Is(err, ErrNoCode) {
		t.Fatalf("expected ErrNoCode while isolate still abandoned, got %v", err)
	}

	// Give the background reinsertion goroutine time to run once
	// TerminateExecution unwinds the infinite loop.
	time.Sleep(100 * time.Millisecond)
}

func TestDropIsolateOnUnknownPidIsNoop(t *testing.T) {
	rt := newRuntime(t)
	rt.DropIsolate(999) // must not panic
}

func TestDropIsolateForceRejectsPendingSyscalls(t *testing.T) {
	// A bridge that never answers, so the guest's syscall stays parked
	// until DropIsolate force-rejects it.
	rt := NewRuntime(bridge.New(func(types.SyscallEvent) {}), 4)
	code := `
		globalThis.__result = null;
		syscall("echo", 1).then(v => { globalThis.__result = v; });
	`
	done := make(chan struct{})
	go func() {
		rt.RunIsolateSlice(3, &code, 5000, 10_000_000)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	rt.DropIsolate(3)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for slice to unwind after drop")
	}
}
