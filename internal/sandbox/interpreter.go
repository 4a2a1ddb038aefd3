package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"runtime/metrics"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// DefaultMaxCallStack bounds recursion depth in the interpreter.
const DefaultMaxCallStack = 1024

// errMemoryLimit is the interrupt value used by the heap watchdog.
var errMemoryLimit = errors.New(memoryLimitText)

const heapMetric = "/memory/classes/heap/objects:bytes"

// Interpreter runs snippets in an embedded JavaScript runtime. Each run gets
// a fresh runtime with only a console object installed.
//
// MaxMemoryMB interrupts a run once the process heap has grown by that much
// since it started. It catches gradual growth only; a single oversized
// allocation still aborts the process, which is why sessions run the
// interpreter through Isolated.
type Interpreter struct {
	MaxCallStack int
	MaxMemoryMB  int // zero disables the heap watchdog
}

// Name implements Engine.
func (in *Interpreter) Name() string { return "interpreter" }

// Run implements Engine.
func (in *Interpreter) Run(ctx context.Context, code string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	vm := goja.New()
	depth := in.MaxCallStack
	if depth <= 0 {
		depth = DefaultMaxCallStack
	}
	vm.SetMaxCallStackSize(depth)

	c := &console{}
	if err := c.install(vm); err != nil {
		return Outcome{}, err
	}

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()
	if in.MaxMemoryMB > 0 {
		done := make(chan struct{})
		defer close(done)
		go watchHeap(vm, uint64(in.MaxMemoryMB)<<20, done)
	}

	v, err := vm.RunString(wrapSnippet(code))
	if err != nil {
		return Outcome{Logs: c.lines()}, interpreterError(ctx, err)
	}
	return Outcome{Value: exportValue(v), Logs: c.lines()}, nil
}

// watchHeap interrupts vm when the heap grows by more than budget bytes.
func watchHeap(vm *goja.Runtime, budget uint64, done <-chan struct{}) {
	sample := []metrics.Sample{{Name: heapMetric}}
	read := func() uint64 {
		metrics.Read(sample)
		if sample[0].Value.Kind() != metrics.KindUint64 {
			return 0
		}
		return sample[0].Value.Uint64()
	}
	base := read()
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-done:
			return
		case <-tick.C:
			if used := read(); used > base && used-base > budget {
				vm.Interrupt(errMemoryLimit)
				return
			}
		}
	}
}

func wrapSnippet(code string) string {
	return "(function() {\n" + code + "\n})()"
}

func interpreterError(ctx context.Context, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if interrupted.Value() == errMemoryLimit {
			return &RuntimeError{Message: memoryLimitText}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return context.Canceled
	}
	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return &RuntimeError{Message: "Maximum call stack size exceeded"}
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return &RuntimeError{Message: faultMessage(ex.Value())}
	}
	return &RuntimeError{Message: err.Error()}
}

// faultMessage returns the message property of thrown Error objects and the
// string form of any other thrown value.
func faultMessage(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	if obj, ok := v.(*goja.Object); ok {
		if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) && !goja.IsNull(m) {
			return m.String()
		}
	}
	return v.String()
}

// exportValue converts a returned value into something encoding/json can
// render. Functions and other values that do not marshal fall back to
// their string form.
func exportValue(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if _, ok := goja.AssertFunction(v); ok {
		return v.String()
	}
	exported := v.Export()
	if _, err := json.Marshal(exported); err != nil {
		return v.String()
	}
	return exported
}

// console collects console.* output for a single run.
type console struct {
	mu  sync.Mutex
	buf []string
}

func (c *console) install(vm *goja.Runtime) error {
	obj := vm.NewObject()
	write := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, formatArg(arg))
		}
		c.mu.Lock()
		c.buf = append(c.buf, strings.Join(parts, " "))
		c.mu.Unlock()
		return goja.Undefined()
	}
	for _, name := range []string{"log", "info", "warn", "error", "debug"} {
		if err := obj.Set(name, write); err != nil {
			return err
		}
	}
	return vm.Set("console", obj)
}

func (c *console) lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.buf...)
}

// formatArg renders plain objects and arrays as JSON, everything else via
// its string conversion.
func formatArg(v goja.Value) string {
	if obj, ok := v.(*goja.Object); ok && obj.ClassName() != "Error" {
		if _, isFn := goja.AssertFunction(v); !isFn {
			if b, err := obj.MarshalJSON(); err == nil {
				return string(b)
			}
		}
	}
	return v.String()
}
