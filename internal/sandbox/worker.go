package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// WorkerEnv is set to "1" in the environment of processes started by
// Isolated. A binary that runs Isolated snippets must check IsWorker before
// anything else and hand over to ServeWorker.
const WorkerEnv = "CODETREK_SANDBOX_WORKER"

const (
	workerTimeoutEnv = "CODETREK_SANDBOX_TIMEOUT_MS"
	workerStackEnv   = "CODETREK_SANDBOX_MAX_CALL_STACK"
	workerMemoryEnv  = "CODETREK_SANDBOX_MEMORY_MB"
)

// DefaultMemoryMB is the memory budget of an isolated snippet.
const DefaultMemoryMB = 256

const memoryLimitText = "Memory limit exceeded"

// engineResult is the JSON line a child engine writes on stdout.
type engineResult struct {
	OK      bool            `json:"ok"`
	Value   json.RawMessage `json:"value,omitempty"`
	Error   string          `json:"error,omitempty"`
	Timeout bool            `json:"timeout,omitempty"`
	Logs    []string        `json:"logs"`
}

// decodeResult turns a child engine's output into an Outcome or the
// matching Engine error.
func decodeResult(stdout []byte) (Outcome, error) {
	var res engineResult
	if err := json.Unmarshal(bytes.TrimSpace(stdout), &res); err != nil {
		return Outcome{}, fmt.Errorf("parsing engine output: %w\nraw stdout: %s", err, stdout)
	}
	if !res.OK {
		if res.Timeout {
			return Outcome{Logs: res.Logs}, context.DeadlineExceeded
		}
		return Outcome{Logs: res.Logs}, &RuntimeError{Message: res.Error}
	}

	var value any
	if len(res.Value) > 0 {
		if err := json.Unmarshal(res.Value, &value); err != nil {
			return Outcome{Logs: res.Logs}, fmt.Errorf("parsing engine value: %w", err)
		}
	}
	return Outcome{Value: value, Logs: res.Logs}, nil
}

// Isolated runs the embedded interpreter in a child copy of the running
// binary. The child caps its own memory, so a snippet that exhausts it
// fails alone and the caller gets a failed result.
type Isolated struct {
	Executable   string // defaults to os.Executable()
	MaxCallStack int
	MemoryMB     int // defaults to DefaultMemoryMB
}

// Name implements Engine.
func (iso *Isolated) Name() string { return "interpreter" }

// Run implements Engine.
func (iso *Isolated) Run(ctx context.Context, code string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	exe := iso.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return Outcome{}, fmt.Errorf("locating sandbox worker: %w", err)
		}
	}
	budget := DefaultTimeout
	if dl, ok := ctx.Deadline(); ok {
		budget = time.Until(dl)
	}
	memory := iso.MemoryMB
	if memory <= 0 {
		memory = DefaultMemoryMB
	}

	cmd := exec.CommandContext(ctx, exe)
	cmd.Env = []string{
		WorkerEnv + "=1",
		"GOMAXPROCS=2",
		workerTimeoutEnv + "=" + strconv.FormatInt(max(budget.Milliseconds(), 1), 10),
		workerStackEnv + "=" + strconv.Itoa(iso.MaxCallStack),
		workerMemoryEnv + "=" + strconv.Itoa(memory),
	}
	cmd.Stdin = strings.NewReader(code)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		if strings.Contains(stderr.String(), "out of memory") {
			return Outcome{}, &RuntimeError{Message: memoryLimitText}
		}
		return Outcome{}, fmt.Errorf("sandbox worker exited: %w\nstderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return decodeResult(stdout.Bytes())
}

// IsWorker reports whether this process was started by Isolated.
func IsWorker() bool { return os.Getenv(WorkerEnv) == "1" }

// ServeWorker runs the snippet read from r in the embedded interpreter
// under the budgets passed by Isolated and writes one JSON result line to
// w. It returns the process exit code.
func ServeWorker(r io.Reader, w io.Writer) int {
	memory := envInt(workerMemoryEnv, DefaultMemoryMB)
	limitMemory(memory)

	code, err := io.ReadAll(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading snippet: %v\n", err)
		return 1
	}

	timeout := time.Duration(envInt(workerTimeoutEnv, int(DefaultTimeout.Milliseconds()))) * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	in := &Interpreter{MaxCallStack: envInt(workerStackEnv, 0), MaxMemoryMB: memory}
	out, runErr := runRecovered(ctx, in, string(code))

	res := engineResult{OK: runErr == nil, Logs: out.Logs}
	switch {
	case runErr == nil:
		v, err := json.Marshal(out.Value)
		if err != nil {
			v, _ = json.Marshal(fmt.Sprint(out.Value))
		}
		res.Value = v
	case errors.Is(runErr, context.DeadlineExceeded):
		res.Timeout = true
	default:
		res.Error = runErr.Error()
	}
	if err := json.NewEncoder(w).Encode(res); err != nil {
		fmt.Fprintf(os.Stderr, "writing result: %v\n", err)
		return 1
	}
	return 0
}

func runRecovered(ctx context.Context, e Engine, code string) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RuntimeError{Message: fmt.Sprintf("internal error: %v", r)}
		}
	}()
	return e.Run(ctx, code)
}

func envInt(name string, def int) int {
	n, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return def
	}
	return n
}
