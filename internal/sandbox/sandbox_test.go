package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	if IsWorker() {
		os.Exit(ServeWorker(os.Stdin, os.Stdout))
	}
	os.Exit(m.Run())
}

func TestExecute(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		wantOutput  string
		wantSuccess bool
	}{
		{"arithmetic", "return 2+2", "4", true},
		{"string", "return 'a' + 'b'", "ab", true},
		{"no return", "let x = 1", "<nil>", true},
		{"thrown error", "throw new Error('boom')", "boom", false},
		{"thrown string", "throw 'plain'", "plain", false},
		{"type error", "return undefined.x", "", false},
		{"syntax error", "return (", "", false},
		{"trailing comment", "return 1 // done", "1", true},
	}
	sb := New(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := sb.Execute(context.Background(), tt.code)
			if res.Success != tt.wantSuccess {
				t.Fatalf("Success = %v, want %v (output %v)", res.Success, tt.wantSuccess, res.Output)
			}
			if res.Code != tt.code {
				t.Errorf("Code = %q, want %q", res.Code, tt.code)
			}
			if tt.wantOutput != "" {
				if got := fmt.Sprint(res.Output); got != tt.wantOutput {
					t.Errorf("Output = %q, want %q", got, tt.wantOutput)
				}
			}
			if !tt.wantSuccess {
				if s, ok := res.Output.(string); !ok || s == "" {
					t.Errorf("failure Output = %#v, want non-empty message", res.Output)
				}
			}
		})
	}
}

func TestExecuteStructuredOutput(t *testing.T) {
	res := New(Options{}).Execute(context.Background(), "return {a: 1, b: [1, 2]}")
	if !res.Success {
		t.Fatalf("execution failed: %v", res.Output)
	}
	m, ok := res.Output.(map[string]any)
	if !ok {
		t.Fatalf("Output = %#v, want map", res.Output)
	}
	if fmt.Sprint(m["a"]) != "1" {
		t.Errorf("a = %v, want 1", m["a"])
	}
}

func TestPolicyRejectsBeforeEvaluation(t *testing.T) {
	sb := New(Options{})
	code := "console.log('ran'); require('fs')"
	res, err := sb.Run(context.Background(), code)

	var pe *PolicyError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *PolicyError", err)
	}
	if pe.Term != "require" {
		t.Errorf("Term = %q, want require", pe.Term)
	}
	if res.Success {
		t.Error("Success = true for rejected snippet")
	}
	if res.Output != "Import statements are not allowed for security reasons" {
		t.Errorf("Output = %v", res.Output)
	}
	if len(res.Logs) != 0 {
		t.Errorf("snippet was evaluated: logs %v", res.Logs)
	}
}

func TestPolicyIsCaseSensitive(t *testing.T) {
	res, err := New(Options{}).Run(context.Background(), "return Require('fs')")
	var pe *PolicyError
	if errors.As(err, &pe) {
		t.Fatal("capitalised term rejected by policy")
	}
	var rt *RuntimeError
	if !errors.As(err, &rt) {
		t.Fatalf("err = %v, want *RuntimeError", err)
	}
	if res.Success {
		t.Error("Success = true, want false")
	}
}

func TestPolicyCheck(t *testing.T) {
	tests := []struct {
		code string
		deny bool
	}{
		{"import fs from 'fs'", true},
		{"const x = require", true},
		{"// importance", true},
		{"return 1", false},
		{"IMPORT", false},
	}
	p := Policy{Deny: DefaultDenylist}
	for _, tt := range tests {
		err := p.Check(tt.code)
		if (err != nil) != tt.deny {
			t.Errorf("Check(%q) = %v, deny %v", tt.code, err, tt.deny)
		}
	}
}

func TestInfiniteLoopExceedsBudget(t *testing.T) {
	sb := New(Options{Timeout: 100 * time.Millisecond})
	start := time.Now()
	res, err := sb.Run(context.Background(), "while (true) {}")
	elapsed := time.Since(start)

	var be *BudgetError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want *BudgetError", err)
	}
	if res.Success {
		t.Error("Success = true for looping snippet")
	}
	if !strings.Contains(fmt.Sprint(res.Output), "timed out") {
		t.Errorf("Output = %v, want timeout message", res.Output)
	}
	if elapsed > 2*time.Second {
		t.Errorf("took %s to stop", elapsed)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := New(Options{}).Run(ctx, "return 1")
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if res.Success {
		t.Error("Success = true after cancellation")
	}
}

func TestRecursionLimit(t *testing.T) {
	sb := New(Options{Engine: &Interpreter{MaxCallStack: 64}})
	res, err := sb.Run(context.Background(), "function f() { return f(); } return f()")
	var rt *RuntimeError
	if !errors.As(err, &rt) {
		t.Fatalf("err = %v, want *RuntimeError", err)
	}
	if res.Success {
		t.Error("Success = true for unbounded recursion")
	}
}

func TestConsoleCaptured(t *testing.T) {
	res := New(Options{}).Execute(context.Background(), "console.log('hi', 1, {a: 2}); console.error('e'); return true")
	if !res.Success {
		t.Fatalf("execution failed: %v", res.Output)
	}
	want := []string{`hi 1 {"a":2}`, "e"}
	if len(res.Logs) != len(want) {
		t.Fatalf("Logs = %q, want %q", res.Logs, want)
	}
	for i := range want {
		if res.Logs[i] != want[i] {
			t.Errorf("Logs[%d] = %q, want %q", i, res.Logs[i], want[i])
		}
	}
}

func TestNoHostBindings(t *testing.T) {
	res := New(Options{}).Execute(context.Background(), "return typeof process + ' ' + typeof fetch")
	if got := fmt.Sprint(res.Output); got != "undefined undefined" {
		t.Errorf("Output = %q, want undefined undefined", got)
	}
}

func TestEngineName(t *testing.T) {
	sb := New(Options{})
	if sb.Engine() != "interpreter" {
		t.Errorf("Engine = %q", sb.Engine())
	}
	if res := sb.Execute(context.Background(), "return 1"); res.Engine != "interpreter" {
		t.Errorf("result Engine = %q", res.Engine)
	}
}

func TestProcessEngine(t *testing.T) {
	p := &Process{}
	if !p.Available() {
		t.Skip("node not installed")
	}
	sb := New(Options{Engine: p, Timeout: 5 * time.Second})

	res := sb.Execute(context.Background(), "console.log('x'); return 2+2")
	if !res.Success || fmt.Sprint(res.Output) != "4" {
		t.Fatalf("got %+v, want success with 4", res)
	}
	if len(res.Logs) != 1 || res.Logs[0] != "x" {
		t.Errorf("Logs = %q", res.Logs)
	}

	res = sb.Execute(context.Background(), "throw new Error('boom')")
	if res.Success || res.Output != "boom" {
		t.Errorf("got %+v, want failure boom", res)
	}
}

func TestProcessEngineCannotReachHost(t *testing.T) {
	p := &Process{}
	if !p.Available() {
		t.Skip("node not installed")
	}
	sb := New(Options{Engine: p, Timeout: 5 * time.Second})

	tests := []struct {
		name string
		code string
	}{
		{"console constructor", "const P = console.log.constructor('return pro'+'cess')(); return P.getBuiltinModule('f'+'s').readFileSync('/etc/hostname','utf8')"},
		{"global constructor", "const P = this.constructor.constructor('return pro'+'cess')(); return P.getBuiltinModule('f'+'s').readFileSync('/etc/hostname','utf8')"},
		{"process global", "return typeof process === 'undefined' ? null.x : process.pid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := sb.Execute(context.Background(), tt.code)
			if res.Success {
				t.Fatalf("snippet reached the host: output %v", res.Output)
			}
		})
	}
}

func TestPermissionFlag(t *testing.T) {
	tests := []struct {
		version string
		want    string
		wantErr bool
	}{
		{"v24.1.0\n", "--permission", false},
		{"v22.13.1", "--permission", false},
		{"v22.12.0", "--experimental-permission", false},
		{"v20.11.1", "--experimental-permission", false},
		{"v18.19.0", "", true},
		{"garbage", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			got, err := permissionFlag(tt.version)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("flag = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsolatedEngine(t *testing.T) {
	sb := New(Options{Engine: &Isolated{}, Timeout: 5 * time.Second})

	res := sb.Execute(context.Background(), "console.log('x'); return {n: 2+2}")
	if !res.Success {
		t.Fatalf("execution failed: %v", res.Output)
	}
	m, ok := res.Output.(map[string]any)
	if !ok || fmt.Sprint(m["n"]) != "4" {
		t.Errorf("Output = %#v, want {n: 4}", res.Output)
	}
	if len(res.Logs) != 1 || res.Logs[0] != "x" {
		t.Errorf("Logs = %q", res.Logs)
	}
	if res.Engine != "interpreter" {
		t.Errorf("Engine = %q", res.Engine)
	}

	res = sb.Execute(context.Background(), "throw new Error('boom')")
	if res.Success || res.Output != "boom" {
		t.Errorf("got %+v, want failure boom", res)
	}
}

func TestIsolatedEngineBudget(t *testing.T) {
	sb := New(Options{Engine: &Isolated{}, Timeout: 200 * time.Millisecond})
	_, err := sb.Run(context.Background(), "while (true) {}")
	var be *BudgetError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want *BudgetError", err)
	}
}

func TestIsolatedEngineMemoryLimit(t *testing.T) {
	sb := New(Options{Engine: &Isolated{MemoryMB: 64}, Timeout: 10 * time.Second})

	tests := []struct {
		name string
		code string
	}{
		{"gradual growth", "const a = []; while (true) a.push(new Array(1e5).fill(1));"},
		{"single large array", "const a = new Array(2e8).fill(1); return a.length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := sb.Run(context.Background(), tt.code)
			if res.Success {
				t.Fatalf("Success = true, want memory failure")
			}
			var rt *RuntimeError
			if !errors.As(err, &rt) {
				t.Fatalf("err = %v, want *RuntimeError", err)
			}
		})
	}

	res := sb.Execute(context.Background(), "return 1")
	if !res.Success {
		t.Errorf("sandbox unusable after memory failure: %v", res.Output)
	}
}

func TestInterpreterHeapWatchdog(t *testing.T) {
	sb := New(Options{Engine: &Interpreter{MaxMemoryMB: 32}, Timeout: 10 * time.Second})
	res := sb.Execute(context.Background(), "const a = []; while (true) a.push(new Array(1e4).fill(1));")
	if res.Success || res.Output != "Memory limit exceeded" {
		t.Errorf("got %+v, want memory limit failure", res)
	}
}
