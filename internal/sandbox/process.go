package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultMaxOldSpaceMB caps the V8 heap of each node process.
const DefaultMaxOldSpaceMB = 64

// nodeRunner reads a program from stdin and evaluates it in a vm context
// built on a null-prototype object, then writes the program's result line.
// Nothing from the host realm is placed in the context. The process itself
// runs under node's permission model with no filesystem, child process or
// worker grants.
const nodeRunner = `
const vm = require('vm');
let src = '';
process.stdin.setEncoding('utf8');
process.stdin.on('data', (c) => { src += c; });
process.stdin.on('end', () => {
  const ctx = vm.createContext(Object.create(null));
  let line;
  try {
    line = vm.runInContext(src, ctx, { timeout: __TIMEOUT__, filename: 'snippet.js' });
    if (typeof line !== 'string') throw new Error('no result');
  } catch (e) {
    let msg = 'Execution failed';
    try { msg = String(e && e.message); } catch (_) {}
    const timeout = !!(e && e.code === 'ERR_SCRIPT_EXECUTION_TIMEOUT');
    let logs = '[]';
    try {
      const l = vm.runInContext('JSON.stringify(globalThis.__logs || [])', ctx, { timeout: 100 });
      if (typeof l === 'string') logs = l;
    } catch (_) {}
    line = '{"ok":false,"error":' + JSON.stringify(msg) + ',"timeout":' + timeout + ',"logs":' + logs + '}';
  }
  process.stdout.write(line + '\n');
});
`

// nodeHarness wraps the snippet function. It runs inside the vm context,
// installs a console that records into that context, and returns the JSON
// result line as a string.
const nodeHarness = `(function (main) {
  const logs = [];
  globalThis.__logs = logs;
  const fmt = (args) => args.map((a) => {
    if (typeof a === 'string') return a;
    try { const s = JSON.stringify(a); return s === undefined ? String(a) : s; } catch (e) { return String(a); }
  }).join(' ');
  const sink = (...args) => { logs.push(fmt(args)); };
  globalThis.console = { log: sink, info: sink, warn: sink, error: sink, debug: sink };
  let out;
  try {
    const value = main();
    out = { ok: true, value: value === undefined ? null : value, logs };
  } catch (e) {
    const msg = (e !== null && typeof e === 'object' && 'message' in e) ? String(e.message) : String(e);
    out = { ok: false, error: msg, logs };
  }
  try { return JSON.stringify(out); } catch (e) { out.value = String(out.value); return JSON.stringify(out); }
})(`

// Process runs each snippet in a separate node process with an empty
// environment, a capped heap and node's permission model enabled.
type Process struct {
	NodePath      string        // defaults to "node" on PATH
	MaxOldSpaceMB int           // defaults to DefaultMaxOldSpaceMB
	Timeout       time.Duration // in-process vm timeout, defaults to DefaultTimeout

	once    sync.Once
	flag    string
	flagErr error
}

// Name implements Engine.
func (p *Process) Name() string { return "node" }

// Available reports whether the node binary can be found.
func (p *Process) Available() bool {
	_, err := exec.LookPath(p.binary())
	return err == nil
}

func (p *Process) binary() string {
	if p.NodePath != "" {
		return p.NodePath
	}
	return "node"
}

// permission returns the flag that enables the permission model on the
// installed node, probing its version once.
func (p *Process) permission() (string, error) {
	p.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		out, err := exec.CommandContext(ctx, p.binary(), "--version").Output()
		if err != nil {
			p.flagErr = fmt.Errorf("probing node version: %w", err)
			return
		}
		p.flag, p.flagErr = permissionFlag(string(out))
	})
	return p.flag, p.flagErr
}

// permissionFlag maps a `node --version` string to the flag enabling the
// permission model. Releases before v20 have none and are refused.
func permissionFlag(version string) (string, error) {
	v := strings.TrimPrefix(strings.TrimSpace(version), "v")
	parts := strings.SplitN(v, ".", 3)
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", fmt.Errorf("unrecognised node version %q", strings.TrimSpace(version))
	}
	minor := 0
	if len(parts) > 1 {
		minor, _ = strconv.Atoi(parts[1])
	}
	switch {
	case major > 22, major == 22 && minor >= 13:
		return "--permission", nil
	case major >= 20:
		return "--experimental-permission", nil
	default:
		return "", fmt.Errorf("node %s has no permission model (v20 or newer required)", strings.TrimSpace(version))
	}
}

// Run implements Engine.
func (p *Process) Run(ctx context.Context, code string) (Outcome, error) {
	flag, err := p.permission()
	if err != nil {
		return Outcome{}, err
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	heap := p.MaxOldSpaceMB
	if heap <= 0 {
		heap = DefaultMaxOldSpaceMB
	}
	script := strings.Replace(nodeRunner, "__TIMEOUT__", strconv.FormatInt(timeout.Milliseconds(), 10), 1)

	cmd := exec.CommandContext(ctx, p.binary(),
		flag,
		"--no-warnings",
		fmt.Sprintf("--max-old-space-size=%d", heap),
		"-e", script,
	)
	cmd.Env = []string{}
	cmd.Stdin = strings.NewReader(nodeHarness + "(function() {\n" + code + "\n}))")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		if strings.Contains(stderr.String(), "heap out of memory") {
			return Outcome{}, &RuntimeError{Message: memoryLimitText}
		}
		return Outcome{}, fmt.Errorf("node exited with error: %w\nstderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return decodeResult(stdout.Bytes())
}
