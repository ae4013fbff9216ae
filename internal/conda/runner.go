package conda

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Runner executes external commands. All package-manager invocations go
// through it so tests can substitute MockRunner.
type Runner interface {
	// Run executes name with args, waits for it and returns stdout. A
	// non-zero exit is an error that includes the trimmed stderr.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs real processes with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// MockRunner is a Runner test double. RunFunc must be set before use.
type MockRunner struct {
	RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

	mu    sync.Mutex
	calls [][]string
}

// Run records the call and delegates to RunFunc.
func (m *MockRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string{name}, args...))
	m.mu.Unlock()
	if m.RunFunc == nil {
		panic("MockRunner.RunFunc not set")
	}
	return m.RunFunc(ctx, name, args...)
}

// Calls returns every recorded command line, executable first.
func (m *MockRunner) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.calls))
	copy(out, m.calls)
	return out
}

var (
	_ Runner = ExecRunner{}
	_ Runner = (*MockRunner)(nil)
)
