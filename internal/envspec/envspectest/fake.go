// Package envspectest provides an in-memory envspec.Manager for tests.
package envspectest

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"condahooks/internal/hookerr"
)

// Call records one Manager invocation.
type Call struct {
	Method string
	Name   string
	File   string
}

// Manager is a fake package manager holding environments in memory. Envs
// maps environment name to the dependencies its history export reports.
type Manager struct {
	Root string // prefix parent, defaults to /opt/conda/envs
	Envs map[string][]string

	// Fail, when set for a method name, is returned by that method.
	Fail map[string]error

	mu    sync.Mutex
	calls []Call
}

// New returns a Manager seeded with envs.
func New(envs map[string][]string) *Manager {
	if envs == nil {
		envs = map[string][]string{}
	}
	return &Manager{Envs: envs, Fail: map[string]error{}}
}

func (m *Manager) record(method, name, file string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Name: name, File: file})
	return m.Fail[method]
}

// Calls returns a copy of the recorded invocations.
func (m *Manager) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Count returns how many times method was invoked.
func (m *Manager) Count(method string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Prefix returns the fake prefix of env name.
func (m *Manager) Prefix(name string) string {
	root := m.Root
	if root == "" {
		root = "/opt/conda/envs"
	}
	return path.Join(root, name)
}

func (m *Manager) ListEnvironments(ctx context.Context) ([]string, error) {
	if err := m.record("ListEnvironments", "", ""); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Envs))
	for name := range m.Envs {
		out = append(out, m.Prefix(name))
	}
	return out, nil
}

func (m *Manager) ExportHistory(ctx context.Context, name string) ([]byte, error) {
	if err := m.record("ExportHistory", name, ""); err != nil {
		return nil, err
	}
	m.mu.Lock()
	deps, ok := m.Envs[name]
	m.mu.Unlock()
	if !ok {
		return nil, hookerr.CommandFailed("conda env export --name "+name, fmt.Errorf("exit status 1"))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\nchannels:\n  - defaults\ndependencies:\n", name)
	for _, d := range deps {
		fmt.Fprintf(&b, "  - %s\n", d)
	}
	fmt.Fprintf(&b, "prefix: %s\n", m.Prefix(name))
	return []byte(b.String()), nil
}

func (m *Manager) Create(ctx context.Context, name, file string) error {
	if err := m.record("Create", name, file); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Envs[name] = nil
	return nil
}

func (m *Manager) Update(ctx context.Context, name, file string) error {
	return m.record("Update", name, file)
}

func (m *Manager) Remove(ctx context.Context, name string) error {
	if err := m.record("Remove", name, ""); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Envs, name)
	return nil
}

// Install adds deps to the history of env name, as a user running
// `conda install` would.
func (m *Manager) Install(name string, deps ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Envs[name] = append(m.Envs[name], deps...)
}
