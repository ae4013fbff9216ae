// Package conda drives the conda/mamba command line.
package conda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"condahooks/internal/hookerr"
)

// Options configures a Client.
type Options struct {
	// Executable skips lookup when set.
	Executable string
	// SearchPath is a PATH-style list searched for the executable.
	SearchPath  string
	PreferMamba bool
	Runner      Runner
	Logger      *slog.Logger
}

// Client runs package-manager commands. The executable is resolved on first
// use and kept for the lifetime of the Client.
type Client struct {
	opts   Options
	runner Runner
	logger *slog.Logger

	once    sync.Once
	exe     string
	findErr error
}

// New returns a Client. A nil Runner means ExecRunner.
func New(opts Options) *Client {
	c := &Client{opts: opts, runner: opts.Runner, logger: opts.Logger}
	if c.runner == nil {
		c.runner = ExecRunner{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Executable returns the resolved package-manager path.
func (c *Client) Executable() (string, error) {
	c.once.Do(func() {
		if c.opts.Executable != "" {
			c.exe = c.opts.Executable
			return
		}
		c.exe, c.findErr = FindExecutable(c.opts.SearchPath, c.opts.PreferMamba, c.logger)
	})
	return c.exe, c.findErr
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	exe, err := c.Executable()
	if err != nil {
		return nil, err
	}
	c.logger.Debug("run package manager", "exe", exe, "args", strings.Join(args, " "))
	out, err := c.runner.Run(ctx, exe, args...)
	if err != nil {
		return nil, hookerr.CommandFailed(filepath.Base(exe)+" "+strings.Join(args, " "), err)
	}
	return out, nil
}

// ListEnvironments returns the prefix of every environment known to the
// package manager.
func (c *Client) ListEnvironments(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "env", "list", "--quiet", "--json")
	if err != nil {
		return nil, err
	}
	var listing struct {
		Envs []string `json:"envs"`
	}
	if err := json.Unmarshal(out, &listing); err != nil {
		return nil, fmt.Errorf("decode environment list: %w", err)
	}
	c.logger.Debug("environment list", "envs", listing.Envs)
	return listing.Envs, nil
}

// ExportHistory returns the explicitly requested packages of environment
// name as an environment document.
func (c *Client) ExportHistory(ctx context.Context, name string) ([]byte, error) {
	out, err := c.run(ctx, "env", "export", "--from-history", "--quiet", "--name", name)
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		c.logger.Debug("export", "line", line)
	}
	return out, nil
}

// Create creates environment name from file.
func (c *Client) Create(ctx context.Context, name, file string) error {
	_, err := c.run(ctx, "env", "create", "--quiet", "--name", name, "--file", file)
	return err
}

// Update updates environment name from file.
func (c *Client) Update(ctx context.Context, name, file string) error {
	_, err := c.run(ctx, "env", "update", "--quiet", "--name", name, "--file", file)
	return err
}

// Remove removes environment name.
func (c *Client) Remove(ctx context.Context, name string) error {
	_, err := c.run(ctx, "env", "remove", "--quiet", "--yes", "--name", name)
	return err
}
