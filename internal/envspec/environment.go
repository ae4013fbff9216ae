package envspec

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"condahooks/internal/hookerr"
)

// Manager is the package-manager surface an Environment needs.
// *conda.Client satisfies it.
type Manager interface {
	// ListEnvironments returns the prefix of every known environment.
	ListEnvironments(ctx context.Context) ([]string, error)
	// ExportHistory returns the explicitly requested packages of an
	// environment as an environment document.
	ExportHistory(ctx context.Context, name string) ([]byte, error)
	Create(ctx context.Context, name, file string) error
	Update(ctx context.Context, name, file string) error
	Remove(ctx context.Context, name string) error
}

// Environment binds a Spec to the live environment of the same name.
type Environment struct {
	*Spec
	mgr    Manager
	logger *slog.Logger
}

// Bind returns an Environment for s managed by mgr. A nil logger means
// slog.Default().
func (s *Spec) Bind(mgr Manager, logger *slog.Logger) *Environment {
	if logger == nil {
		logger = slog.Default()
	}
	return &Environment{Spec: s, mgr: mgr, logger: logger}
}

// Prefix returns the install prefix of the environment, or "" when it is not
// installed. Environments are matched on the base name of their prefix.
func (e *Environment) Prefix(ctx context.Context) (string, error) {
	prefixes, err := e.mgr.ListEnvironments(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range prefixes {
		if filepath.Base(p) == e.Name {
			return p, nil
		}
	}
	return "", nil
}

// Exists reports whether an environment named s.Name is installed.
func (e *Environment) Exists(ctx context.Context) (bool, error) {
	p, err := e.Prefix(ctx)
	return p != "", err
}

// RequireEnvExists fails with EnvDoesNotExist unless the environment is installed.
func (e *Environment) RequireEnvExists(ctx context.Context) error {
	ok, err := e.Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return hookerr.EnvDoesNotExist(e.Name)
	}
	return nil
}

// InstalledDependencies returns the sorted plain dependencies from the
// environment's history export.
func (e *Environment) InstalledDependencies(ctx context.Context) ([]string, error) {
	if err := e.RequireEnvExists(ctx); err != nil {
		return nil, err
	}
	out, err := e.mgr.ExportHistory(ctx, e.Name)
	if err != nil {
		return nil, err
	}
	exported, err := Parse(out)
	if err != nil {
		return nil, fmt.Errorf("parse history export of %s: %w", e.Name, err)
	}
	deps := exported.Dependencies
	sort.Strings(deps)
	return deps, nil
}

// Create installs the environment from the env file. It is a no-op when the
// environment already exists.
func (e *Environment) Create(ctx context.Context) error {
	ok, err := e.Exists(ctx)
	if err != nil {
		return err
	}
	if ok {
		e.logger.Warn("environment exists, do not create", "name", e.Name)
		return nil
	}
	e.logger.Info("create environment", "name", e.Name, "file", e.Path)
	return e.mgr.Create(ctx, e.Name, e.Path)
}

// Update brings the installed environment in line with the env file.
func (e *Environment) Update(ctx context.Context) error {
	if err := e.RequireEnvExists(ctx); err != nil {
		return err
	}
	e.logger.Info("update environment", "name", e.Name, "file", e.Path)
	return e.mgr.Update(ctx, e.Name, e.Path)
}

// Remove uninstalls the environment. It is a no-op when the environment
// does not exist.
func (e *Environment) Remove(ctx context.Context) error {
	ok, err := e.Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		e.logger.Warn("environment does not exist, do not remove", "name", e.Name)
		return nil
	}
	e.logger.Info("remove environment", "name", e.Name)
	return e.mgr.Remove(ctx, e.Name)
}
