// Package reconcile keeps environment files and installed conda
// environments in sync.
//
// A run resolves the env files to work on, then handles them one at a time
// in order. The first failure stops the run: files already written stay
// written and later files are not attempted. The failure is returned in the
// Report rather than logged here.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"condahooks/internal/envspec"
	"condahooks/internal/hookerr"
)

// Action names the operation a FileResult records.
type Action string

const (
	ActionStore  Action = "store"
	ActionUpdate Action = "update"
	ActionCreate Action = "create"
	ActionRemove Action = "remove"
)

// Request selects the env files of a run. See ResolveFiles.
type Request struct {
	Files []string
	Globs []string
	Dir   string
}

// FileResult describes what happened to one env file.
type FileResult struct {
	Action Action
	Path   string
	Name   string
	// Existed reports whether the environment was installed when the file
	// was handled.
	Existed bool
	// Added lists dependencies merged from the live environment (store only).
	Added []string
}

// Report is the outcome of a run. Files holds every file handled before Err.
type Report struct {
	Files []FileResult
	Err   error
}

// Options configures a Reconciler.
type Options struct {
	// Dedupe drops duplicate dependencies before writing.
	Dedupe bool
	Logger *slog.Logger
}

// Reconciler runs env-file operations against one package manager.
type Reconciler struct {
	mgr    envspec.Manager
	dedupe bool
	logger *slog.Logger
}

// New returns a Reconciler using mgr.
func New(mgr envspec.Manager, opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{mgr: mgr, dedupe: opts.Dedupe, logger: logger}
}

func (r *Reconciler) load(path string) (*envspec.Environment, error) {
	s, err := envspec.Load(path)
	if err != nil {
		return nil, err
	}
	r.logger.Info("read env file", "path", path, "name", s.Name)
	return s.Bind(r.mgr, r.logger), nil
}

// Store merges the explicitly installed packages of the live environment
// into the env file at path and rewrites it in canonical form. When the
// environment is not installed the file is only canonicalised.
func (r *Reconciler) Store(ctx context.Context, path string) (FileResult, error) {
	res := FileResult{Action: ActionStore, Path: path}
	env, err := r.load(path)
	if err != nil {
		return res, err
	}
	res.Name = env.Name

	installed, err := env.InstalledDependencies(ctx)
	switch {
	case hookerr.IsKind(err, hookerr.KindEnvDoesNotExist):
		r.logger.Warn("environment is not installed, only rewriting env file", "name", env.Name)
	case err != nil:
		return res, err
	default:
		res.Existed = true
		res.Added = env.AddDependencies(installed)
		if len(res.Added) > 0 {
			r.logger.Info("add dependencies", "name", env.Name, "deps", res.Added)
		}
	}

	env.Sort()
	if r.dedupe {
		env.Dedupe()
	}
	if err := env.Write(); err != nil {
		return res, err
	}
	r.logger.Info("write env file", "path", path)
	return res, nil
}

// Update updates the live environment from the env file at path.
func (r *Reconciler) Update(ctx context.Context, path string) (FileResult, error) {
	return r.lifecycle(ctx, path, ActionUpdate, (*envspec.Environment).Update)
}

// Create creates the environment of the env file at path if missing.
func (r *Reconciler) Create(ctx context.Context, path string) (FileResult, error) {
	return r.lifecycle(ctx, path, ActionCreate, (*envspec.Environment).Create)
}

// Remove removes the environment of the env file at path if present.
func (r *Reconciler) Remove(ctx context.Context, path string) (FileResult, error) {
	return r.lifecycle(ctx, path, ActionRemove, (*envspec.Environment).Remove)
}

func (r *Reconciler) lifecycle(ctx context.Context, path string, action Action, op func(*envspec.Environment, context.Context) error) (FileResult, error) {
	res := FileResult{Action: action, Path: path}
	env, err := r.load(path)
	if err != nil {
		return res, err
	}
	res.Name = env.Name
	if res.Existed, err = env.Exists(ctx); err != nil {
		return res, err
	}
	return res, op(env, ctx)
}

// Run stores every env file selected by req.
func (r *Reconciler) Run(ctx context.Context, req Request) *Report {
	return r.each(ctx, req, r.Store)
}

// Sync updates every live environment from its env file.
func (r *Reconciler) Sync(ctx context.Context, req Request) *Report {
	return r.each(ctx, req, r.Update)
}

// CreateAll creates every missing environment.
func (r *Reconciler) CreateAll(ctx context.Context, req Request) *Report {
	return r.each(ctx, req, r.Create)
}

// RemoveFiles removes the environments of already resolved files. Removal
// takes paths rather than a Request so callers can confirm the resolved set
// first.
func (r *Reconciler) RemoveFiles(ctx context.Context, paths []string) *Report {
	return r.eachPath(ctx, paths, r.Remove)
}

func (r *Reconciler) each(ctx context.Context, req Request, fn func(context.Context, string) (FileResult, error)) *Report {
	paths, err := ResolveFiles(req.Files, req.Globs, req.Dir)
	if err != nil {
		return &Report{Err: err}
	}
	return r.eachPath(ctx, paths, fn)
}

func (r *Reconciler) eachPath(ctx context.Context, paths []string, fn func(context.Context, string) (FileResult, error)) *Report {
	report := &Report{}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			report.Err = err
			return report
		}
		res, err := fn(ctx, p)
		if err != nil {
			report.Err = fmt.Errorf("%s %s: %w", res.Action, p, err)
			return report
		}
		report.Files = append(report.Files, res)
	}
	return report
}

// Added returns every dependency added across the report, sorted.
func (rep *Report) Added() []string {
	var all []string
	for _, f := range rep.Files {
		all = append(all, f.Added...)
	}
	sort.Strings(all)
	return all
}
