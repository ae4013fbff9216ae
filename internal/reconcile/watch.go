package reconcile

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"condahooks/internal/envspec"
)

// DefaultDebounce is how long Watch waits for more history changes before
// storing.
const DefaultDebounce = 500 * time.Millisecond

// historyFile is appended to by conda on every install, update or remove.
const historyFile = "history"

// Watch runs req once, then keeps the env files in sync by re-storing a file
// whenever its environment's conda-meta/history changes. Stores happen on
// the calling goroutine one at a time. Watch returns when ctx is done or a
// store fails; the report holds every store performed.
func (r *Reconciler) Watch(ctx context.Context, req Request, debounce time.Duration) *Report {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	report := r.Run(ctx, req)
	if report.Err != nil {
		return report
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		report.Err = fmt.Errorf("create watcher: %w", err)
		return report
	}
	defer fsw.Close()

	// history path -> env files whose environment owns it
	owners := make(map[string][]string)
	for _, f := range report.Files {
		if !f.Existed {
			continue
		}
		s, err := envspec.Load(f.Path)
		if err != nil {
			report.Err = err
			return report
		}
		prefix, err := s.Bind(r.mgr, r.logger).Prefix(ctx)
		if err != nil {
			report.Err = err
			return report
		}
		if prefix == "" {
			continue
		}
		meta := filepath.Join(prefix, "conda-meta")
		if err := fsw.Add(meta); err != nil {
			r.logger.Warn("failed to watch environment", "name", s.Name, "path", meta, "error", err)
			continue
		}
		history := filepath.Join(meta, historyFile)
		owners[history] = append(owners[history], f.Path)
		r.logger.Info("watching environment", "name", s.Name, "history", history)
	}
	if len(owners) == 0 {
		r.logger.Warn("no installed environments to watch")
		return report
	}

	pending := make(map[string]bool)
	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return report

		case event, ok := <-fsw.Events:
			if !ok {
				return report
			}
			files, watched := owners[filepath.Clean(event.Name)]
			if !watched || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			r.logger.Debug("history changed", "path", event.Name, "op", event.Op.String())
			for _, f := range files {
				pending[f] = true
			}
			timer.Reset(debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return report
			}
			r.logger.Error("watcher error", "error", err)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]bool)

			step := r.eachPath(ctx, paths, r.Store)
			report.Files = append(report.Files, step.Files...)
			if step.Err != nil {
				report.Err = step.Err
				return report
			}
		}
	}
}
