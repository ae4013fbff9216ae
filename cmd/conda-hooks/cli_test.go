package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"condahooks/internal/envspec"
	"condahooks/internal/envspec/envspectest"
	"condahooks/internal/settings"
)

type testApp struct {
	*app
	out *bytes.Buffer
	err *bytes.Buffer
}

// newTestApp returns an app backed by mgr that never sees a terminal.
func newTestApp(mgr *envspectest.Manager) *testApp {
	var out, errOut bytes.Buffer
	a := newApp(strings.NewReader(""), &out, &errOut)
	a.newManager = func(*settings.Settings, *slog.Logger) envspec.Manager { return mgr }
	a.isTerminal = func() bool { return false }
	return &testApp{app: a, out: &out, err: &errOut}
}

func (ta *testApp) run(args ...string) int {
	return ta.execute(context.Background(), args)
}

// workdir creates a temp dir holding files and changes into it.
func workdir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	chdir(t, dir)
	return dir
}

// ---------------------------------------------------------------------------
// help and dispatch
// ---------------------------------------------------------------------------

func TestHelpContainsAllCommands(t *testing.T) {
	ta := newTestApp(envspectest.New(nil))
	if code := ta.run("--help"); code != 0 {
		t.Fatalf("--help exit code = %d", code)
	}
	help := ta.out.String()
	for _, cmd := range commands {
		if !strings.Contains(help, cmd.name) {
			t.Errorf("help output missing command %q", cmd.name)
		}
		if !strings.Contains(help, cmd.short) {
			t.Errorf("help output missing short description %q", cmd.short)
		}
	}
	if !strings.Contains(help, "version") {
		t.Error("help output missing version command")
	}
}

func TestNoArgsPrintsHelp(t *testing.T) {
	ta := newTestApp(envspectest.New(nil))
	if code := ta.run(); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(ta.out.String(), "Usage:") {
		t.Errorf("expected usage, got: %s", ta.out.String())
	}
}

func TestHelpNamesDefaultFiles(t *testing.T) {
	ta := newTestApp(envspectest.New(nil))
	if code := ta.run("--help"); code != 0 {
		t.Fatalf("--help exit code = %d", code)
	}
	help := ta.out.String()
	last := -1
	for _, name := range envspec.DefaultFilenames {
		i := strings.Index(help, name)
		if i < 0 {
			t.Fatalf("help output missing default file %q", name)
		}
		if i < last {
			t.Errorf("default file %q listed out of probe order", name)
		}
		last = i
	}
}

func TestLongHelpForKnownCommands(t *testing.T) {
	for _, cmd := range commands {
		t.Run(cmd.name, func(t *testing.T) {
			ta := newTestApp(envspectest.New(nil))
			if code := ta.run("help", cmd.name); code != 0 {
				t.Fatalf("help %s exit code = %d", cmd.name, code)
			}
			if !strings.Contains(ta.out.String(), cmd.usage) {
				t.Errorf("long help for %q missing usage line %q\ngot: %s", cmd.name, cmd.usage, ta.out.String())
			}
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	ta := newTestApp(envspectest.New(nil))
	if code := ta.run("no-such-command-xyz"); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(ta.err.String(), "Error:") || !strings.Contains(ta.err.String(), "unknown command") {
		t.Errorf("unexpected stderr: %s", ta.err.String())
	}
}

func TestCommandsHaveRequiredFields(t *testing.T) {
	if len(commands) == 0 {
		t.Fatal("commands slice is empty")
	}
	for _, cmd := range commands {
		if cmd.name == "" || cmd.short == "" || cmd.usage == "" || cmd.run == nil {
			t.Errorf("command %+v is incomplete", cmd.name)
		}
		if !strings.HasPrefix(cmd.usage, appName+" "+cmd.name) {
			t.Errorf("usage %q does not start with %q", cmd.usage, appName+" "+cmd.name)
		}
	}
}

func TestVersion(t *testing.T) {
	workdir(t, map[string]string{settings.FileName: "log_level: loud\n"})
	ta := newTestApp(envspectest.New(nil))
	if code := ta.run("version"); code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, ta.err.String())
	}
	if !strings.Contains(ta.out.String(), Version) {
		t.Errorf("version output %q missing %q", ta.out.String(), Version)
	}
}

// ---------------------------------------------------------------------------
// store
// ---------------------------------------------------------------------------

func TestStore(t *testing.T) {
	dir := workdir(t, map[string]string{
		"environment.yml": "name: demo\ndependencies:\n  - python\n",
	})
	ta := newTestApp(envspectest.New(map[string][]string{"demo": {"black", "python"}}))

	if code := ta.run("store"); code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, ta.err.String())
	}
	data, err := os.ReadFile(filepath.Join(dir, "environment.yml"))
	if err != nil {
		t.Fatal(err)
	}
	want := "name: demo\ndependencies:\n  - black\n  - python\n"
	if string(data) != want {
		t.Errorf("env file:\n%s\nwant:\n%s", data, want)
	}
	if !strings.Contains(ta.out.String(), "(demo): 1 added") {
		t.Errorf("stdout missing per-file count: %s", ta.out.String())
	}
	if !strings.Contains(ta.out.String(), "added black") {
		t.Errorf("stdout missing added packages: %s", ta.out.String())
	}
}

func TestStoreGlobFromSettings(t *testing.T) {
	dir := workdir(t, map[string]string{
		settings.FileName: "globs:\n  - envs/*.yml\n",
		"envs/a.yml":      "name: a\n",
		"envs/b.yml":      "name: b\n",
	})
	ta := newTestApp(envspectest.New(map[string][]string{"a": {"numpy"}, "b": {"scipy"}}))

	if code := ta.run("store"); code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, ta.err.String())
	}
	if !strings.Contains(ta.out.String(), "added numpy, scipy") {
		t.Errorf("stdout missing dependency summary: %s", ta.out.String())
	}
	for name, dep := range map[string]string{"a": "numpy", "b": "scipy"} {
		data, err := os.ReadFile(filepath.Join(dir, "envs", name+".yml"))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), dep) {
			t.Errorf("%s.yml missing %s:\n%s", name, dep, data)
		}
	}
}

func TestStoreDedupeFlag(t *testing.T) {
	dir := workdir(t, map[string]string{
		"environment.yml": "name: dup\ndependencies:\n  - zlib\n  - zlib\n",
	})
	ta := newTestApp(envspectest.New(nil))
	if code := ta.run("--dedupe", "store"); code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, ta.err.String())
	}
	data, _ := os.ReadFile(filepath.Join(dir, "environment.yml"))
	if n := strings.Count(string(data), "zlib"); n != 1 {
		t.Errorf("zlib appears %d times:\n%s", n, data)
	}
}

// ---------------------------------------------------------------------------
// error policy
// ---------------------------------------------------------------------------

func TestHookErrorExitCode(t *testing.T) {
	tests := []struct {
		name     string
		settings string
		args     []string
		want     int
	}{
		{name: "default", args: []string{"store"}, want: 0},
		{name: "strict flag", args: []string{"--strict", "store"}, want: 1},
		{name: "strict setting", settings: "strict: true\n", args: []string{"store"}, want: 1},
		{name: "flag overrides setting", settings: "strict: true\n", args: []string{"--strict=false", "store"}, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			files := map[string]string{}
			if tc.settings != "" {
				files[settings.FileName] = tc.settings
			}
			workdir(t, files)
			ta := newTestApp(envspectest.New(nil))

			if code := ta.run(tc.args...); code != tc.want {
				t.Fatalf("exit code = %d, want %d", code, tc.want)
			}
			stderr := ta.err.String()
			if !strings.Contains(stderr, "failed to find env file") || !strings.Contains(stderr, "level=ERROR") {
				t.Errorf("expected one error log line, got: %s", stderr)
			}
			if strings.Contains(stderr, "Error:") {
				t.Errorf("hook errors must be logged, not printed: %s", stderr)
			}
		})
	}
}

func TestUpdateMissingEnvironment(t *testing.T) {
	workdir(t, map[string]string{"environment.yml": "name: ghost\n"})
	ta := newTestApp(envspectest.New(nil))
	if code := ta.run("--strict", "update"); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(ta.err.String(), "environment does not exist: ghost") {
		t.Errorf("unexpected stderr: %s", ta.err.String())
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name     string
		settings string
		args     []string
	}{
		{name: "bad log level flag", args: []string{"--log-level", "loud", "store"}},
		{name: "bad log level setting", settings: "log_level: loud\n", args: []string{"store"}},
		{name: "malformed settings", settings: "globs: [\n", args: []string{"store"}},
		{name: "missing explicit settings", args: []string{"--config", "nope.yaml", "store"}},
		{name: "unknown flag", args: []string{"store", "--bogus"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			files := map[string]string{"environment.yml": "name: x\n"}
			if tc.settings != "" {
				files[settings.FileName] = tc.settings
			}
			workdir(t, files)
			ta := newTestApp(envspectest.New(nil))
			if code := ta.run(tc.args...); code != 1 {
				t.Fatalf("exit code = %d, want 1", code)
			}
			if !strings.HasPrefix(ta.err.String(), "Error: ") {
				t.Errorf("expected Error: prefix, got: %s", ta.err.String())
			}
		})
	}
}

// ---------------------------------------------------------------------------
// create / remove
// ---------------------------------------------------------------------------

func TestCreateThenUpdate(t *testing.T) {
	dir := workdir(t, map[string]string{"environment.yml": "name: fresh\n"})
	mgr := envspectest.New(nil)
	ta := newTestApp(mgr)

	if code := ta.run("create"); code != 0 {
		t.Fatalf("create exit code = %d, stderr: %s", code, ta.err.String())
	}
	if _, ok := mgr.Envs["fresh"]; !ok {
		t.Fatal("environment was not created")
	}
	if code := ta.run("--strict", "update"); code != 0 {
		t.Fatalf("update exit code = %d, stderr: %s", code, ta.err.String())
	}
	calls := mgr.Calls()
	last := calls[len(calls)-1]
	if last.Method != "Update" || last.File != filepath.Join(dir, "environment.yml") {
		t.Errorf("last call = %+v", last)
	}
}

func TestRemove(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		terminal bool
		answer   bool
		removed  bool
		asked    bool
	}{
		{name: "non-interactive", args: []string{"remove"}, removed: true},
		{name: "yes flag", args: []string{"remove", "--yes"}, terminal: true, removed: true},
		{name: "confirmed", args: []string{"remove"}, terminal: true, answer: true, removed: true, asked: true},
		{name: "declined", args: []string{"remove"}, terminal: true, asked: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			workdir(t, map[string]string{"environment.yml": "name: doomed\n"})
			mgr := envspectest.New(map[string][]string{"doomed": {"python"}})
			ta := newTestApp(mgr)
			ta.isTerminal = func() bool { return tc.terminal }
			var question string
			ta.confirm = func(q string) (bool, error) {
				question = q
				return tc.answer, nil
			}

			if code := ta.run(tc.args...); code != 0 {
				t.Fatalf("exit code = %d, stderr: %s", code, ta.err.String())
			}
			if _, present := mgr.Envs["doomed"]; present == tc.removed {
				t.Errorf("environment present = %v, want removed = %v", present, tc.removed)
			}
			if asked := question != ""; asked != tc.asked {
				t.Errorf("asked = %v, want %v", asked, tc.asked)
			}
			if tc.asked && !strings.Contains(question, "doomed") {
				t.Errorf("question %q does not name the environment", question)
			}
		})
	}
}
