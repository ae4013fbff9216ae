package reconcile_test

import (
	"os"
	"path/filepath"
	"testing"
)

// chdir changes the working directory to dir for the duration of the test,
// matching testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(dir) {
		if dir, err = os.Getwd(); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("PWD", dir)
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			panic("chdir: restoring working directory: " + err.Error())
		}
	})
}
