// Copyright 2024 The dirtywatch Authors. All Rights Reserved.
// This file is available under the Apache license.

//go:build linux

package tracker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dirtywatch/dirtywatch/internal/testutil"
	"github.com/dirtywatch/dirtywatch/watcher"
)

// The native inotify watcher must be a drop-in event source: the same
// create/cancel semantics hold when it is injected in place of the default.
func TestTrackerWithInotifyWatcher(t *testing.T) {
	testutil.SkipIfShort(t)
	dir := testutil.TestTempDir(t)
	w, err := watcher.NewInotifyWatcher(dir)
	testutil.FatalIfErr(t, err)
	tr, err := New(dir, WithWatcher(w))
	testutil.FatalIfErr(t, err)
	defer func() {
		testutil.FatalIfErr(t, tr.Close())
	}()
	if state := tr.State(); state != Clean {
		t.Fatalf("state: got %v, want %v", state, Clean)
	}

	file := filepath.Join(dir, "file")
	testutil.FatalIfErr(t, os.WriteFile(file, []byte("hello"), 0o600))
	if state := tr.State(); state != Dirty {
		t.Errorf("state: got %v, want %v", state, Dirty)
	}
	expectPaths(t, tr, []string{file})

	tmp := filepath.Join(dir, "tmp")
	testutil.FatalIfErr(t, os.WriteFile(tmp, []byte("scratch"), 0o600))
	testutil.FatalIfErr(t, os.Remove(tmp))
	expectPaths(t, tr, []string{file})

	tr.MarkClean()
	if state := tr.State(); state != Clean {
		t.Errorf("state after MarkClean: got %v, want %v", state, Clean)
	}
}
