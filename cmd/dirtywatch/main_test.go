// Copyright 2024 The dirtywatch Authors. All Rights Reserved.
// This file is available under the Apache license.

package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dirtywatch/dirtywatch/internal/testutil"
	"github.com/dirtywatch/dirtywatch/tracker"
)

func newTestTracker(t *testing.T) (*tracker.Tracker, string) {
	t.Helper()
	dir := testutil.TestTempDir(t)
	tr, err := tracker.New(dir)
	testutil.FatalIfErr(t, err)
	t.Cleanup(func() {
		testutil.FatalIfErr(t, tr.Close())
	})
	return tr, dir
}

func TestReportDrainsOnce(t *testing.T) {
	testutil.SkipIfShort(t)
	tr, _ := newTestTracker(t)

	var out strings.Builder
	check := testutil.ExpectExpvarDeltaWithDeadline(t, "dirtywatch_drain_count", 1)
	report(&out, tr, true)
	check()
}

func TestReportCleanTree(t *testing.T) {
	testutil.SkipIfShort(t)
	tr, _ := newTestTracker(t)

	var out strings.Builder
	report(&out, tr, true)
	want := fmt.Sprintf("%s\t%s\n", tr.Root(), tracker.Clean)
	testutil.ExpectNoDiff(t, want, out.String())
}

func TestReportListsDirtyPaths(t *testing.T) {
	testutil.SkipIfShort(t)
	tr, dir := newTestTracker(t)

	testutil.WriteString(t, testutil.TestOpenFile(t, filepath.Join(dir, "file")), "changed\n")

	var out strings.Builder
	report(&out, tr, true)
	want := fmt.Sprintf("%s\t%s\n\tfile\n", tr.Root(), tracker.Dirty)
	testutil.ExpectNoDiff(t, want, out.String())
}
