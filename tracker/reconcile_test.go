// Copyright 2024 The dirtywatch Authors. All Rights Reserved.
// This file is available under the Apache license.

package tracker

import (
	"testing"

	"github.com/dirtywatch/dirtywatch/internal/testutil"
	"github.com/dirtywatch/dirtywatch/watcher"
)

func applyAll(r *reconciler, events ...watcher.Event) {
	for _, e := range events {
		r.apply(e)
	}
}

func dirtySet(paths ...string) map[string]struct{} {
	s := make(map[string]struct{})
	for _, p := range paths {
		s[p] = struct{}{}
	}
	return s
}

func TestApplyCreate(t *testing.T) {
	r := newReconciler()
	r.apply(watcher.Event{Op: watcher.Create, Pathname: "/w/a"})
	testutil.ExpectNoDiff(t, dirtySet("/w/a"), r.dirty)
	testutil.ExpectNoDiff(t, dirtySet("/w/a"), r.created)
}

func TestApplyUpdate(t *testing.T) {
	r := newReconciler()
	r.apply(watcher.Event{Op: watcher.Update, Pathname: "/w/a"})
	testutil.ExpectNoDiff(t, dirtySet("/w/a"), r.dirty)
	testutil.ExpectNoDiff(t, dirtySet(), r.created)
}

func TestApplyDeleteOfPreexisting(t *testing.T) {
	r := newReconciler()
	r.apply(watcher.Event{Op: watcher.Delete, Pathname: "/w/a"})
	// A pre-existing file disappearing is itself a dirtying change.
	testutil.ExpectNoDiff(t, dirtySet("/w/a"), r.dirty)
	testutil.ExpectNoDiff(t, dirtySet(), r.created)
}

func TestApplyCreateThenDeleteCancels(t *testing.T) {
	r := newReconciler()
	applyAll(r,
		watcher.Event{Op: watcher.Create, Pathname: "/w/tmp"},
		watcher.Event{Op: watcher.Update, Pathname: "/w/tmp"},
		watcher.Event{Op: watcher.Delete, Pathname: "/w/tmp"},
	)
	testutil.ExpectNoDiff(t, dirtySet(), r.dirty)
	testutil.ExpectNoDiff(t, dirtySet(), r.created)
}

func TestApplyRenameAsDeleteCreatePair(t *testing.T) {
	r := newReconciler()
	applyAll(r,
		watcher.Event{Op: watcher.Delete, Pathname: "/w/a"},
		watcher.Event{Op: watcher.Create, Pathname: "/w/b"},
	)
	testutil.ExpectNoDiff(t, dirtySet("/w/a", "/w/b"), r.dirty)
}

func TestApplyOverflowIsStickyAndKeepsProcessing(t *testing.T) {
	r := newReconciler()
	r.apply(watcher.Event{Op: watcher.Create, Pathname: "/w/a", Overflow: true})
	if !r.rescan {
		t.Errorf("overflow did not set rescan")
	}
	// The event's own path is still processed.
	testutil.ExpectNoDiff(t, dirtySet("/w/a"), r.dirty)

	r.apply(watcher.Event{Op: watcher.Update, Pathname: "/w/b"})
	if !r.rescan {
		t.Errorf("rescan flag did not stick")
	}
}

func TestApplyUnknownKindIsNoOp(t *testing.T) {
	r := newReconciler()
	r.apply(watcher.Event{Pathname: "/w/a"})
	testutil.ExpectNoDiff(t, dirtySet(), r.dirty)
	if r.rescan {
		t.Errorf("unknown kind set rescan")
	}
}

func TestCreatedSubsetOfDirty(t *testing.T) {
	r := newReconciler()
	applyAll(r,
		watcher.Event{Op: watcher.Create, Pathname: "/w/a"},
		watcher.Event{Op: watcher.Create, Pathname: "/w/b"},
		watcher.Event{Op: watcher.Update, Pathname: "/w/c"},
		watcher.Event{Op: watcher.Delete, Pathname: "/w/b"},
		watcher.Event{Op: watcher.Delete, Pathname: "/w/d"},
	)
	for p := range r.created {
		if _, ok := r.dirty[p]; !ok {
			t.Errorf("created path %q not in dirty set", p)
		}
	}
	testutil.ExpectNoDiff(t, dirtySet("/w/a", "/w/c", "/w/d"), r.dirty)
}

func TestReset(t *testing.T) {
	r := newReconciler()
	applyAll(r,
		watcher.Event{Op: watcher.Create, Pathname: "/w/a"},
		watcher.Event{Overflow: true},
	)
	r.reset()
	testutil.ExpectNoDiff(t, dirtySet(), r.dirty)
	testutil.ExpectNoDiff(t, dirtySet(), r.created)
	if r.rescan {
		t.Errorf("reset did not clear rescan")
	}
}

func TestDeriveState(t *testing.T) {
	for _, tc := range []struct {
		disconnected, rescan bool
		dirty                int
		want                 State
	}{
		{false, false, 0, Clean},
		{false, false, 3, Dirty},
		{false, true, 0, Unknown},
		{false, true, 3, Unknown},
		{true, false, 0, Unknown},
		{true, true, 3, Unknown},
	} {
		if got := deriveState(tc.disconnected, tc.rescan, tc.dirty); got != tc.want {
			t.Errorf("deriveState(%v, %v, %d): got %v, want %v", tc.disconnected, tc.rescan, tc.dirty, got, tc.want)
		}
	}
}
