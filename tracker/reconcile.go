// Copyright 2024 The dirtywatch Authors. All Rights Reserved.
// This file is available under the Apache license.

package tracker

import (
	"github.com/dirtywatch/dirtywatch/watcher"
)

// reconciler folds watch events into the set of paths believed changed since
// the last mark-clean.  created is the subset of dirty whose creation was
// itself observed in the current window; it exists only so that a create
// followed by a delete of the same path cancels out entirely, since nothing
// that existed beforehand was touched.
type reconciler struct {
	dirty   map[string]struct{}
	created map[string]struct{}
	rescan  bool
}

func newReconciler() *reconciler {
	return &reconciler{
		dirty:   make(map[string]struct{}),
		created: make(map[string]struct{}),
	}
}

// apply consumes one event.  It is total: it never fails, and event kinds
// with no mapping are no-ops.  An overflow marks the state stale but does
// not stop path processing for the event that carried it.
func (r *reconciler) apply(e watcher.Event) {
	if e.Overflow {
		r.rescan = true
	}
	switch e.Op {
	case watcher.Create:
		r.dirty[e.Pathname] = struct{}{}
		r.created[e.Pathname] = struct{}{}
	case watcher.Update:
		r.dirty[e.Pathname] = struct{}{}
	case watcher.Delete:
		if _, ok := r.created[e.Pathname]; ok {
			// The path appeared and vanished within this window;
			// no pre-existing state changed.
			delete(r.dirty, e.Pathname)
			delete(r.created, e.Pathname)
		} else {
			r.dirty[e.Pathname] = struct{}{}
		}
	}
}

// reset clears all accumulated state, including the sticky rescan flag.
func (r *reconciler) reset() {
	r.dirty = make(map[string]struct{})
	r.created = make(map[string]struct{})
	r.rescan = false
}
