// Copyright 2024 The dirtywatch Authors. All Rights Reserved.
// This file is available under the Apache license.

// Package tracker answers whether anything under a directory tree has
// changed since the caller last checked, without rescanning its contents.
//
// A Tracker registers a recursive watch at construction and reconciles the
// resulting event stream on demand.  Each query runs a synchronisation
// barrier first, so the answer reflects every filesystem change that
// happened before the query was issued, not an arbitrary in-flight
// snapshot.
//
// A Tracker is not safe for concurrent use: a query blocks its caller until
// the drain completes, and no second drain may run on the same instance at
// the same time.  Callers needing concurrency must serialise access
// externally.
package tracker

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/dirtywatch/dirtywatch/watcher"
)

// State describes the tracker's knowledge of the watched tree.
type State int

const (
	// Clean means no path under the root has changed since the last
	// mark-clean.
	Clean State = iota
	// Dirty means at least one path has changed, and no event loss is
	// suspected.
	Dirty
	// Unknown means the tracker cannot vouch for completeness: events may
	// have been lost, or the watch is gone.  Strictly more conservative
	// than Dirty.
	Unknown
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Unknown:
		return "unknown"
	}
	return "invalid"
}

// deriveState is the whole state machine: the reported state is a pure
// function of the connection status, the sticky rescan flag, and whether the
// dirty set is empty.
func deriveState(disconnected, rescan bool, dirty int) State {
	switch {
	case disconnected || rescan:
		return Unknown
	case dirty == 0:
		return Clean
	default:
		return Dirty
	}
}

// Tracker tracks dirty paths under a single root directory.
type Tracker struct {
	root    string
	watcher watcher.Watcher
	rec     *reconciler

	// timeout bounds each query's drain; zero waits indefinitely.
	timeout time.Duration

	// disconnected latches when the event channel closes.
	disconnected bool
}

// Option adjusts the construction of a Tracker.
type Option func(*Tracker)

// WithWatcher supplies the event source to consume instead of the platform
// default.  Used by tests, and by callers selecting a specific watcher
// variant.
func WithWatcher(w watcher.Watcher) Option {
	return func(t *Tracker) {
		t.watcher = w
	}
}

// WithTimeout bounds the drain performed by each query.  Queries whose drain
// exceeds the bound report Unknown.  Without this option queries wait
// indefinitely for the watch to catch up.
func WithTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		t.timeout = d
	}
}

// New creates a Tracker rooted at root and registers the recursive watch.
// It returns an error if the watch cannot be established.
func New(root string, options ...Option) (*Tracker, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve root %q", root)
	}
	t := &Tracker{
		root: absRoot,
		rec:  newReconciler(),
	}
	for _, option := range options {
		option(t)
	}
	if t.watcher == nil {
		w, err := watcher.NewRecursiveWatcher(absRoot)
		if err != nil {
			return nil, err
		}
		t.watcher = w
	}
	glog.V(1).Infof("tracking %q", absRoot)
	return t, nil
}

// Root returns the absolute path of the watched directory.
func (t *Tracker) Root() string { return t.root }

// Refresh reconciles all pending events, waiting at most timeout for the
// watch to catch up; zero waits indefinitely.  It returns a *TimeoutError on
// expiry (already-reconciled events remain applied), ErrDisconnected when
// the event channel has closed, or a resource error if the barrier's
// sentinel file cannot be placed.
func (t *Tracker) Refresh(timeout time.Duration) error {
	return t.drain(timeout)
}

// State reports whether the tree is Clean, Dirty, or Unknown.  It first
// reconciles everything that changed before this call.
func (t *Tracker) State() State {
	if err := t.drain(t.timeout); err != nil {
		glog.V(1).Infof("drain failed: %s", err)
		return Unknown
	}
	return deriveState(t.disconnected, t.rec.rescan, len(t.rec.dirty))
}

// Paths returns the absolute paths changed since the last mark-clean,
// sorted.  The second return is false iff the state is Unknown, in which
// case no path list can be trusted.
func (t *Tracker) Paths() ([]string, bool) {
	if err := t.drain(t.timeout); err != nil {
		glog.V(1).Infof("drain failed: %s", err)
		return nil, false
	}
	if t.rec.rescan {
		return nil, false
	}
	paths := make([]string, 0, len(t.rec.dirty))
	for p := range t.rec.dirty {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, true
}

// RelativePaths is Paths with the root stripped from each entry.
func (t *Tracker) RelativePaths() ([]string, bool) {
	paths, ok := t.Paths()
	if !ok {
		return nil, false
	}
	relative := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(t.root, p)
		if err != nil {
			// Events only carry paths under the root; keep the
			// absolute path rather than drop it.
			glog.Warningf("path %q not relative to root %q", p, t.root)
			rel = p
		}
		relative = append(relative, rel)
	}
	sort.Strings(relative)
	return relative, true
}

// MarkClean discards all accumulated state and lands in Clean.  The
// preceding drain is best-effort: its errors are swallowed, since the caller
// is explicitly throwing the state away.  A disconnected tracker still
// reports Unknown afterwards; that condition is terminal.
//
// MarkClean races with concurrent filesystem activity: changes in flight
// while it runs may be attributed to either side of the reset.  Callers
// should quiesce writers first.
func (t *Tracker) MarkClean() {
	if err := t.drain(t.timeout); err != nil {
		glog.V(1).Infof("mark clean: discarding drain error: %s", err)
	}
	t.rec.reset()
}

// Close tears down the watch registration.  The tracker reports Unknown
// from the next query onwards.
func (t *Tracker) Close() error {
	return t.watcher.Close()
}
