// Copyright 2024 The dirtywatch Authors. All Rights Reserved.
// This file is available under the Apache license.

package watcher

import (
	"sync"

	"github.com/golang/glog"
)

// FakeWatcher implements an in-memory Watcher.  Tests inject events instead
// of performing filesystem operations, making delivery fully deterministic.
type FakeWatcher struct {
	events    chan Event
	closeOnce sync.Once
}

// NewFakeWatcher returns a fake Watcher for use in tests.
func NewFakeWatcher() *FakeWatcher {
	return &FakeWatcher{events: make(chan Event, eventBufferSize)}
}

// Events returns the channel of injected events.
func (w *FakeWatcher) Events() <-chan Event { return w.events }

// Close closes down the FakeWatcher; consumers observe the channel close as
// a disconnect.
func (w *FakeWatcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.events)
	})
	return nil
}

// InjectCreate lets a test inject a fake creation event.
func (w *FakeWatcher) InjectCreate(name string) {
	glog.V(2).Infof("injecting create for %q", name)
	w.events <- Event{Op: Create, Pathname: name}
}

// InjectUpdate lets a test inject a fake update event.
func (w *FakeWatcher) InjectUpdate(name string) {
	glog.V(2).Infof("injecting update for %q", name)
	w.events <- Event{Op: Update, Pathname: name}
}

// InjectDelete lets a test inject a fake deletion event.
func (w *FakeWatcher) InjectDelete(name string) {
	glog.V(2).Infof("injecting delete for %q", name)
	w.events <- Event{Op: Delete, Pathname: name}
}

// InjectOverflow lets a test simulate the OS dropping events.
func (w *FakeWatcher) InjectOverflow() {
	glog.V(2).Info("injecting overflow")
	w.events <- Event{Overflow: true}
}
