// Copyright 2024 The dirtywatch Authors. All Rights Reserved.
// This file is available under the Apache license.

package watcher

import (
	"expvar"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
	"github.com/pkg/errors"
)

var (
	eventCount = expvar.NewMap("dirtywatch_event_count")
	errorCount = expvar.NewInt("dirtywatch_error_count")
)

// eventBufferSize bounds how many translated events can queue between drains.
// When the buffer fills, backpressure propagates to the OS queue, which
// eventually reports an overflow; the overflow record is delivered in-stream
// so the consumer degrades to a rescan instead of silently missing changes.
const eventBufferSize = 256

// RecursiveWatcher watches a directory subtree using the fsnotify backend.
// fsnotify watches are not recursive, so a watch is registered on every
// directory under the root, and directories created later are picked up as
// their create events arrive.
type RecursiveWatcher struct {
	root      string
	watcher   *fsnotify.Watcher
	events    chan Event
	closeOnce sync.Once
}

// NewRecursiveWatcher registers a recursive watch over root and starts
// delivering events.  It fails if the watch cannot be established on the
// root or any directory beneath it.
func NewRecursiveWatcher(root string) (*RecursiveWatcher, error) {
	f, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "fsnotify.NewWatcher")
	}
	w := &RecursiveWatcher{
		root:    root,
		watcher: f,
		events:  make(chan Event, eventBufferSize),
	}
	if err := w.addAll(root); err != nil {
		if cerr := f.Close(); cerr != nil {
			glog.Warningf("close after failed watch registration: %s", cerr)
		}
		return nil, err
	}
	go w.run()
	return w, nil
}

// Events returns the channel of translated events.
func (w *RecursiveWatcher) Events() <-chan Event { return w.events }

// Close shuts down the watcher.  It is safe to call from multiple clients.
func (w *RecursiveWatcher) Close() (err error) {
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
	})
	return
}

// addAll registers a watch on dir and every directory beneath it.
func (w *RecursiveWatcher) addAll(dir string) error {
	return filepath.WalkDir(dir, func(pathname string, entry fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, "walk %q", pathname)
		}
		if !entry.IsDir() {
			return nil
		}
		if err := w.watcher.Add(pathname); err != nil {
			return errors.Wrapf(err, "failed to create a new watch on %q", pathname)
		}
		glog.V(2).Infof("watching %q", pathname)
		return nil
	})
}

func (w *RecursiveWatcher) run() {
	defer close(w.events)
	for {
		select {
		case e, ok := <-w.watcher.Events:
			if !ok {
				glog.Info("shutting down filesystem watcher")
				return
			}
			w.translate(e)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				glog.Info("shutting down filesystem watcher")
				return
			}
			errorCount.Add(1)
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				glog.Warningf("event queue overflowed: %s", err)
				w.events <- Event{Overflow: true}
				continue
			}
			glog.Errorf("fsnotify error: %s", err)
		}
	}
}

func (w *RecursiveWatcher) translate(e fsnotify.Event) {
	glog.V(2).Infof("watcher event %v", e)
	switch {
	case e.Op&fsnotify.Create == fsnotify.Create:
		eventCount.Add("create", 1)
		w.events <- Event{Op: Create, Pathname: e.Name}
		w.followNewDir(e.Name)
	case e.Op&fsnotify.Write == fsnotify.Write:
		eventCount.Add("update", 1)
		w.events <- Event{Op: Update, Pathname: e.Name}
	case e.Op&fsnotify.Remove == fsnotify.Remove:
		eventCount.Add("delete", 1)
		w.events <- Event{Op: Delete, Pathname: e.Name}
	case e.Op&fsnotify.Rename == fsnotify.Rename:
		// Rename is only issued on the original file path; the new name
		// receives a Create event.
		eventCount.Add("delete", 1)
		w.events <- Event{Op: Delete, Pathname: e.Name}
	default:
		// Chmod and other metadata-only changes don't modify content.
		glog.V(2).Infof("ignoring %v", e)
	}
}

// followNewDir extends the watch into a directory created after
// registration.  Entries that appeared inside it before the watch took
// effect are reported as creations so they are not missed.  If the watch
// cannot be extended an overflow is reported, since the subtree can no
// longer be observed completely.
func (w *RecursiveWatcher) followNewDir(name string) {
	fi, err := os.Lstat(name)
	if err != nil || !fi.IsDir() {
		return
	}
	err = filepath.WalkDir(name, func(pathname string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if pathname != name {
			eventCount.Add("create", 1)
			w.events <- Event{Op: Create, Pathname: pathname}
		}
		if entry.IsDir() {
			if err := w.watcher.Add(pathname); err != nil {
				return err
			}
			glog.V(2).Infof("watching %q", pathname)
		}
		return nil
	})
	if err != nil {
		glog.Warningf("failed to follow new directory %q: %s", name, err)
		errorCount.Add(1)
		w.events <- Event{Overflow: true}
	}
}
