// Copyright 2024 The dirtywatch Authors. All Rights Reserved.
// This file is available under the Apache license.

//go:build linux

package watcher

import (
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// inotifyMask selects the raw events that map onto the logical event kinds.
// Metadata-only changes (IN_ATTRIB) are deliberately excluded.
const inotifyMask = unix.IN_CREATE | unix.IN_MODIFY | unix.IN_DELETE |
	unix.IN_MOVED_FROM | unix.IN_MOVED_TO | unix.IN_DELETE_SELF

// InotifyWatcher is the native Linux watcher, reading the inotify queue
// directly.  Like RecursiveWatcher it registers a watch per directory; the
// two differ only in how raw records are decoded.
type InotifyWatcher struct {
	root   string
	fd     int
	pipe   [2]int // wakes the reader on Close
	events chan Event

	// paths maps watch descriptors to directory paths.  It is written by
	// the constructor and then only by the reader goroutine.
	paths map[int32]string

	closeOnce sync.Once
}

// NewInotifyWatcher registers a recursive inotify watch over root.
func NewInotifyWatcher(root string) (*InotifyWatcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, errors.Wrap(err, "inotify_init1")
	}
	w := &InotifyWatcher{
		root:   root,
		fd:     fd,
		events: make(chan Event, eventBufferSize),
		paths:  make(map[int32]string),
	}
	if err := unix.Pipe2(w.pipe[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "pipe2")
	}
	if err := w.addAll(root); err != nil {
		unix.Close(fd)
		unix.Close(w.pipe[0])
		unix.Close(w.pipe[1])
		return nil, err
	}
	go w.run()
	return w, nil
}

// Events returns the channel of translated events.
func (w *InotifyWatcher) Events() <-chan Event { return w.events }

// Close shuts down the watcher.  It is safe to call from multiple clients.
func (w *InotifyWatcher) Close() error {
	w.closeOnce.Do(func() {
		// Closing the write end of the pipe wakes the reader, which
		// owns the remaining file descriptors.
		unix.Close(w.pipe[1])
	})
	return nil
}

func (w *InotifyWatcher) addAll(dir string) error {
	return filepath.WalkDir(dir, func(pathname string, entry fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, "walk %q", pathname)
		}
		if !entry.IsDir() {
			return nil
		}
		if err := w.addWatch(pathname); err != nil {
			return err
		}
		return nil
	})
}

func (w *InotifyWatcher) addWatch(pathname string) error {
	wd, err := unix.InotifyAddWatch(w.fd, pathname, inotifyMask)
	if err != nil {
		return errors.Wrapf(err, "failed to create a new watch on %q", pathname)
	}
	w.paths[int32(wd)] = pathname
	glog.V(2).Infof("watching %q (wd %d)", pathname, wd)
	return nil
}

func (w *InotifyWatcher) run() {
	defer close(w.events)
	defer func() {
		// The reader owns the inotify fd and the read end of the pipe.
		unix.Close(w.fd)
		unix.Close(w.pipe[0])
	}()

	pollFds := []unix.PollFd{
		{Fd: int32(w.fd), Events: unix.POLLIN},
		{Fd: int32(w.pipe[0]), Events: unix.POLLIN},
	}
	var buf [unix.SizeofInotifyEvent * 4096]byte
	for {
		n, err := unix.Poll(pollFds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			glog.Errorf("inotify poll: %s", err)
			errorCount.Add(1)
			return
		}
		if n == 0 {
			continue
		}
		if pollFds[1].Revents != 0 {
			glog.Info("shutting down inotify watcher")
			return
		}
		if pollFds[0].Revents&unix.POLLIN == 0 {
			continue
		}
		for {
			n, err := unix.Read(w.fd, buf[:])
			if err == unix.EAGAIN {
				break
			}
			if err != nil {
				glog.Errorf("inotify read: %s", err)
				errorCount.Add(1)
				return
			}
			if !w.decode(buf[:n]) {
				return
			}
		}
	}
}

// decode translates one batch of raw inotify records.  It returns false when
// the watch on the root itself is gone, which is terminal.
func (w *InotifyWatcher) decode(buf []byte) bool {
	for offset := 0; offset+unix.SizeofInotifyEvent <= len(buf); {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		name := ""
		if raw.Len > 0 {
			b := buf[offset+unix.SizeofInotifyEvent : offset+unix.SizeofInotifyEvent+int(raw.Len)]
			name = strings.TrimRight(string(b), "\x00")
		}
		if !w.handleRaw(raw.Wd, raw.Mask, name) {
			return false
		}
		offset += unix.SizeofInotifyEvent + int(raw.Len)
	}
	return true
}

func (w *InotifyWatcher) handleRaw(wd int32, mask uint32, name string) bool {
	if mask&unix.IN_Q_OVERFLOW != 0 {
		glog.Warning("inotify queue overflowed")
		errorCount.Add(1)
		w.events <- Event{Overflow: true}
		return true
	}
	dir, ok := w.paths[wd]
	if mask&unix.IN_IGNORED != 0 {
		delete(w.paths, wd)
		if ok && dir == w.root {
			glog.Warningf("watch on root %q removed by the kernel", w.root)
			return false
		}
		return true
	}
	if !ok {
		glog.V(2).Infof("event for unknown wd %d", wd)
		return true
	}
	pathname := filepath.Join(dir, name)
	switch {
	case mask&(unix.IN_CREATE|unix.IN_MOVED_TO) != 0:
		eventCount.Add("create", 1)
		w.events <- Event{Op: Create, Pathname: pathname}
		if mask&unix.IN_ISDIR != 0 {
			w.followNewDir(pathname)
		}
	case mask&unix.IN_MODIFY != 0:
		eventCount.Add("update", 1)
		w.events <- Event{Op: Update, Pathname: pathname}
	case mask&(unix.IN_DELETE|unix.IN_MOVED_FROM) != 0:
		eventCount.Add("delete", 1)
		w.events <- Event{Op: Delete, Pathname: pathname}
	default:
		glog.V(2).Infof("ignoring mask %#x for %q", mask, pathname)
	}
	return true
}

// followNewDir extends the watch into a directory created after
// registration, reporting entries that raced ahead of the watch as
// creations.  Failure to extend the watch is reported as an overflow.
func (w *InotifyWatcher) followNewDir(dir string) {
	err := filepath.WalkDir(dir, func(pathname string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if pathname != dir {
			eventCount.Add("create", 1)
			w.events <- Event{Op: Create, Pathname: pathname}
		}
		if entry.IsDir() {
			return w.addWatch(pathname)
		}
		return nil
	})
	if err != nil {
		glog.Warningf("failed to follow new directory %q: %s", dir, err)
		errorCount.Add(1)
		w.events <- Event{Overflow: true}
	}
}
