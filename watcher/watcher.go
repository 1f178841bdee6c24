// Copyright 2024 The dirtywatch Authors. All Rights Reserved.
// This file is available under the Apache license.

// Package watcher provides recursive filesystem watching and delivers change
// notifications as a stream of events over a channel.
//
// Two concrete watchers are provided: RecursiveWatcher, built on the
// cross-platform fsnotify backend, and on Linux a native inotify variant.
// They differ only in how raw OS notifications are mapped onto the logical
// event kinds; consumers are written against the Watcher interface and never
// see platform encodings.
package watcher

type OpType int

const (
	_ OpType = iota
	Create
	Update
	Delete
)

func (o OpType) String() string {
	switch o {
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return "none"
}

// Event is a generalisation of events sent from the watcher to its listeners.
//
// Overflow indicates that the underlying notification queue dropped events in
// this window; the receiver can no longer assume it has seen every change.
// An Event can carry Overflow with a zero Op when the OS reports the loss as
// a standalone record.
type Event struct {
	Op       OpType
	Pathname string
	Overflow bool
}

// Watcher describes an interface for filesystem watching.
//
// Events returns the channel on which change notifications are delivered, in
// the order the underlying mechanism observed them.  The channel is closed
// when the watch terminates; a closed channel is the disconnect signal and is
// terminal.
type Watcher interface {
	Events() <-chan Event
	Close() error
}
