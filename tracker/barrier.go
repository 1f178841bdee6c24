// Copyright 2024 The dirtywatch Authors. All Rights Reserved.
// This file is available under the Apache license.

package tracker

import (
	"expvar"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/dirtywatch/dirtywatch/watcher"
)

var drainCount = expvar.NewInt("dirtywatch_drain_count")

const sentinelPrefix = ".dirtywatch-sentinel-"

// sentinelPath reports whether pathname names a barrier sentinel, whether
// the current drain's or an orphan from an earlier drain that expired
// between the sentinel's create and delete.
func sentinelPath(pathname string) bool {
	return strings.HasPrefix(filepath.Base(pathname), sentinelPrefix)
}

// drain brings the dirty set up to date with every filesystem change that
// happened before this call.
//
// The watch delivers events asynchronously, so simply emptying the channel
// observes an arbitrary in-flight snapshot, and waiting a fixed interval is
// either too slow or not long enough.  Instead each drain anchors itself: it
// creates a uniquely named sentinel file under the root and removes it
// immediately.  The OS enqueues the sentinel's delete notification after
// every notification for activity that preceded the sentinel's creation, so
// consuming events until that delete arrives reconciles everything that
// happened before the drain began.  Events arriving after the sentinel are
// left for the next drain.
//
// The sentinel's own create/delete pair cancels itself out of the dirty set.
//
// A zero timeout waits indefinitely.  On expiry a TimeoutError is returned
// and events already reconciled remain applied.  A closed event channel
// returns ErrDisconnected and latches the tracker into Unknown permanently.
// Errors placing the sentinel file itself (permissions, full disk) are
// returned as wrapped resource errors distinct from both.
func (t *Tracker) drain(timeout time.Duration) error {
	if t.disconnected {
		return ErrDisconnected
	}
	drainCount.Add(1)

	sentinel := filepath.Join(t.root, sentinelPrefix+uuid.NewString())
	if err := os.WriteFile(sentinel, []byte("sentinel"), 0o600); err != nil {
		return errors.Wrapf(err, "failed to create sentinel %q", sentinel)
	}
	if err := os.Remove(sentinel); err != nil {
		return errors.Wrapf(err, "failed to remove sentinel %q", sentinel)
	}
	glog.V(2).Infof("draining to sentinel %q", sentinel)

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		select {
		case e, ok := <-t.watcher.Events():
			if !ok {
				glog.Warning("watch event channel closed")
				t.disconnected = true
				return ErrDisconnected
			}
			if sentinelPath(e.Pathname) {
				// Sentinel traffic anchors the drain but never
				// counts as dirtying, so an orphaned pair left
				// by an expired drain cannot pollute the set.
				if e.Overflow {
					t.rec.apply(watcher.Event{Overflow: true})
				}
				if e.Op == watcher.Delete && e.Pathname == sentinel {
					glog.V(2).Info("sentinel observed, drain complete")
					return nil
				}
				continue
			}
			t.rec.apply(e)
		case <-expired:
			return &TimeoutError{Duration: timeout}
		}
	}
}
