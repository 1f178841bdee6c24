// Copyright 2024 The dirtywatch Authors. All Rights Reserved.
// This file is available under the Apache license.

package tracker

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrDisconnected is returned by Refresh when the event channel has closed.
// The condition is terminal: the tracker reports Unknown for the rest of its
// lifetime and is never reconnected automatically.
var ErrDisconnected = errors.New("watch event channel disconnected")

// TimeoutError is returned by Refresh when a drain does not observe its
// sentinel within the given bound.  Events drained before expiry remain
// applied, so a retry is safe.
type TimeoutError struct {
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for watch events", e.Duration)
}
