// Copyright 2024 The dirtywatch Authors. All Rights Reserved.
// This file is available under the Apache license.

// dirtywatch watches a directory tree and periodically reports whether
// anything under it has changed, exercising the tracker end to end.  It is a
// demonstration tool, not part of the library API.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/dirtywatch/dirtywatch/tracker"
)

var (
	rootPath     = flag.String("root", ".", "Directory tree to track.")
	interval     = flag.Duration("interval", 2*time.Second, "How often to report tracker state.")
	drainTimeout = flag.Duration("drain_timeout", 10*time.Second, "Bound on each query's event drain; 0 waits indefinitely.")
	oneShot      = flag.Bool("one_shot", false, "Report once and exit instead of looping.")
	relative     = flag.Bool("relative", true, "Report paths relative to the root.")
	markClean    = flag.Bool("mark_clean", false, "Reset the tracker after each report.")
)

func main() {
	flag.Parse()

	tr, err := tracker.New(*rootPath, tracker.WithTimeout(*drainTimeout))
	if err != nil {
		glog.Exitf("failed to track %q: %s", *rootPath, err)
	}
	defer func() {
		if err := tr.Close(); err != nil {
			glog.Errorf("close: %s", err)
		}
	}()
	glog.Infof("tracking %q", tr.Root())

	if *oneShot {
		report(os.Stdout, tr, *relative)
		return
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			report(os.Stdout, tr, *relative)
			if *markClean {
				tr.MarkClean()
			}
		case sig := <-sigc:
			glog.Infof("received %v, exiting", sig)
			return
		}
	}
}

// report prints the tracker's state and, when dirty, the dirty paths.  Each
// tracker query drains the event stream, so it asks exactly one question and
// derives the state line from its answer.
func report(w io.Writer, tr *tracker.Tracker, relative bool) {
	var paths []string
	var ok bool
	if relative {
		paths, ok = tr.RelativePaths()
	} else {
		paths, ok = tr.Paths()
	}
	state := tracker.Unknown
	switch {
	case !ok:
	case len(paths) == 0:
		state = tracker.Clean
	default:
		state = tracker.Dirty
	}
	fmt.Fprintf(w, "%s\t%s\n", tr.Root(), state)
	for _, p := range paths {
		fmt.Fprintf(w, "\t%s\n", p)
	}
}
