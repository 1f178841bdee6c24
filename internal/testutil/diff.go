// Copyright 2024 The dirtywatch Authors. All Rights Reserved.
// This file is available under the Apache license.

package testutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func Diff(a, b interface{}, opts ...cmp.Option) string {
	return cmp.Diff(a, b, opts...)
}

func ExpectNoDiff(tb testing.TB, expected, received interface{}, opts ...cmp.Option) bool {
	tb.Helper()
	if diff := Diff(expected, received, opts...); diff != "" {
		tb.Errorf("Unexpected diff, -expected +received:\n%s", diff)
		return false
	}
	return true
}

func SortSlices(lessFunc interface{}) cmp.Option {
	return cmpopts.SortSlices(lessFunc)
}
