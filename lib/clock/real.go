// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// OrReal returns c, or Real() when c is nil. Config structs use this
// so that a zero-value Clock field means "wall clock".
func OrReal(c Clock) Clock {
	if c == nil {
		return Real()
	}
	return c
}
