// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the wall clock. Production code injects Real();
// tests inject Fake() and move time explicitly.
//
// Anything that compares against the current time (whitelist expiry,
// manifest TTL, cache freshness records) takes a Clock instead of
// calling time.Now directly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}
