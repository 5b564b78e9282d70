// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable wall clock.
//
// The trust chain and the object cache make decisions based on the
// current time: a whitelist is only valid before its expiry stamp and
// a cached manifest is only reusable within its TTL. Both take a
// [Clock] so tests can pin time with [Fake] instead of generating
// fixtures relative to time.Now.
package clock
