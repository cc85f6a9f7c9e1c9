// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the wall clock so that code stamping times
// into archive metadata can be tested deterministically.
//
// [Real] returns the production implementation backed by package time.
// [Fake] returns a [FakeClock] whose time moves only when the test
// calls [FakeClock.Advance] or [FakeClock.Set].
//
// This package has no dependencies beyond the standard library.
package clock
