// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package httphelpers has small helpers shared by HTTP clients.
package httphelpers

import (
	"io"
)

// maxDrainBytes caps how much of a response body is drained before closing.
const maxDrainBytes = 1 << 18

// DrainAndClose discards the remaining body so the underlying connection can
// be reused, then closes it.
func DrainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxDrainBytes))
	_ = body.Close()
}
