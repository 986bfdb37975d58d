// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagStoreAddAndList(t *testing.T) {
	_, _, _, tags, _ := setupStores(t)
	ctx := context.Background()

	linux, err := tags.Add(ctx, "linux")
	require.NoError(t, err)
	_, err = tags.Add(ctx, "arm64")
	require.NoError(t, err)

	_, err = tags.Add(ctx, "linux")
	assert.ErrorIs(t, err, ErrTagAlreadyExists)
	_, err = tags.Add(ctx, "  ")
	assert.ErrorIs(t, err, ErrTagNameEmpty)

	list, err := tags.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "arm64", list[0].Name)
	assert.Equal(t, "linux", list[1].Name)

	require.NoError(t, tags.Delete(ctx, linux.ID))
	assert.ErrorIs(t, tags.Delete(ctx, linux.ID), ErrTagNotFound)
}

func TestTagStoreResolveNames(t *testing.T) {
	_, _, _, tags, _ := setupStores(t)
	ctx := context.Background()

	_, err := tags.Add(ctx, "linux")
	require.NoError(t, err)
	_, err = tags.Add(ctx, "iso")
	require.NoError(t, err)

	// Unknown names are dropped, not errors.
	resolved, err := tags.ResolveNames(ctx, []string{"linux", "windows", "iso"})
	require.NoError(t, err)
	require.Len(t, resolved, 2)

	resolved, err = tags.ResolveNames(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, resolved)
}

func TestTagStoreResolveIDs(t *testing.T) {
	_, _, _, tags, _ := setupStores(t)
	ctx := context.Background()

	linux, err := tags.Add(ctx, "linux")
	require.NoError(t, err)

	resolved, err := tags.ResolveIDs(ctx, []int64{linux.ID})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "linux", resolved[0].Name)

	_, err = tags.ResolveIDs(ctx, []int64{linux.ID, 9999})
	assert.ErrorIs(t, err, ErrTagNotFound)
}
