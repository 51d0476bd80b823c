// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrentReflectsLinkerVariables(t *testing.T) {
	oldMode, oldVersion := BuildMode, Version
	t.Cleanup(func() { BuildMode, Version = oldMode, oldVersion })

	BuildMode = BuildModeStaging
	Version = "v9.9.9"
	env := Current()
	assert.Equal(t, "v9.9.9", env.SDKVersion)
	assert.True(t, env.IsDevelopment())

	BuildMode = BuildModeRelease
	assert.False(t, Current().IsDevelopment())
}
