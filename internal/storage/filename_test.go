// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilename(t *testing.T) {
	for _, ok := range []string{"a.json", "2024-01-01_10-00-00.json", "name with spaces.json", "..json"} {
		assert.NoError(t, ValidateFilename(ok), ok)
	}
	for _, bad := range []string{"", ".", "..", "index.json", "a/b.json", `a\b.json`, ".tmp-123", "a\x00b"} {
		assert.Error(t, ValidateFilename(bad), "%q", bad)
	}
}
