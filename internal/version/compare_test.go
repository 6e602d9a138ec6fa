package version

import (
	"testing"

	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name        string
		version     string
		constraint  string
		expectError bool
	}{
		{name: "exact match", version: "1.0.0", constraint: "^1", expectError: false},
		{name: "minor higher", version: "1.4.2", constraint: "^1", expectError: false},
		{name: "v prefix", version: "v1.2.0", constraint: "^1", expectError: false},
		{name: "major higher", version: "2.0.0", constraint: "^1", expectError: true},
		{name: "major lower", version: "0.9.0", constraint: "^1", expectError: true},
		{name: "malformed version", version: "one", constraint: "^1", expectError: true},
		{name: "malformed constraint", version: "1.0.0", constraint: "^^", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check("strategy map", tt.version, tt.constraint)
			if !tt.expectError {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeVersionMismatch))
		})
	}
}

func TestGetVersion(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	Version = "1.2.3"
	assert.Equal(t, "1.2.3", GetVersion())
}
