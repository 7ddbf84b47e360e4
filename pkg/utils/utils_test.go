package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "mindboard/pkg/errors"
)

type sample struct {
	SessionID string `validate:"required"`
	Direction string `validate:"omitempty,oneof=TB LR auto"`
	Label     string `validate:"max=5"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		in      sample
		wantErr string
	}{
		{name: "valid", in: sample{SessionID: "s"}},
		{name: "missing", in: sample{}, wantErr: "sessionID is required"},
		{name: "oneof", in: sample{SessionID: "s", Direction: "up"}, wantErr: "direction must be one of: TB LR auto"},
		{name: "max", in: sample{SessionID: "s", Label: "toolong"}, wantErr: "label must be at most 5 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.in)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	ts := time.Date(2024, 2, 3, 4, 5, 6, 789, time.FixedZone("x", 3600))

	parsed, err := ParseTimestamp(FormatTimestamp(ts))
	require.NoError(t, err)
	assert.True(t, ts.Equal(parsed))

	early := FormatTimestamp(time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC))
	late := FormatTimestamp(time.Date(2024, 1, 1, 0, 0, 5, 500, time.UTC))
	assert.Less(t, early, late, "timestamps sort lexically")

	zero, err := ParseTimestamp("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
}
