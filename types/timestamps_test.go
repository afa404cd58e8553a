package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceTimestamp(t *testing.T) {
	ref := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   interface{}
		want    time.Time
		wantErr bool
	}{
		{
			name:  "native time passes through",
			input: ref,
			want:  ref,
		},
		{
			name:  "pointer to time dereferences",
			input: &ref,
			want:  ref,
		},
		{
			name:  "RFC3339 string",
			input: "2024-03-15T10:30:00Z",
			want:  ref,
		},
		{
			name:  "RFC3339 with nanos",
			input: "2024-03-15T10:30:00.000000000Z",
			want:  ref,
		},
		{
			name:  "sqlite datetime string",
			input: "2024-03-15 10:30:00",
			want:  ref,
		},
		{
			name:  "epoch millis int64",
			input: ref.UnixMilli(),
			want:  ref,
		},
		{
			name:  "epoch millis float64 from json decode",
			input: float64(ref.UnixMilli()),
			want:  ref,
		},
		{
			name:  "epoch millis numeric string",
			input: "1710498600000",
			want:  ref,
		},
		{
			name:  "json.Number",
			input: json.Number("1710498600000"),
			want:  ref,
		},
		{
			name:    "nil rejected",
			input:   nil,
			wantErr: true,
		},
		{
			name:    "nil time pointer rejected",
			input:   (*time.Time)(nil),
			wantErr: true,
		},
		{
			name:    "empty string rejected",
			input:   "",
			wantErr: true,
		},
		{
			name:    "garbage string rejected",
			input:   "not-a-timestamp",
			wantErr: true,
		},
		{
			name:    "unsupported type rejected",
			input:   []string{"nope"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CoerceTimestamp(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestParseEntityType(t *testing.T) {
	for _, valid := range []string{"group", "group_member", "expense", "expense_share"} {
		et, err := ParseEntityType(valid)
		require.NoError(t, err)
		assert.Equal(t, EntityType(valid), et)
	}

	_, err := ParseEntityType("receipt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown entity type")
}
