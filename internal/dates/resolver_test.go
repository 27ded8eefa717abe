package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march10 = time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

func TestResolveRolling(t *testing.T) {
	got, err := Resolve(Policy{Mode: ModeRolling, Rolling: RollingPolicy{Window: 3}}, march10, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-09", "2024-03-08", "2024-03-07"}, got)
}

func TestResolveRollingWithStartFloor(t *testing.T) {
	p := Policy{Mode: ModeRolling, Rolling: RollingPolicy{Window: 5, Start: "2024-03-08"}}
	got, err := Resolve(p, march10, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-09", "2024-03-08"}, got)
}

func TestResolveRange(t *testing.T) {
	p := Policy{Mode: ModeRange, Range: RangePolicy{Start: "2024-01-01", End: "2024-01-03"}}
	got, err := Resolve(p, march10, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-03", "2024-01-02", "2024-01-01"}, got)
}

func TestResolveRangeEndDefaultsToYesterday(t *testing.T) {
	p := Policy{Mode: ModeRange, Range: RangePolicy{Start: "2024-03-07"}}
	got, err := Resolve(p, march10, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-09", "2024-03-08", "2024-03-07"}, got)
}

func TestResolveList(t *testing.T) {
	p := Policy{Mode: ModeList, List: []string{"2024-01-02", "2024-01-05", "2024-01-02"}}
	got, err := Resolve(p, march10, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-05", "2024-01-02"}, got, "deduplicated, newest first")
}

func TestResolveOverrideShortCircuits(t *testing.T) {
	p := Policy{Mode: ModeRolling, Rolling: RollingPolicy{Window: 30}}
	got, err := Resolve(p, march10, "2023-12-25")
	require.NoError(t, err)
	assert.Equal(t, []string{"2023-12-25"}, got)
}

func TestResolveConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		p    Policy
	}{
		{"unknown mode", Policy{Mode: "weekly"}},
		{"start after end", Policy{Mode: ModeRange, Range: RangePolicy{Start: "2024-02-01", End: "2024-01-01"}}},
		{"bad range start", Policy{Mode: ModeRange, Range: RangePolicy{Start: "01/02/2024"}}},
		{"zero rolling window", Policy{Mode: ModeRolling}},
		{"bad list date", Policy{Mode: ModeList, List: []string{"not-a-date"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve(tc.p, march10, "")
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}
