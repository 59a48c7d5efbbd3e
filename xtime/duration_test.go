package xtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     string
		exp    time.Duration
		expErr string
	}{
		{name: "ok/zero", in: "0", exp: 0},
		{name: "ok/seconds", in: "5s", exp: 5 * time.Second},
		{name: "ok/millis", in: "250ms", exp: 250 * time.Millisecond},
		{name: "ok/compound", in: "1h30m", exp: 90 * time.Minute},
		{name: "ok/days", in: "10d", exp: 240 * time.Hour},
		{name: "ok/fraction", in: "-1.5w", exp: -252 * time.Hour},
		{name: "ok/calendar", in: "1Y2M3d", exp: (365 + 60 + 3) * 24 * time.Hour},
		{name: "ok/month_vs_minute", in: "1M1m", exp: 30*24*time.Hour + time.Minute},
		{name: "err/empty", in: "", expErr: "invalid duration ''"},
		{name: "err/no_unit", in: "10", expErr: "missing unit in duration '10'"},
		{name: "err/unknown_unit", in: "3x", expErr: "unknown unit 'x' in duration '3x'"},
		{name: "err/bad_number", in: "1.2.3s", expErr: "invalid duration '1.2.3s'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, err := ParseDuration(tt.in)
			if tt.expErr != "" {
				require.EqualError(t, err, tt.expErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.exp, d)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d     time.Duration
		round time.Duration
		exp   string
	}{
		{d: 0, exp: "0s"},
		{d: 5 * time.Second, round: time.Millisecond, exp: "5s"},
		{d: 1500 * time.Millisecond, round: time.Millisecond, exp: "1s500ms"},
		{d: 1500 * time.Millisecond, round: time.Second, exp: "2s"},
		{d: 9 * 24 * time.Hour, round: time.Hour, exp: "1w2d"},
		{d: -90 * time.Minute, exp: "-1h30m"},
		{d: 400 * time.Millisecond, round: time.Second, exp: "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.exp, func(t *testing.T) {
			t.Parallel()

			s := FormatDuration(tt.d, tt.round)
			assert.Equal(t, tt.exp, s)

			back, err := ParseDuration(s)
			require.NoError(t, err)
			assert.Equal(t, tt.d.Round(max(tt.round, 1)), back)
		})
	}
}
