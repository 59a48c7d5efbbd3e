// Package xtime extends time.Duration parsing and formatting with calendar
// units.
package xtime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
	year  = 365 * day
)

// units maps unit suffixes to their length. Lookups are case-sensitive, since
// "M" (month) and "m" (minute) differ.
var units = map[string]time.Duration{
	"ns": time.Nanosecond,
	"us": time.Microsecond,
	"µs": time.Microsecond,
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  day,
	"D":  day,
	"w":  week,
	"W":  week,
	"M":  month,
	"y":  year,
	"Y":  year,
}

// ParseDuration parses a duration string such as "10d", "-1.5w", "3Y4M5d" or
// "1h30m". In addition to the units accepted by time.ParseDuration, it
// supports "d" (day), "w" (week), "M" (30 days) and "Y" (365 days).
// "0" is accepted without a unit.
func ParseDuration(s string) (time.Duration, error) {
	orig := s
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	if s == "0" {
		return 0, nil
	}
	if s == "" {
		return 0, fmt.Errorf("invalid duration '%s'", orig)
	}

	var total time.Duration
	for s != "" {
		i := 0
		for i < len(s) && (s[i] == '.' || (s[i] >= '0' && s[i] <= '9')) {
			i++
		}
		if i == 0 {
			return 0, fmt.Errorf("invalid duration '%s'", orig)
		}
		num, err := strconv.ParseFloat(s[:i], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration '%s'", orig)
		}
		s = s[i:]

		j := 0
		for j < len(s) && s[j] != '.' && (s[j] < '0' || s[j] > '9') {
			j++
		}
		unit, ok := units[s[:j]]
		if !ok {
			if j == 0 {
				return 0, fmt.Errorf("missing unit in duration '%s'", orig)
			}
			return 0, fmt.Errorf("unknown unit '%s' in duration '%s'", s[:j], orig)
		}
		s = s[j:]

		total += time.Duration(num * float64(unit))
	}

	if neg {
		total = -total
	}

	return total, nil
}

// FormatDuration formats d using the largest units first, e.g. "1w2d",
// "3Y4M5d" or "1m30s". The duration is rounded to round, and no units smaller
// than round are included. A zero duration is formatted as "0s".
func FormatDuration(d time.Duration, round time.Duration) string {
	if round > 0 {
		d = d.Round(round)
	}
	if d == 0 {
		return "0s"
	}

	var sb strings.Builder
	if d < 0 {
		sb.WriteByte('-')
		d = -d
	}

	steps := []struct {
		unit   time.Duration
		suffix string
	}{
		{year, "Y"}, {month, "M"}, {week, "w"}, {day, "d"},
		{time.Hour, "h"}, {time.Minute, "m"}, {time.Second, "s"},
		{time.Millisecond, "ms"}, {time.Microsecond, "µs"}, {time.Nanosecond, "ns"},
	}
	for _, st := range steps {
		if st.unit < round {
			break
		}
		if n := d / st.unit; n > 0 {
			fmt.Fprintf(&sb, "%d%s", n, st.suffix)
			d -= n * st.unit
		}
	}

	return sb.String()
}
