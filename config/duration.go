package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// durationRe matches durations of the form 1w2d3h4m5s, with every
// component optional.
var durationRe = regexp.MustCompile(`^(?:(\d+)w)?(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseDuration parses a duration string that supports weeks and days
// on top of the usual hours/minutes/seconds, e.g. "2w", "1d12h", "90m".
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q, expected e.g. 1w2d3h4m5s", s)
	}

	units := []time.Duration{
		7 * 24 * time.Hour, // weeks
		24 * time.Hour,     // days
		time.Hour,
		time.Minute,
		time.Second,
	}

	var d time.Duration
	var matched bool
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		d += time.Duration(n) * unit
		matched = true
	}

	if !matched {
		return 0, fmt.Errorf("invalid duration %q, expected e.g. 1w2d3h4m5s", s)
	}

	return d, nil
}
