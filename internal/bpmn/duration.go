package bpmn

import (
	"regexp"
	"strconv"
	"time"

	"github.com/grand-thief-cash/procflow/internal/apperr"
)

var isoDuration = regexp.MustCompile(`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseDuration reads ISO-8601 durations such as PT5M, P1DT2H or P2W. Years count as
// 365 days and months as 30 days.
func ParseDuration(s string) (time.Duration, error) {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, apperr.IllegalArgument("Invalid ISO-8601 duration '%s'", s)
	}
	units := []time.Duration{
		365 * 24 * time.Hour,
		30 * 24 * time.Hour,
		7 * 24 * time.Hour,
		24 * time.Hour,
		time.Hour,
		time.Minute,
	}
	var d time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, apperr.IllegalArgument("Invalid ISO-8601 duration '%s'", s)
		}
		d += time.Duration(n) * unit
	}
	if m[7] != "" {
		secs, err := strconv.ParseFloat(m[7], 64)
		if err != nil {
			return 0, apperr.IllegalArgument("Invalid ISO-8601 duration '%s'", s)
		}
		d += time.Duration(secs * float64(time.Second))
	}
	return d, nil
}
