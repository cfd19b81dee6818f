// Package beacon serializes collected metrics into the two wire formats:
// the compact delimiter-based GET query string and the JSON POST body.
package beacon

import "strings"

// FitEntries selects the leading entries that fit within the URL length
// budget once joined onto baseURL, comma separated. At most maxCount
// entries are considered; entries that do not fit are returned in
// remaining, preserving original relative order, for supplementary
// beacons. At least one entry is always included when values is non-empty,
// even if that single entry alone overflows the budget.
func FitEntries(values []string, maxCount, maxURLLength int, baseURL string) (fitting, remaining []string) {
	if len(values) == 0 {
		return nil, nil
	}
	if maxCount < 1 {
		maxCount = 1
	}

	n := maxCount
	if n > len(values) {
		n = len(values)
	}
	fitting = append([]string(nil), values[:n]...)
	remaining = append([]string(nil), values[n:]...)

	for len(fitting) > 1 && len(baseURL)+len(strings.Join(fitting, ",")) > maxURLLength {
		last := fitting[len(fitting)-1]
		fitting = fitting[:len(fitting)-1]
		remaining = append([]string{last}, remaining...)
	}
	return fitting, remaining
}
