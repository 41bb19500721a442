// Package parse contains the text heuristics used to filter scraped cards:
// human-readable count parsing, follower extraction and topic matching.
package parse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var metricRe = regexp.MustCompile(`([0-9][0-9.,]*)\s?([kKmMbB])?`)

// Metric converts a human-readable count string such as "1.2M", "3,400" or
// "12 K" into an integer. The first numeric token wins; a missing magnitude
// suffix means the number is taken as-is. Malformed input is not an error,
// it is a zero result.
func Metric(text string) int64 {
	m := metricRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}

	num := strings.ReplaceAll(m[1], ",", "")
	num = strings.TrimRight(num, ".")
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}

	switch strings.ToLower(m[2]) {
	case "k":
		value *= 1e3
	case "m":
		value *= 1e6
	case "b":
		value *= 1e9
	}

	return int64(math.Round(value))
}

// followerRe anchors the number to a follower/subscriber keyword so stray
// counts elsewhere in the blob are never mistaken for a follower count.
var followerRe = regexp.MustCompile(`([0-9][0-9.,]*\s?[kmb]?)\s*(?:subscribers?|subs\b|followers?|người đăng ký|người theo dõi|lượt theo dõi|lượt đăng ký)`)

// Followers extracts a follower or subscriber count from a text blob. This
// is a best-effort heuristic: returning 0 for a page that does show a count
// is acceptable, a false positive is not.
func Followers(text string) int64 {
	m := followerRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0
	}
	return Metric(m[1])
}
