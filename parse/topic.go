package parse

import (
	"regexp"
	"strings"
)

// topicFallbacks maps each known topic to a bilingual synonym pattern used
// when none of the configured keywords appear verbatim in the text. Topics
// outside this table rely on keyword containment alone.
var topicFallbacks = map[string]*regexp.Regexp{
	"hai":     regexp.MustCompile(`(?i)funny|comedy|meme|hilarious|hài|hước|cười|vui nhộn`),
	"nhay":    regexp.MustCompile(`(?i)dance|dancing|choreo|nhảy|vũ đạo|khiêu vũ`),
	"nauan":   regexp.MustCompile(`(?i)cook|cooking|recipe|food|street food|nấu ăn|món ngon|ẩm thực`),
	"thucung": regexp.MustCompile(`(?i)\bpet\b|puppy|kitten|\bdog\b|\bcat\b|thú cưng|chó|mèo`),
	"dulich":  regexp.MustCompile(`(?i)travel|trip|vlog|du lịch|phượt|khám phá`),
}

// MatchTopic reports whether a text blob belongs to a topic. Configured
// keywords are checked first as case-insensitive substrings; the per-topic
// fallback pattern covers cards whose text uses a synonym instead. An
// unknown topic with no keyword hit matches nothing.
func MatchTopic(text, topic string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}

	if re, ok := topicFallbacks[topic]; ok {
		return re.MatchString(text)
	}
	return false
}
