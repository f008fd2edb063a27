package util

import "strings"

// ExtractJSONObject returns the substring from the first '{' to the last '}'
// of s. Models often wrap their JSON answer in prose; this strips the prose
// while keeping everything between the outermost braces. The span is not
// guaranteed to be valid JSON, callers must still parse it.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
