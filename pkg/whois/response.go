package whois

import "strings"

// SplitLines splits text into lines on "\n", dropping a trailing "\r" from
// each line. A terminator at the very end does not produce an empty last line,
// so "a\nb\n" and "a\nb" both hold two lines and "" holds none.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}

	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	return lines
}

// ShapeResponse removes the first line of a raw response, which is the
// column header, and joins the remaining lines with "\n". A response of N
// lines yields N-1 lines; a header-only or empty response yields "".
func ShapeResponse(raw string) string {
	lines := SplitLines(raw)
	if len(lines) <= 1 {
		return ""
	}

	return strings.Join(lines[1:], "\n")
}
