package dav

import "strings"

// repairEmbeddedICal repairs embedded iCalendar data: many servers deliver
// it inside XML un-escaped,
// which corrupts ampersands and quotes. The scrub is bounded between
// BEGIN:VCALENDAR and END:VCALENDAR and is line-oriented so it never
// touches content outside that block (e.g. a CDATA section straddling it
// would already have been unwrapped by the XML decoder before this runs).
//
// Order matters: decode the five named entities first, then selectively
// re-escape bare "&" (anything that isn't the start of a numeric character
// reference), then re-escape the four XML-significant characters. Doing it
// in the opposite order would re-escape the ampersands of the decoded
// entities themselves.
func repairEmbeddedICal(data string) string {
	start := strings.Index(data, "BEGIN:VCALENDAR")
	if start < 0 {
		return data
	}
	end := strings.LastIndex(data, "END:VCALENDAR")
	if end < 0 || end < start {
		return data
	}
	end += len("END:VCALENDAR")

	before := data[:start]
	block := data[start:end]
	after := data[end:]

	lines := strings.Split(block, "\n")
	for i, line := range lines {
		lines[i] = repairICalLine(line)
	}
	return before + strings.Join(lines, "\n") + after
}

func repairICalLine(line string) string {
	line = strings.ReplaceAll(line, "&amp;", "&")
	line = strings.ReplaceAll(line, "&quot;", "\"")
	line = strings.ReplaceAll(line, "&apos;", "'")
	line = strings.ReplaceAll(line, "&lt;", "<")
	line = strings.ReplaceAll(line, "&gt;", ">")

	line = reescapeBareAmpersands(line)

	line = strings.ReplaceAll(line, "\"", "&quot;")
	line = strings.ReplaceAll(line, "'", "&apos;")
	line = strings.ReplaceAll(line, "<", "&lt;")
	line = strings.ReplaceAll(line, ">", "&gt;")
	return line
}

// reescapeBareAmpersands re-escapes every "&" that is not the start of a
// well-formed numeric character reference (&#nnn; or &#xhhh;).
func reescapeBareAmpersands(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '&' {
			b.WriteByte(c)
			continue
		}
		if j := numericRefEnd(s, i); j > i {
			b.WriteString(s[i:j])
			i = j - 1
			continue
		}
		b.WriteString("&amp;")
	}
	return b.String()
}

// numericRefEnd returns the index just past a numeric character reference
// starting at s[i] ("&#123;" or "&#x1F;"), or i if s[i:] isn't one.
func numericRefEnd(s string, i int) int {
	if i+2 >= len(s) || s[i] != '&' || s[i+1] != '#' {
		return i
	}
	j := i + 2
	hex := false
	if j < len(s) && (s[j] == 'x' || s[j] == 'X') {
		hex = true
		j++
	}
	digitsStart := j
	for j < len(s) {
		c := s[j]
		isDigit := c >= '0' && c <= '9'
		isHexDigit := hex && ((c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F'))
		if !isDigit && !isHexDigit {
			break
		}
		j++
	}
	if j == digitsStart || j >= len(s) || s[j] != ';' {
		return i
	}
	return j + 1
}

// normalizeLineEndingsAndTerminate converts all line endings to CRLF and
// appends a trailing blank line, as iCalendar parsers require.
func normalizeLineEndingsAndTerminate(data string) string {
	data = strings.ReplaceAll(data, "\r\n", "\n")
	data = strings.ReplaceAll(data, "\r", "\n")
	lines := strings.Split(data, "\n")
	return strings.Join(lines, "\r\n") + "\r\n\r\n"
}

// hoistLeadingUID moves a UID: property that appears before the first
// BEGIN:VEVENT into that VEVENT block, a workaround for a common producer
// bug. Only applied when the payload contains exactly one
// VEVENT; a leading UID ahead of multiple VEVENTs is ambiguous and is left
// alone.
func hoistLeadingUID(data string) string {
	lines := strings.Split(data, "\r\n")

	veventCount := 0
	firstVEventIdx := -1
	for i, line := range lines {
		if strings.EqualFold(strings.TrimSpace(line), "BEGIN:VEVENT") {
			veventCount++
			if firstVEventIdx < 0 {
				firstVEventIdx = i
			}
		}
	}
	if veventCount != 1 || firstVEventIdx < 0 {
		return data
	}

	var leadingUID string
	leadingUIDIdx := -1
	for i := 0; i < firstVEventIdx; i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(strings.ToUpper(trimmed), "UID:") {
			leadingUID = trimmed
			leadingUIDIdx = i
			break
		}
	}
	if leadingUIDIdx < 0 {
		return data
	}

	out := make([]string, 0, len(lines))
	out = append(out, lines[:leadingUIDIdx]...)
	out = append(out, lines[leadingUIDIdx+1:firstVEventIdx+1]...)
	out = append(out, leadingUID)
	out = append(out, lines[firstVEventIdx+1:]...)
	return strings.Join(out, "\r\n")
}

// PreParseNormalize applies the full pre-parse normalization pipeline:
// embedded-iCalendar repair, then CRLF normalization, then
// leading-UID hoisting.
func PreParseNormalize(raw string) string {
	repaired := repairEmbeddedICal(raw)
	normalized := normalizeLineEndingsAndTerminate(repaired)
	return hoistLeadingUID(normalized)
}
