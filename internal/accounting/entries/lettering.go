package entries

import "strings"

// NextLetteringCode returns the code following last in the A..Z, AA..ZZ, AAA.. sequence.
func NextLetteringCode(last string) string {
	last = strings.ToUpper(strings.TrimSpace(last))
	if last == "" {
		return "A"
	}
	b := []byte(last)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 'Z' {
			b[i]++
			return string(b)
		}
		b[i] = 'A'
	}
	return "A" + string(b)
}

// letteringLess orders codes by length first so that "Z" < "AA".
func letteringLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
