package journals

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var seqToken = regexp.MustCompile(`\{SEQ(?::(\d+))?\}`)

// FormatNumber renders a piece number from the journal template.
//
// Supported tokens: {PREFIX} {CODE} {YYYY} {YY} {MM} {SEQ} and {SEQ:n}, where n pads
// the sequence with zeros.
func FormatNumber(j Journal, seq int64, date time.Time) string {
	tpl := j.NumberFormat
	if strings.TrimSpace(tpl) == "" {
		tpl = DefaultNumberFormat
	}
	if !seqToken.MatchString(tpl) {
		tpl += "{SEQ}"
	}
	out := strings.NewReplacer(
		"{PREFIX}", j.Prefix,
		"{CODE}", j.Code,
		"{YYYY}", date.Format("2006"),
		"{YY}", date.Format("06"),
		"{MM}", date.Format("01"),
	).Replace(tpl)
	return seqToken.ReplaceAllStringFunc(out, func(tok string) string {
		m := seqToken.FindStringSubmatch(tok)
		if m[1] == "" {
			return strconv.FormatInt(seq, 10)
		}
		width, _ := strconv.Atoi(m[1])
		return fmt.Sprintf("%0*d", width, seq)
	})
}
