package numerator

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Pattern is a parsed running-code template.
//
// Literal text is copied as is. Two placeholders are understood:
//
//	{date:<fmt>}    issue date; fmt uses yyyy, yy, MM, dd
//	{running:<n>}   running number left-padded with zeros to n digits
type Pattern struct {
	segments []segment
}

type segmentKind int

const (
	literalSegment segmentKind = iota
	dateSegment
	runningSegment
)

type segment struct {
	kind   segmentKind
	text   string // literal text or Go time layout
	digits int
}

var dateTokens = strings.NewReplacer(
	"yyyy", "2006",
	"yy", "06",
	"MM", "01",
	"dd", "02",
)

// ParsePattern compiles a running-code template. Exactly one {running}
// placeholder is required.
func ParsePattern(s string) (Pattern, error) {
	var p Pattern
	running := 0

	for len(s) > 0 {
		open := strings.IndexByte(s, '{')
		if open < 0 {
			p.segments = append(p.segments, segment{kind: literalSegment, text: s})
			break
		}
		if open > 0 {
			p.segments = append(p.segments, segment{kind: literalSegment, text: s[:open]})
		}
		end := strings.IndexByte(s[open:], '}')
		if end < 0 {
			return Pattern{}, fmt.Errorf("pattern %q: unterminated placeholder", s)
		}
		name, arg, _ := strings.Cut(s[open+1:open+end], ":")

		switch name {
		case "date":
			if arg == "" {
				arg = "yyMM"
			}
			p.segments = append(p.segments, segment{kind: dateSegment, text: dateTokens.Replace(arg)})
		case "running":
			digits := 5
			if arg != "" {
				n, err := strconv.Atoi(arg)
				if err != nil || n <= 0 {
					return Pattern{}, fmt.Errorf("pattern %q: invalid running width %q", s, arg)
				}
				digits = n
			}
			p.segments = append(p.segments, segment{kind: runningSegment, digits: digits})
			running++
		default:
			return Pattern{}, fmt.Errorf("pattern %q: unknown placeholder %q", s, name)
		}
		s = s[open+end+1:]
	}

	if running != 1 {
		return Pattern{}, fmt.Errorf("pattern must contain exactly one {running} placeholder")
	}
	return p, nil
}

// MustParsePattern is ParsePattern that panics. Use only for constants.
func MustParsePattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Format renders the code for issue date t and running number n.
func (p Pattern) Format(t time.Time, n int64) string {
	var b strings.Builder
	for _, seg := range p.segments {
		switch seg.kind {
		case literalSegment:
			b.WriteString(seg.text)
		case dateSegment:
			b.WriteString(t.Format(seg.text))
		case runningSegment:
			fmt.Fprintf(&b, "%0*d", seg.digits, n)
		}
	}
	return b.String()
}

// SequenceKey is the sys_sequences key for a series and issue date.
func SequenceKey(cfg Config, t time.Time) string {
	switch cfg.ResetPeriod {
	case ResetMonthly:
		return fmt.Sprintf("%s_%s", cfg.Type, t.Format("2006_01"))
	case ResetYearly:
		return fmt.Sprintf("%s_%s", cfg.Type, t.Format("2006"))
	default:
		return cfg.Type
	}
}
