// Package export renders purchase requests as spreadsheets and printable PDFs.
package export

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"procura/internal/core/types"
)

const dateLayout = "02 Jan 2006"

// Formatter renders amounts with locale digit grouping.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter returns a formatter for tag. The zero tag means English.
func NewFormatter(tag language.Tag) *Formatter {
	if tag == language.Und {
		tag = language.English
	}
	return &Formatter{printer: message.NewPrinter(tag)}
}

// Amount formats a money value with two decimals, e.g. 1,234.50.
func (f *Formatter) Amount(m types.Money) string {
	return f.fixed(types.RoundMoney(m), 2)
}

// Quantity formats a quantity with up to four decimals.
func (f *Formatter) Quantity(q types.Quantity) string {
	s := f.fixed(q.Round(4), 4)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

func (f *Formatter) fixed(d decimal.Decimal, places int32) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole := f.printer.Sprintf("%d", d.IntPart())
	fixed := d.StringFixed(places)
	if _, frac, ok := strings.Cut(fixed, "."); ok {
		return sign + whole + "." + frac
	}
	return sign + whole
}

// Date formats t, or returns an empty string for the zero time.
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
