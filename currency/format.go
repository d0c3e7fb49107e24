package currency

import (
	"html"
	"strconv"
	"strings"
)

// FormatOptions controls price prefixes.
type FormatOptions struct {
	ShowFrom   bool
	ShowApprox bool   // ignored for USD
	Class      string // extra class on the rendered span
}

// Format renders amount as display text, e.g. "From Approx. €1,840".
func (c *Converter) Format(amount int64, code Code, opts FormatOptions) string {
	var sb strings.Builder
	if opts.ShowFrom {
		sb.WriteString("From ")
	}
	if opts.ShowApprox && code != USD {
		sb.WriteString("Approx. ")
	}
	sb.WriteString(Symbol(code))
	sb.WriteString(c.printer.Sprintf("%d", amount))
	return sb.String()
}

// RenderPrice wraps Format in the price-value span.
func (c *Converter) RenderPrice(amount int64, code Code, opts FormatOptions) string {
	class := "price-value"
	if opts.Class != "" {
		class += " " + opts.Class
	}
	return `<span class="` + html.EscapeString(class) +
		`" data-currency="` + string(code) +
		`" data-base-price="` + strconv.FormatInt(amount, 10) + `">` +
		html.EscapeString(c.Format(amount, code, opts)) + `</span>`
}
