// CLAUDE:SUMMARY Re-renders every price-bearing element and edition price in an HTML tree.
package currency

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/masukame/dom"
)

// Edition is a catalogue edition with a fixed USD price. A zero USD price
// means price on application.
type Edition struct {
	Name string
	USD  float64
}

// Editions is the edition price table.
var Editions = []Edition{
	{Name: "classic", USD: 2000},
	{Name: "collaboration", USD: 4000},
	{Name: "monumental"},
}

// POA is rendered for editions without a price.
const POA = "POA"

// RefreshAll re-renders every element carrying data-usd-price, then every
// edition price, in code. Output depends only on attributes and the rate
// table, so repeated calls produce identical HTML.
func (c *Converter) RefreshAll(doc *html.Node, code Code) int {
	n := 0
	for _, el := range dom.QuerySelectorAll(doc, "[data-usd-price]") {
		usd, err := strconv.ParseFloat(strings.TrimSpace(dom.Attr(el, "data-usd-price")), 64)
		if err != nil {
			c.logger.Debug("currency: bad data-usd-price", "value", dom.Attr(el, "data-usd-price"))
			continue
		}
		opts := FormatOptions{
			ShowFrom:   dom.Attr(el, "data-show-from") == "true",
			ShowApprox: dom.Attr(el, "data-show-approx") != "false" && code != USD,
		}
		if err := dom.SetInnerHTML(el, c.RenderPrice(c.Convert(usd, code), code, opts)); err == nil {
			n++
		}
	}
	return n + c.refreshEditions(doc, code)
}

func (c *Converter) refreshEditions(doc *html.Node, code Code) int {
	n := 0
	for _, ed := range Editions {
		for _, el := range dom.QuerySelectorAll(doc, `[data-edition="`+ed.Name+`"]`) {
			if ed.USD == 0 {
				dom.SetText(el, POA)
				n++
				continue
			}
			opts := FormatOptions{
				ShowFrom:   dom.Attr(el, "data-show-from") != "false",
				ShowApprox: code != USD,
			}
			if err := dom.SetInnerHTML(el, c.RenderPrice(c.Convert(ed.USD, code), code, opts)); err == nil {
				n++
			}
		}
	}
	return n
}

// IsPriceBearing reports whether n is or contains an element the refresh
// pass renders.
func IsPriceBearing(n *html.Node) bool {
	const sel = ".price, [data-usd-price], [data-edition]"
	return dom.Matches(n, sel) || dom.QuerySelector(n, sel) != nil
}
