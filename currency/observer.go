package currency

import (
	"context"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/masukame/dom"
	"github.com/hazyhaar/masukame/dom/mutation"
	"github.com/hazyhaar/masukame/kit"
)

// ObserveWindow is the debounce window for page mutations.
var ObserveWindow = 50 * time.Millisecond

// RefreshPage renders every price on page in the currency of the visitor
// in ctx.
func (c *Converter) RefreshPage(ctx context.Context, page *dom.Page) {
	code := c.Current(ctx)
	page.Do(func(doc *html.Node) error {
		c.RefreshAll(doc, code)
		return nil
	})
}

// Observe keeps page priced for the visitor in ctx: content inserted into
// the page that carries a price triggers a refresh, and so do currency
// changes for that visitor and rate updates. Bursts are coalesced. The
// returned func runs any pending refresh, then detaches the observer.
func (c *Converter) Observe(ctx context.Context, page *dom.Page) (stop func()) {
	visitor := kit.GetVisitorID(ctx)
	ctx = context.WithoutCancel(ctx)

	deb := dom.NewDebouncer(dom.DebounceConfig{Window: ObserveWindow}, func([]mutation.Record) {
		c.RefreshPage(ctx, page)
	})

	cancelPage := page.Observe(func(b mutation.Batch) {
		for _, rec := range b.Records {
			if insertsPrice(rec) {
				deb.Add(rec)
			}
		}
	})
	cancelChange := c.OnChange(func(ch Change) {
		if ch.RatesUpdated || ch.VisitorID == visitor {
			c.RefreshPage(ctx, page)
		}
	})

	return func() {
		cancelPage()
		cancelChange()
		deb.Flush()
		deb.Close()
	}
}

func insertsPrice(rec mutation.Record) bool {
	switch rec.Op {
	case mutation.OpDocReset:
		return true
	case mutation.OpInsert:
		if rec.NodeType != 1 {
			return false
		}
		nodes, err := dom.ParseFragment(nil, rec.HTML)
		if err != nil {
			return false
		}
		for _, n := range nodes {
			if IsPriceBearing(n) {
				return true
			}
		}
	}
	return false
}
