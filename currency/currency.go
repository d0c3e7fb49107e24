// CLAUDE:SUMMARY USD-anchored converter: rate table, per-visitor selection, change listeners.
// Package currency converts USD base prices into the visitor's display
// currency and renders them into HTML documents.
package currency

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/hazyhaar/masukame/kit"
)

// Code is an ISO 4217 currency code from the supported set.
type Code string

const (
	USD Code = "USD"
	EUR Code = "EUR"
	AED Code = "AED"
	JPY Code = "JPY"
)

// Supported lists the display currencies in selector order.
var Supported = []Code{USD, EUR, AED, JPY}

var symbols = map[Code]string{
	USD: "$",
	EUR: "€",
	AED: "د.إ",
	JPY: "¥",
}

// ParseCode accepts a supported code, case-insensitively.
func ParseCode(s string) (Code, bool) {
	c := Code(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := symbols[c]
	return c, ok
}

// Symbol returns the display symbol for a code, or the code itself.
func Symbol(c Code) string {
	if s, ok := symbols[c]; ok {
		return s
	}
	return string(c)
}

// Change is delivered to listeners when a visitor switches currency or
// the rate table is updated.
type Change struct {
	VisitorID    string
	Currency     Code
	Previous     Code
	RatesUpdated bool
}

// Converter holds the rate table and resolves each visitor's selection
// through a PreferenceStore.
type Converter struct {
	mu    sync.RWMutex
	rates map[Code]float64

	lmu       sync.Mutex
	listeners map[int]func(Change)
	nextL     int

	store   PreferenceStore
	printer *message.Printer
	logger  *slog.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithStore sets the preference store. Default: in-memory.
func WithStore(s PreferenceStore) Option { return func(c *Converter) { c.store = s } }

// WithLocale sets the BCP 47 locale used for digit grouping. Default: en-US.
func WithLocale(tag string) Option {
	return func(c *Converter) {
		if t, err := language.Parse(tag); err == nil {
			c.printer = message.NewPrinter(t)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Converter) { c.logger = l } }

// New builds a Converter seeded with rates. Unsupported codes and
// non-positive rates are ignored; USD is always 1.0.
func New(rates map[string]float64, opts ...Option) *Converter {
	c := &Converter{
		rates:     make(map[Code]float64, len(Supported)),
		listeners: make(map[int]func(Change)),
		printer:   message.NewPrinter(language.AmericanEnglish),
		logger:    slog.Default(),
	}
	for _, code := range Supported {
		c.rates[code] = 1.0
	}
	for k, v := range rates {
		if code, ok := ParseCode(k); ok && v > 0 && !math.IsInf(v, 0) {
			c.rates[code] = v
		}
	}
	c.rates[USD] = 1.0

	for _, o := range opts {
		o(c)
	}
	if c.store == nil {
		c.store = NewMemoryPreferences()
	}
	return c
}

// Rate returns the multiplier for code, 1 when unknown.
func (c *Converter) Rate(code Code) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if r, ok := c.rates[code]; ok {
		return r
	}
	return 1
}

// Rates returns a copy of the rate table.
func (c *Converter) Rates() map[Code]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[Code]float64, len(c.rates))
	for k, v := range c.rates {
		out[k] = v
	}
	return out
}

// Convert returns round(usd * rate[code]); unknown codes convert at 1.
func (c *Converter) Convert(usd float64, code Code) int64 {
	return int64(math.Round(usd * c.Rate(code)))
}

// UpdateRates merges positive rates for supported codes. USD stays 1.0.
func (c *Converter) UpdateRates(rates map[Code]float64) int {
	c.mu.Lock()
	n := 0
	for code, v := range rates {
		if _, ok := symbols[code]; !ok || code == USD || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			continue
		}
		c.rates[code] = v
		n++
	}
	c.rates[USD] = 1.0
	c.mu.Unlock()

	if n > 0 {
		c.emit(Change{RatesUpdated: true})
	}
	return n
}

// Current returns the currency selected by the visitor in ctx. Missing or
// unrecognised selections resolve to USD.
func (c *Converter) Current(ctx context.Context) Code {
	code, err := c.store.Get(ctx, kit.GetVisitorID(ctx))
	if err != nil {
		c.logger.Warn("currency: read preference", "error", err)
		return USD
	}
	if _, ok := symbols[code]; !ok {
		return USD
	}
	return code
}

// SetCurrency switches the visitor in ctx to code. Unsupported codes are
// rejected with no side effects.
func (c *Converter) SetCurrency(ctx context.Context, code string) bool {
	next, ok := ParseCode(code)
	if !ok {
		return false
	}
	visitor := kit.GetVisitorID(ctx)
	prev := c.Current(ctx)
	if err := c.store.Set(ctx, visitor, next); err != nil {
		c.logger.Warn("currency: save preference", "visitor", visitor, "error", err)
	}
	c.emit(Change{VisitorID: visitor, Currency: next, Previous: prev})
	return true
}

// OnChange registers fn for every Change. The returned func unregisters it.
func (c *Converter) OnChange(fn func(Change)) (cancel func()) {
	c.lmu.Lock()
	id := c.nextL
	c.nextL++
	c.listeners[id] = fn
	c.lmu.Unlock()
	return func() {
		c.lmu.Lock()
		delete(c.listeners, id)
		c.lmu.Unlock()
	}
}

func (c *Converter) emit(ch Change) {
	c.lmu.Lock()
	fns := make([]func(Change), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.lmu.Unlock()
	for _, fn := range fns {
		fn(ch)
	}
}
