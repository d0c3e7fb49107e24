package currency

import (
	"context"
	"math"
	"testing"

	"github.com/hazyhaar/masukame/kit"
)

var fallbackRates = map[string]float64{"USD": 1.0, "EUR": 0.92, "AED": 3.67, "JPY": 148.5}

func TestConvert_MatchesRoundedRate(t *testing.T) {
	c := New(fallbackRates)
	amounts := []float64{0, 1, 2.5, 999.49, 2000, 4000, 123456.78}
	for _, code := range Supported {
		for _, a := range amounts {
			got := c.Convert(a, code)
			want := int64(math.Round(a * fallbackRates[string(code)]))
			if got != want || got < 0 {
				t.Errorf("Convert(%v, %s) = %d, want %d", a, code, got, want)
			}
		}
	}
}

func TestConvert_USDIdentity(t *testing.T) {
	c := New(fallbackRates)
	for _, a := range []int64{0, 1, 3000, 1_000_000} {
		if got := c.Convert(float64(a), USD); got != a {
			t.Errorf("Convert(%d, USD) = %d", a, got)
		}
	}
}

func TestConvert_UnknownCodeIsIdentity(t *testing.T) {
	c := New(fallbackRates)
	if got := c.Convert(2000, Code("GBP")); got != 2000 {
		t.Errorf("got %d", got)
	}
}

func TestNew_USDPinned(t *testing.T) {
	c := New(map[string]float64{"USD": 3, "EUR": -1, "XXX": 5})
	if c.Rate(USD) != 1 {
		t.Errorf("USD = %v", c.Rate(USD))
	}
	if c.Rate(EUR) != 1 {
		t.Errorf("negative rate accepted: %v", c.Rate(EUR))
	}
}

func TestUpdateRates(t *testing.T) {
	c := New(fallbackRates)
	var changes []Change
	c.OnChange(func(ch Change) { changes = append(changes, ch) })

	n := c.UpdateRates(map[Code]float64{EUR: 0.95, USD: 2, JPY: 0, Code("GBP"): 0.8})
	if n != 1 {
		t.Errorf("updated = %d, want 1", n)
	}
	if c.Rate(EUR) != 0.95 || c.Rate(USD) != 1 || c.Rate(JPY) != 148.5 {
		t.Errorf("rates = %v", c.Rates())
	}
	if len(changes) != 1 || !changes[0].RatesUpdated {
		t.Errorf("changes = %+v", changes)
	}
}

func TestFormat(t *testing.T) {
	c := New(fallbackRates)
	tests := []struct {
		amount int64
		code   Code
		opts   FormatOptions
		want   string
	}{
		{2000, USD, FormatOptions{}, "$2,000"},
		{2000, USD, FormatOptions{ShowFrom: true, ShowApprox: true}, "From $2,000"},
		{1840, EUR, FormatOptions{ShowApprox: true}, "Approx. €1,840"},
		{297000, JPY, FormatOptions{ShowFrom: true, ShowApprox: true}, "From Approx. ¥297,000"},
		{7340, AED, FormatOptions{}, "د.إ7,340"},
		{999, USD, FormatOptions{}, "$999"},
	}
	for _, tt := range tests {
		if got := c.Format(tt.amount, tt.code, tt.opts); got != tt.want {
			t.Errorf("Format(%d, %s, %+v) = %q, want %q", tt.amount, tt.code, tt.opts, got, tt.want)
		}
	}
}

func TestRenderPrice(t *testing.T) {
	c := New(fallbackRates)
	got := c.RenderPrice(1840, EUR, FormatOptions{ShowApprox: true})
	want := `<span class="price-value" data-currency="EUR" data-base-price="1840">Approx. €1,840</span>`
	if got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestSetCurrency(t *testing.T) {
	c := New(fallbackRates)
	ctx := kit.WithVisitorID(context.Background(), "vis_a")

	var changes []Change
	c.OnChange(func(ch Change) { changes = append(changes, ch) })

	if c.Current(ctx) != USD {
		t.Fatal("default should be USD")
	}
	if c.SetCurrency(ctx, "GBP") {
		t.Error("unsupported code accepted")
	}
	if len(changes) != 0 || c.Current(ctx) != USD {
		t.Error("rejected code had side effects")
	}

	if !c.SetCurrency(ctx, "eur") {
		t.Fatal("EUR rejected")
	}
	if c.Current(ctx) != EUR {
		t.Errorf("current = %s", c.Current(ctx))
	}
	if len(changes) != 1 || changes[0].Currency != EUR || changes[0].Previous != USD || changes[0].VisitorID != "vis_a" {
		t.Errorf("changes = %+v", changes)
	}

	other := kit.WithVisitorID(context.Background(), "vis_b")
	if c.Current(other) != USD {
		t.Error("selection leaked across visitors")
	}
}

type badStore struct{}

func (badStore) Get(context.Context, string) (Code, error) { return "XYZ", nil }
func (badStore) Set(context.Context, string, Code) error   { return nil }

func TestCurrent_UnrecognisedStoredValue(t *testing.T) {
	c := New(fallbackRates, WithStore(badStore{}))
	if got := c.Current(context.Background()); got != USD {
		t.Errorf("got %s", got)
	}
}
