package currency

import (
	"context"
	"testing"

	"github.com/hazyhaar/masukame/dbopen"
	"github.com/hazyhaar/masukame/kit"
)

func TestSQLitePreferences(t *testing.T) {
	db := dbopen.OpenMemory(t)
	store, err := NewSQLitePreferences(db)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if got, err := store.Get(ctx, "vis_1"); err != nil || got != "" {
		t.Fatalf("empty get = %q, %v", got, err)
	}
	if err := store.Set(ctx, "vis_1", JPY); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, "vis_1", EUR); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.Get(ctx, "vis_1"); got != EUR {
		t.Errorf("got %q, want EUR", got)
	}
}

func TestSQLitePreferences_SurvivesConverterRestart(t *testing.T) {
	db := dbopen.OpenMemory(t)
	store, err := NewSQLitePreferences(db)
	if err != nil {
		t.Fatal(err)
	}
	ctx := kit.WithVisitorID(context.Background(), "vis_reload")

	New(fallbackRates, WithStore(store)).SetCurrency(ctx, "AED")

	reloaded := New(fallbackRates, WithStore(store))
	if got := reloaded.Current(ctx); got != AED {
		t.Errorf("after reload = %s", got)
	}
}
