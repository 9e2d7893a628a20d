package storage

import (
	"reflect"
	"testing"

	"spendlog/internal/core"
)

func TestExpensesRoundTrip(t *testing.T) {
	orig := []core.Expense{
		{ID: "1718000000002", Date: core.NewDate(2024, 6, 10), Description: "Uber home", Amount: core.Money{Cents: 1850}, Category: core.Travel},
		{ID: "1718000000001", Date: core.NewDate(2024, 6, 9), Description: "Pizza", Amount: core.Money{Cents: 1200}, Category: core.Food},
		{ID: "1718000000000", Date: core.NewDate(2024, 1, 31), Description: "Gift", Amount: core.Money{Cents: 5}, Category: core.Others},
	}
	data, err := EncodeExpenses(orig)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeExpenses(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, orig) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, orig)
	}
}

func TestExpensesRoundTripLargeAmount(t *testing.T) {
	orig := []core.Expense{
		{ID: "1", Date: core.NewDate(2024, 6, 10), Description: "Imported", Amount: core.Money{Cents: 123456789012345679}, Category: core.Others},
	}
	data, err := EncodeExpenses(orig)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeExpenses(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got[0].Amount != orig[0].Amount {
		t.Fatalf("amount changed after round trip: got %d, want %d", got[0].Amount.Cents, orig[0].Amount.Cents)
	}
}

func TestEncodeExpensesLayout(t *testing.T) {
	data, err := EncodeExpenses([]core.Expense{
		{ID: "1", Date: core.NewDate(2024, 1, 15), Description: "Coffee", Amount: core.Money{Cents: 350}, Category: core.Food},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `[{"id":"1","date":"2024-01-15","description":"Coffee","amount":3.50,"category":"Food"}]`
	if string(data) != want {
		t.Fatalf("layout = %s\nwant     %s", data, want)
	}

	empty, _ := EncodeExpenses(nil)
	if string(empty) != "[]" {
		t.Fatalf("nil collection should encode as [], got %s", empty)
	}
}

func TestDecodeBrowserPayload(t *testing.T) {
	// As written by the browser tool: float amounts, millisecond ids.
	raw := `[{"id":"1717171717171","date":"2024-05-31","description":"Netflix","amount":15.5,"category":"Entertainment"}]`
	got, err := DecodeExpenses([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Amount.Cents != 1550 || got[0].Category != core.Entertainment {
		t.Fatalf("unexpected decode %+v", got)
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{`{`, `{"id":"1"}`, `[{"date":"31/05/2024"}]`, `[{"amount":"abc"}]`} {
		if _, err := DecodeExpenses([]byte(raw)); err == nil {
			t.Errorf("expected error decoding %s", raw)
		}
	}
	got, err := DecodeExpenses([]byte(`null`))
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("null should decode to empty collection, got %v %v", got, err)
	}
}
