package entity

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeConvertsKinds(t *testing.T) {
	rec, err := Normalize(Product, map[string]any{
		"productID": "7",
		"name":      "bird seed",
		"price":     json.Number("3.50"),
		"colour":    "green",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got := rec["productID"]; got != int64(7) {
		t.Fatalf("expected productID int64(7), got %#v", got)
	}
	price, ok := rec["price"].(decimal.Decimal)
	if !ok || !price.Equal(decimal.RequireFromString("3.5")) {
		t.Fatalf("expected decimal price 3.5, got %#v", rec["price"])
	}
	if _, ok := rec["colour"]; ok {
		t.Fatalf("expected unknown field to be dropped")
	}
}

func TestNormalizeRejectsBadInteger(t *testing.T) {
	_, err := Normalize(Sale, map[string]any{"quantity": 2.5})
	var fe *FieldValueError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldValueError, got %v", err)
	}
	if fe.Field != "quantity" || fe.Kind != Integer {
		t.Fatalf("unexpected error detail: %+v", fe)
	}
}

func TestNormalizeWholeNumerals(t *testing.T) {
	for _, v := range []any{json.Number("2.0"), json.Number("2e0"), "2.00", 2.0} {
		rec, err := Normalize(Sale, map[string]any{"quantity": v})
		if err != nil {
			t.Fatalf("%#v: %v", v, err)
		}
		if got := rec["quantity"]; got != int64(2) {
			t.Fatalf("%#v: expected int64(2), got %#v", v, got)
		}
	}
}

func TestNormalizeRejectsIntegerOverflow(t *testing.T) {
	for _, v := range []any{json.Number("99999999999999999999"), "9223372036854775808", 1e19, -1e19} {
		_, err := Normalize(Sale, map[string]any{"quantity": v})
		var fe *FieldValueError
		if !errors.As(err, &fe) {
			t.Fatalf("%#v: expected FieldValueError, got %v", v, err)
		}
	}
}

func TestRecordIDAndWithID(t *testing.T) {
	rec := Record{"name": "x"}
	if _, ok := rec.ID(Product); ok {
		t.Fatalf("expected no id")
	}
	withID := rec.WithID(Product, 12)
	if id, ok := withID.ID(Product); !ok || id != 12 {
		t.Fatalf("expected id 12, got %d %v", id, ok)
	}
	if _, ok := rec["productID"]; ok {
		t.Fatalf("WithID must not mutate the receiver")
	}
}

func TestPriceMarshalsAsNumber(t *testing.T) {
	rec, err := Normalize(Product, map[string]any{"productID": 1, "name": "a", "price": "3.5"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"name":"a","price":3.5,"productID":1}`
	if string(b) != want {
		t.Fatalf("expected %s, got %s", want, b)
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"sale", "sales"} {
		d, ok := ByName(name)
		if !ok || d.IDField != "salesID" {
			t.Fatalf("lookup %q: got %+v %v", name, d, ok)
		}
	}
	if _, ok := ByName("orders"); ok {
		t.Fatalf("expected unknown family")
	}
}

func TestParseID(t *testing.T) {
	if id, err := ParseID(" 42 "); err != nil || id != 42 {
		t.Fatalf("expected 42, got %d %v", id, err)
	}
	if _, err := ParseID("abc"); err == nil {
		t.Fatalf("expected error for non-numeric id")
	}
}
