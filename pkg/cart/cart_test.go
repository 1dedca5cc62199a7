package cart

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestRecomputeDerivesCountAndTotals(t *testing.T) {
	t.Parallel()

	c := &Cart{
		Items: []Item{
			{ID: 1, ProductID: uuid.New(), UnitPrice: decimal.RequireFromString("4.50"), Quantity: 2},
			{ID: 2, ProductID: uuid.New(), UnitPrice: decimal.RequireFromString("10.00"), Quantity: 1},
		},
		DiscountAmount: decimal.RequireFromString("2.00"),
		TaxTotal:       decimal.RequireFromString("1.33"),
	}
	c.Recompute()

	if c.ItemsCount != 3 {
		t.Fatalf("expected items_count 3, got %d", c.ItemsCount)
	}
	if !c.SubTotal.Equal(decimal.RequireFromString("19.00")) {
		t.Fatalf("unexpected sub_total %s", c.SubTotal)
	}
	if !c.GrandTotal.Equal(decimal.RequireFromString("18.33")) {
		t.Fatalf("unexpected grand_total %s", c.GrandTotal)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("recomputed cart must validate: %v", err)
	}
}

func TestValidateRejectsDriftedTotals(t *testing.T) {
	t.Parallel()

	c := Empty()
	c.Items = []Item{{ID: 1, ProductID: uuid.New(), UnitPrice: decimal.NewFromInt(5), Quantity: 1}}
	c.Recompute()

	c.GrandTotal = c.GrandTotal.Add(decimal.RequireFromString("0.02"))
	if err := c.Validate(); err == nil {
		t.Fatal("expected drift beyond one minor unit to fail validation")
	}

	c.Recompute()
	c.GrandTotal = c.GrandTotal.Add(decimal.RequireFromString("0.01"))
	if err := c.Validate(); err != nil {
		t.Fatalf("one minor unit of rounding must be tolerated: %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	original := Empty()
	original.Items = []Item{{
		ID:        7,
		ProductID: uuid.New(),
		UnitPrice: decimal.NewFromInt(3),
		Quantity:  1,
		Options:   map[string]string{"size": "m"},
	}}
	original.Recompute()

	copied := original.Clone()
	copied.Items[0].Quantity = 99
	copied.Items[0].Options["size"] = "xl"

	if original.Items[0].Quantity != 1 {
		t.Fatal("clone must not alias item slice")
	}
	if original.Items[0].Options["size"] != "m" {
		t.Fatal("clone must not alias option maps")
	}
}

func TestSameLineDistinguishesVariants(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	base := Item{ProductID: productID, Options: map[string]string{"size": "m", "color": "red"}}

	match := ProductSnapshot{ProductID: productID, Options: map[string]string{"color": "red", "size": "m"}}
	if !SameLine(match, base) {
		t.Fatal("option order must not affect line identity")
	}

	variant := ProductSnapshot{ProductID: productID, Options: map[string]string{"size": "l", "color": "red"}}
	if SameLine(variant, base) {
		t.Fatal("different options must be a distinct line")
	}

	other := ProductSnapshot{ProductID: uuid.New(), Options: map[string]string{"size": "m", "color": "red"}}
	if SameLine(other, base) {
		t.Fatal("different products must be distinct lines")
	}
}
