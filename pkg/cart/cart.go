package cart

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/openbasket/storefront/pkg/errors"
)

// minorUnitTolerance is one cent; derived totals must agree within it.
var minorUnitTolerance = decimal.New(1, -2)

// Cart is the canonical representation handed to the presentation layer.
// It is always replaced wholesale after a successful mutation or fetch,
// never patched field by field.
type Cart struct {
	Items          []Item          `json:"items"`
	ItemsCount     int             `json:"items_count"`
	SubTotal       decimal.Decimal `json:"sub_total"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxTotal       decimal.Decimal `json:"tax_total"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
	CouponCode     string          `json:"coupon_code,omitempty"`
}

// Item is one cart line. IDs are server-assigned in authenticated carts and
// locally monotonic in the guest cart; they are unique within their cart.
type Item struct {
	ID        int64             `json:"id"`
	ProductID uuid.UUID         `json:"product_id"`
	Name      string            `json:"name"`
	UnitPrice decimal.Decimal   `json:"unit_price"`
	Quantity  int               `json:"quantity"`
	Options   map[string]string `json:"options,omitempty"`
}

// ProductSnapshot carries the product fields captured at add time.
type ProductSnapshot struct {
	ProductID uuid.UUID         `json:"product_id"`
	Name      string            `json:"name"`
	UnitPrice decimal.Decimal   `json:"unit_price"`
	Options   map[string]string `json:"options,omitempty"`
}

// Empty returns a zeroed cart with all derived fields consistent.
func Empty() *Cart {
	c := &Cart{Items: []Item{}}
	c.Recompute()
	return c
}

// Recompute refreshes ItemsCount, SubTotal and GrandTotal from the line
// items. DiscountAmount and TaxTotal are inputs (server-provided for
// authenticated carts, zero for guest carts).
func (c *Cart) Recompute() {
	count := 0
	subTotal := decimal.Zero
	for _, item := range c.Items {
		count += item.Quantity
		subTotal = subTotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	c.ItemsCount = count
	c.SubTotal = subTotal
	c.GrandTotal = subTotal.Sub(c.DiscountAmount).Add(c.TaxTotal)
}

// Validate checks the cart's derived-field invariants.
func (c *Cart) Validate() error {
	count := 0
	for _, item := range c.Items {
		if item.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be at least 1")
		}
		count += item.Quantity
	}
	if count != c.ItemsCount {
		return pkgerrors.New(pkgerrors.CodeValidation, "items_count does not match line quantities")
	}
	expected := c.SubTotal.Sub(c.DiscountAmount).Add(c.TaxTotal)
	if c.GrandTotal.Sub(expected).Abs().GreaterThan(minorUnitTolerance) {
		return pkgerrors.New(pkgerrors.CodeValidation, "grand_total does not match component totals")
	}
	return nil
}

// Clone returns a deep copy so consumers can never alias engine state.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = make([]Item, len(c.Items))
	for i, item := range c.Items {
		out.Items[i] = item.clone()
	}
	return &out
}

func (i Item) clone() Item {
	out := i
	if i.Options != nil {
		out.Options = make(map[string]string, len(i.Options))
		for k, v := range i.Options {
			out.Options[k] = v
		}
	}
	return out
}

// FindItem returns the line with the given id, or nil.
func (c *Cart) FindItem(itemID int64) *Item {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return &c.Items[i]
		}
	}
	return nil
}

// SameLine reports whether a snapshot lands on an existing line: same product
// and identical option/variant data. Distinct options mean a distinct line.
func SameLine(snap ProductSnapshot, item Item) bool {
	return snap.ProductID == item.ProductID && OptionsKey(snap.Options) == OptionsKey(item.Options)
}

// OptionsKey renders option data in a canonical order for line matching and
// storage.
func OptionsKey(options map[string]string) string {
	if len(options) == 0 {
		return ""
	}
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(options[k])
	}
	return b.String()
}
