package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgcart "github.com/openbasket/storefront/pkg/cart"
)

// AddItemRequest carries the product snapshot captured at add time. The
// anonymous path persists it locally; the authenticated path only forwards
// the identifiers and the server re-reads its catalog.
type AddItemRequest struct {
	ProductID uuid.UUID         `json:"product_id" validate:"required"`
	Name      string            `json:"name" validate:"required,max=255"`
	UnitPrice decimal.Decimal   `json:"unit_price" validate:"required"`
	Quantity  int               `json:"quantity" validate:"required,min=1"`
	Options   map[string]string `json:"options,omitempty"`
}

func (r AddItemRequest) snapshot() pkgcart.ProductSnapshot {
	return pkgcart.ProductSnapshot{
		ProductID: r.ProductID,
		Name:      r.Name,
		UnitPrice: r.UnitPrice,
		Options:   r.Options,
	}
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type ApplyCouponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}
