package localstore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbasket/storefront/pkg/cart"
)

// GuestCart is the single anonymous cart record on this device.
type GuestCart struct {
	ID        int64           `gorm:"column:id;primaryKey"`
	Items     []GuestCartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (GuestCart) TableName() string { return "guest_carts" }

// GuestCartItem is one anonymous cart line. The autoincrement primary key
// doubles as the locally monotonic item id.
type GuestCartItem struct {
	ID         int64     `gorm:"column:id;primaryKey"`
	CartID     int64     `gorm:"column:cart_id;not null;index"`
	ProductID  string    `gorm:"column:product_id;not null"`
	Name       string    `gorm:"column:name;not null"`
	UnitPrice  string    `gorm:"column:unit_price;not null"`
	Quantity   int       `gorm:"column:quantity;not null"`
	OptionsKey string    `gorm:"column:options_key;not null;default:''"`
	Options    string    `gorm:"column:options"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (GuestCartItem) TableName() string { return "guest_cart_items" }

// Models lists the store's GORM models for the AutoMigrate path used by the
// postgres test rigs.
func Models() []any {
	return []any{&GuestCart{}, &GuestCartItem{}}
}

func (i GuestCartItem) toCartItem() (cart.Item, error) {
	productID, err := uuid.Parse(i.ProductID)
	if err != nil {
		return cart.Item{}, err
	}
	price, err := decimal.NewFromString(i.UnitPrice)
	if err != nil {
		return cart.Item{}, err
	}
	var options map[string]string
	if i.Options != "" {
		if err := json.Unmarshal([]byte(i.Options), &options); err != nil {
			return cart.Item{}, err
		}
	}
	return cart.Item{
		ID:        i.ID,
		ProductID: productID,
		Name:      i.Name,
		UnitPrice: price,
		Quantity:  i.Quantity,
		Options:   options,
	}, nil
}

func newGuestCartItem(cartID int64, snap cart.ProductSnapshot, quantity int) (GuestCartItem, error) {
	var encoded string
	if len(snap.Options) > 0 {
		raw, err := json.Marshal(snap.Options)
		if err != nil {
			return GuestCartItem{}, err
		}
		encoded = string(raw)
	}
	return GuestCartItem{
		CartID:     cartID,
		ProductID:  snap.ProductID.String(),
		Name:       snap.Name,
		UnitPrice:  snap.UnitPrice.String(),
		Quantity:   quantity,
		OptionsKey: cart.OptionsKey(snap.Options),
		Options:    encoded,
	}, nil
}
