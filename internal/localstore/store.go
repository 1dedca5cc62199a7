package localstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/openbasket/storefront/pkg/cart"
	pkgerrors "github.com/openbasket/storefront/pkg/errors"
	"github.com/openbasket/storefront/pkg/logger"
)

// Store provides durable CRUD over the single anonymous cart record. Its
// surface mirrors the remote gateway so the engine can treat both backends
// uniformly.
type Store struct {
	db   *gorm.DB
	logg *logger.Logger
}

// New binds the store to the provided GORM handle.
func New(db *gorm.DB, logg *logger.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle is required")
	}
	return &Store{db: db, logg: logg}, nil
}

// GetGuestCart loads the anonymous cart. A missing or unreadable record is an
// empty cart, never an error: the shopper must always see something.
func (s *Store) GetGuestCart(ctx context.Context) (*cart.Cart, error) {
	record, err := s.findCart(s.db.WithContext(ctx))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return cart.Empty(), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "read guest cart")
	}
	return s.toCart(ctx, record), nil
}

// AddItem appends the snapshot to the guest cart, merging quantities into an
// existing line when product and options match.
func (s *Store) AddItem(ctx context.Context, snap cart.ProductSnapshot, quantity int) (*cart.Cart, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var result *cart.Cart
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.ensureCart(tx)
		if err != nil {
			return err
		}

		optionsKey := cart.OptionsKey(snap.Options)
		var existing GuestCartItem
		err = tx.Where("cart_id = ? AND product_id = ? AND options_key = ?",
			record.ID, snap.ProductID.String(), optionsKey).First(&existing).Error
		switch {
		case err == nil:
			existing.Quantity += quantity
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			item, err := newGuestCartItem(record.ID, snap, quantity)
			if err != nil {
				return err
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		default:
			return err
		}

		result, err = s.reload(tx, record.ID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "add guest cart item")
	}
	return result, nil
}

// UpdateItem sets the quantity on an existing line.
func (s *Store) UpdateItem(ctx context.Context, itemID int64, quantity int) (*cart.Cart, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var result *cart.Cart
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item GuestCartItem
		if err := tx.Where("id = ?", itemID).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return err
		}
		item.Quantity = quantity
		if err := tx.Save(&item).Error; err != nil {
			return err
		}
		var err error
		result, err = s.reload(tx, item.CartID)
		return err
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "update guest cart item")
	}
	return result, nil
}

// RemoveItem deletes a line. Removing an absent id returns the current cart
// unchanged; racing removals are expected.
func (s *Store) RemoveItem(ctx context.Context, itemID int64) (*cart.Cart, error) {
	var result *cart.Cart
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", itemID).Delete(&GuestCartItem{}).Error; err != nil {
			return err
		}
		record, err := s.findCart(tx)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result = cart.Empty()
				return nil
			}
			return err
		}
		result = s.toCart(ctx, record)
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "remove guest cart item")
	}
	return result, nil
}

// Clear drops the guest cart and all of its lines.
func (s *Store) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&GuestCartItem{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&GuestCart{}).Error
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "clear guest cart")
	}
	return nil
}

func (s *Store) findCart(tx *gorm.DB) (*GuestCart, error) {
	var record GuestCart
	if err := tx.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Order("id ASC").First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) ensureCart(tx *gorm.DB) (*GuestCart, error) {
	var record GuestCart
	err := tx.Order("id ASC").First(&record).Error
	if err == nil {
		return &record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	record = GuestCart{}
	if err := tx.Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) reload(tx *gorm.DB, cartID int64) (*cart.Cart, error) {
	var record GuestCart
	if err := tx.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Where("id = ?", cartID).First(&record).Error; err != nil {
		return nil, err
	}
	return s.toCart(context.Background(), &record), nil
}

// toCart converts the stored record, skipping lines that no longer decode.
// A corrupted line is logged and dropped rather than surfaced: worst case the
// shopper sees a smaller cart, never a crash.
func (s *Store) toCart(ctx context.Context, record *GuestCart) *cart.Cart {
	out := cart.Empty()
	for _, stored := range record.Items {
		item, err := stored.toCartItem()
		if err != nil {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "item_id", stored.ID), "dropping unreadable guest cart line")
			}
			continue
		}
		out.Items = append(out.Items, item)
	}
	out.Recompute()
	return out
}
