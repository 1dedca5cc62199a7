package localstore

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/openbasket/storefront/pkg/cart"
	pkgerrors "github.com/openbasket/storefront/pkg/errors"
	"github.com/openbasket/storefront/pkg/logger"
	"github.com/openbasket/storefront/pkg/migrate"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "store.db") + "?_journal_mode=WAL"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	require.NoError(t, migrate.Up(context.Background(), sqlDB))

	store, err := New(gdb, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return store, gdb
}

func snapshot(t *testing.T, price string, options map[string]string) cart.ProductSnapshot {
	t.Helper()
	unitPrice, err := decimal.NewFromString(price)
	require.NoError(t, err)
	return cart.ProductSnapshot{
		ProductID: uuid.New(),
		Name:      "ceramic mug",
		UnitPrice: unitPrice,
		Options:   options,
	}
}

func TestGetGuestCartEmptyWhenMissing(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.GetGuestCart(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Items)
	assert.Equal(t, 0, got.ItemsCount)
	assert.True(t, got.GrandTotal.IsZero())
}

func TestAddItemMergesMatchingLines(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	snap := snapshot(t, "4.50", map[string]string{"color": "blue"})

	_, err := store.AddItem(ctx, snap, 2)
	require.NoError(t, err)
	got, err := store.AddItem(ctx, snap, 3)
	require.NoError(t, err)

	require.Len(t, got.Items, 1)
	assert.Equal(t, 5, got.Items[0].Quantity)
	assert.Equal(t, 5, got.ItemsCount)
	assert.True(t, got.SubTotal.Equal(decimal.RequireFromString("22.50")), "sub_total = %s", got.SubTotal)
	assert.True(t, got.GrandTotal.Equal(got.SubTotal))
	require.NoError(t, got.Validate())
}

func TestAddItemDistinctOptionsMakeDistinctLines(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := snapshot(t, "4.50", map[string]string{"color": "blue"})
	variant := base
	variant.Options = map[string]string{"color": "red"}

	_, err := store.AddItem(ctx, base, 1)
	require.NoError(t, err)
	got, err := store.AddItem(ctx, variant, 1)
	require.NoError(t, err)

	assert.Len(t, got.Items, 2)
	assert.Equal(t, 2, got.ItemsCount)
}

func TestAddItemRejectsZeroQuantity(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.AddItem(context.Background(), snapshot(t, "1.00", nil), 0)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestUpdateItem(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	seeded, err := store.AddItem(ctx, snapshot(t, "2.00", nil), 2)
	require.NoError(t, err)
	itemID := seeded.Items[0].ID

	got, err := store.UpdateItem(ctx, itemID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Items[0].Quantity)
	assert.True(t, got.SubTotal.Equal(decimal.RequireFromString("14.00")))

	_, err = store.UpdateItem(ctx, itemID, 0)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = store.UpdateItem(ctx, itemID+999, 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	seeded, err := store.AddItem(ctx, snapshot(t, "3.00", nil), 1)
	require.NoError(t, err)
	itemID := seeded.Items[0].ID

	first, err := store.RemoveItem(ctx, itemID)
	require.NoError(t, err)
	assert.Empty(t, first.Items)

	second, err := store.RemoveItem(ctx, itemID)
	require.NoError(t, err)
	assert.Empty(t, second.Items)
	assert.Equal(t, 0, second.ItemsCount)
}

func TestClearDropsEverything(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddItem(ctx, snapshot(t, "3.00", nil), 2)
	require.NoError(t, err)
	require.NoError(t, store.Clear(ctx))

	got, err := store.GetGuestCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
}

func TestCorruptLineIsDroppedNotFatal(t *testing.T) {
	store, gdb := newTestStore(t)
	ctx := context.Background()

	seeded, err := store.AddItem(ctx, snapshot(t, "3.00", nil), 1)
	require.NoError(t, err)
	require.Len(t, seeded.Items, 1)

	// Simulate on-device corruption: a row whose fields no longer decode.
	err = gdb.Exec(
		`INSERT INTO guest_cart_items (cart_id, product_id, name, unit_price, quantity, options_key, options)
		 VALUES ((SELECT id FROM guest_carts LIMIT 1), 'not-a-uuid', 'mystery', 'NaN', 1, '', '')`,
	).Error
	require.NoError(t, err)

	got, err := store.GetGuestCart(ctx)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, seeded.Items[0].ID, got.Items[0].ID)
	require.NoError(t, got.Validate())
}
