package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordercart/internal/clients"
)

type mockStore struct {
	carts map[string]*Cart // owner key -> cart
}

func newMockStore() *mockStore {
	return &mockStore{carts: make(map[string]*Cart)}
}

func ownerID(owner OwnerKey) string {
	if owner.UserID != "" {
		return "u:" + owner.UserID
	}
	return "s:" + owner.SessionID
}

func (m *mockStore) GetOrCreate(_ context.Context, owner OwnerKey) (*Cart, error) {
	key := ownerID(owner)
	if c, ok := m.carts[key]; ok {
		cp := *c
		cp.Lines = append([]Line(nil), c.Lines...)
		return &cp, nil
	}
	c := &Cart{ID: uuid.NewString(), UserID: owner.UserID, SessionID: owner.SessionID}
	m.carts[key] = c
	cp := *c
	return &cp, nil
}

func (m *mockStore) byID(cartID string) *Cart {
	for _, c := range m.carts {
		if c.ID == cartID {
			return c
		}
	}
	return nil
}

func (m *mockStore) UpsertLine(_ context.Context, cartID string, line Line) error {
	c := m.byID(cartID)
	for i := range c.Lines {
		if c.Lines[i].ProductID == line.ProductID {
			// increment only; the existing snapshot stands
			c.Lines[i].Quantity += line.Quantity
			return nil
		}
	}
	c.Lines = append(c.Lines, line)
	return nil
}

func (m *mockStore) UpdateLine(_ context.Context, cartID, productID string, quantity int) error {
	c := m.byID(cartID)
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			if quantity <= 0 {
				c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			} else {
				c.Lines[i].Quantity = quantity
			}
			return nil
		}
	}
	return ErrCartItemNotFound
}

func (m *mockStore) DeleteLine(_ context.Context, cartID, productID string) error {
	c := m.byID(cartID)
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockStore) ClearLines(_ context.Context, cartID string) error {
	m.byID(cartID).Lines = nil
	return nil
}

type mockDirectory struct {
	products map[string]clients.Product
}

func (m *mockDirectory) Resolve(_ context.Context, productID string) (clients.Product, error) {
	p, ok := m.products[productID]
	if !ok {
		return clients.Product{}, clients.ErrProductNotFound
	}
	return p, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setup() (*Service, *mockStore, *mockDirectory) {
	store := newMockStore()
	dir := &mockDirectory{products: map[string]clients.Product{
		"P1": {ID: "P1", SKU: "SKU-1", Name: "Widget", Price: d("100.00"), Stock: 10},
		"P2": {ID: "P2", SKU: "SKU-2", Name: "Gadget", Price: d("19.99"), Stock: 5},
	}}
	return NewService(store, dir), store, dir
}

func TestGetRequiresOwner(t *testing.T) {
	svc, _, _ := setup()
	_, err := svc.Get(context.Background(), OwnerKey{})
	assert.ErrorIs(t, err, ErrInvalidOwner)
}

func TestAddItem(t *testing.T) {
	svc, _, _ := setup()
	owner := OwnerKey{UserID: "user-1"}

	c, err := svc.AddItem(context.Background(), owner, "P1", 2)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, "P1", c.Lines[0].ProductID)
	assert.Equal(t, "SKU-1", c.Lines[0].SKU)
	assert.Equal(t, 2, c.Lines[0].Quantity)
	assert.True(t, c.Lines[0].UnitPrice.Equal(d("100.00")))
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	svc, _, _ := setup()
	owner := OwnerKey{UserID: "user-1"}

	for _, qty := range []int{0, -3} {
		_, err := svc.AddItem(context.Background(), owner, "P1", qty)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
}

func TestAddItemUnknownProduct(t *testing.T) {
	svc, _, _ := setup()
	_, err := svc.AddItem(context.Background(), OwnerKey{UserID: "user-1"}, "nope", 1)
	assert.ErrorIs(t, err, clients.ErrProductNotFound)
}

func TestAddItemMergesDuplicateKeepingFirstPrice(t *testing.T) {
	svc, _, dir := setup()
	owner := OwnerKey{SessionID: "sess-9"}

	_, err := svc.AddItem(context.Background(), owner, "P1", 2)
	require.NoError(t, err)

	// price changes upstream between the two adds
	dir.products["P1"] = clients.Product{ID: "P1", SKU: "SKU-1", Name: "Widget", Price: d("150.00"), Stock: 10}

	c, err := svc.AddItem(context.Background(), owner, "P1", 3)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 5, c.Lines[0].Quantity)
	assert.True(t, c.Lines[0].UnitPrice.Equal(d("100.00")),
		"snapshot must keep the first add's price, got %s", c.Lines[0].UnitPrice)
}

func TestUpdateItem(t *testing.T) {
	svc, _, _ := setup()
	owner := OwnerKey{UserID: "user-1"}
	_, err := svc.AddItem(context.Background(), owner, "P1", 2)
	require.NoError(t, err)

	t.Run("overwrites quantity", func(t *testing.T) {
		c, err := svc.UpdateItem(context.Background(), owner, "P1", 7)
		require.NoError(t, err)
		assert.Equal(t, 7, c.Lines[0].Quantity)
	})

	t.Run("zero removes the line", func(t *testing.T) {
		c, err := svc.UpdateItem(context.Background(), owner, "P1", 0)
		require.NoError(t, err)
		assert.Len(t, c.Lines, 0)
	})

	t.Run("missing line", func(t *testing.T) {
		_, err := svc.UpdateItem(context.Background(), owner, "P2", 1)
		assert.ErrorIs(t, err, ErrCartItemNotFound)
	})
}

func TestRemoveItemIdempotent(t *testing.T) {
	svc, _, _ := setup()
	owner := OwnerKey{UserID: "user-1"}
	_, err := svc.AddItem(context.Background(), owner, "P1", 1)
	require.NoError(t, err)

	c, err := svc.RemoveItem(context.Background(), owner, "P1")
	require.NoError(t, err)
	assert.Len(t, c.Lines, 0)

	// removing again is not an error
	c, err = svc.RemoveItem(context.Background(), owner, "P1")
	require.NoError(t, err)
	assert.Len(t, c.Lines, 0)
}

func TestClear(t *testing.T) {
	svc, _, _ := setup()
	owner := OwnerKey{UserID: "user-1"}
	_, _ = svc.AddItem(context.Background(), owner, "P1", 1)
	_, _ = svc.AddItem(context.Background(), owner, "P2", 4)

	c, err := svc.Clear(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, c.Lines, 0)
	assert.True(t, c.Subtotal().Equal(decimal.Zero))

	// clearing an empty cart stays fine
	_, err = svc.Clear(context.Background(), owner)
	require.NoError(t, err)
}

func TestSubtotal(t *testing.T) {
	svc, _, _ := setup()
	owner := OwnerKey{UserID: "user-1"}
	_, _ = svc.AddItem(context.Background(), owner, "P1", 2)  // 200.00
	c, _ := svc.AddItem(context.Background(), owner, "P2", 3) // 59.97
	assert.True(t, c.Subtotal().Equal(d("259.97")), "got %s", c.Subtotal())
}
