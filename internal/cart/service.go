package cart

import (
	"context"

	"github.com/google/uuid"

	"ordercart/internal/clients"
)

// Store is what the service needs from persistence; *Repo implements it.
type Store interface {
	GetOrCreate(ctx context.Context, owner OwnerKey) (*Cart, error)
	UpsertLine(ctx context.Context, cartID string, line Line) error
	UpdateLine(ctx context.Context, cartID, productID string, quantity int) error
	DeleteLine(ctx context.Context, cartID, productID string) error
	ClearLines(ctx context.Context, cartID string) error
}

// ProductDirectory resolves product ids to priced catalog records.
type ProductDirectory interface {
	Resolve(ctx context.Context, productID string) (clients.Product, error)
}

type Service struct {
	store     Store
	directory ProductDirectory
}

func NewService(store Store, directory ProductDirectory) *Service {
	return &Service{store: store, directory: directory}
}

// Get returns the owner's cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, owner OwnerKey) (*Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	return s.store.GetOrCreate(ctx, owner)
}

// AddItem puts quantity of the product into the cart. A product already in
// the cart gets its quantity incremented; the price snapshot from the first
// add stands. Stock is not checked here, only at order creation.
func (s *Service) AddItem(ctx context.Context, owner OwnerKey, productID string, quantity int) (*Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.store.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	p, err := s.directory.Resolve(ctx, productID)
	if err != nil {
		return nil, err
	}

	line := Line{
		ID:        uuid.NewString(),
		CartID:    c.ID,
		ProductID: productID,
		SKU:       p.SKU,
		Name:      p.Name,
		Image:     p.Image,
		UnitPrice: p.Price,
		Quantity:  quantity,
	}
	if err := s.store.UpsertLine(ctx, c.ID, line); err != nil {
		return nil, err
	}
	return s.store.GetOrCreate(ctx, owner)
}

// UpdateItem overwrites a line's quantity; quantity <= 0 removes the line.
func (s *Service) UpdateItem(ctx context.Context, owner OwnerKey, productID string, quantity int) (*Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	c, err := s.store.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateLine(ctx, c.ID, productID, quantity); err != nil {
		return nil, err
	}
	return s.store.GetOrCreate(ctx, owner)
}

// RemoveItem deletes the product's line; removing an absent line is a no-op.
func (s *Service) RemoveItem(ctx context.Context, owner OwnerKey, productID string) (*Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	c, err := s.store.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteLine(ctx, c.ID, productID); err != nil {
		return nil, err
	}
	return s.store.GetOrCreate(ctx, owner)
}

// Clear empties the cart. The cart row itself survives.
func (s *Service) Clear(ctx context.Context, owner OwnerKey) (*Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	c, err := s.store.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := s.store.ClearLines(ctx, c.ID); err != nil {
		return nil, err
	}
	return s.store.GetOrCreate(ctx, owner)
}
