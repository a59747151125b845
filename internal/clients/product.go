package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrUnavailable     = errors.New("external service unavailable")
)

// Product is the slice of the product directory's record this service needs
// to price and stock-check a line.
type Product struct {
	ID    string
	SKU   string
	Name  string
	Image string
	Price decimal.Decimal
	Stock int
}

type ProductClient struct {
	base string
	http *http.Client
}

func NewProductClient(base string, timeout time.Duration) *ProductClient {
	return &ProductClient{base: base, http: &http.Client{Timeout: timeout}}
}

func (c *ProductClient) Resolve(ctx context.Context, productID string) (Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/products/%s", c.base, productID), nil)
	if err != nil {
		return Product{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Product{}, fmt.Errorf("resolve product %s: %w", productID, ErrUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Product{}, fmt.Errorf("product %s: %w", productID, ErrProductNotFound)
	case resp.StatusCode != http.StatusOK:
		return Product{}, fmt.Errorf("resolve product %s: status %d: %w", productID, resp.StatusCode, ErrUnavailable)
	}

	var body struct {
		Data struct {
			ID     string          `json:"id"`
			SKU    string          `json:"sku"`
			Name   string          `json:"name"`
			Images []string        `json:"images"`
			Price  decimal.Decimal `json:"price"`
			Stock  int             `json:"stock"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Product{}, fmt.Errorf("resolve product %s: decode: %w", productID, ErrUnavailable)
	}

	p := Product{
		ID:    body.Data.ID,
		SKU:   body.Data.SKU,
		Name:  body.Data.Name,
		Price: body.Data.Price,
		Stock: body.Data.Stock,
	}
	if len(body.Data.Images) > 0 {
		p.Image = body.Data.Images[0]
	}
	return p, nil
}

// AdjustStock moves stock by delta: negative on order creation, positive on
// cancellation restock.
func (c *ProductClient) AdjustStock(ctx context.Context, productID string, delta int) error {
	payload, _ := json.Marshal(map[string]int{"quantity": delta})
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		fmt.Sprintf("%s/api/products/%s/stock", c.base, productID), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("adjust stock %s: %w", productID, ErrUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("adjust stock %s: status %d: %w", productID, resp.StatusCode, ErrUnavailable)
	}
	return nil
}
