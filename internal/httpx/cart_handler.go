package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"ordercart/internal/cart"
)

type CartHandler struct {
	Carts *cart.Service
	Auth  TokenValidator
}

func (h *CartHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(MaybeUser(h.Auth))
		r.Get("/cart", h.getCart)
		r.Post("/cart/add", h.addItem)
		r.Patch("/cart/update", h.updateItem)
		r.Delete("/cart/remove/{productID}", h.removeItem)
		r.Delete("/cart/clear", h.clearCart)
	})
}

// owner resolves the cart owner: authenticated user id first, otherwise the
// guest session id from header or query.
func owner(r *http.Request) cart.OwnerKey {
	k := cart.OwnerKey{UserID: userID(r)}
	if k.UserID == "" {
		k.SessionID = r.Header.Get("X-Session-ID")
		if k.SessionID == "" {
			k.SessionID = r.URL.Query().Get("session_id")
		}
	}
	return k
}

type cartLineResp struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"product_id"`
	ProductSKU string          `json:"product_sku"`
	Name       string          `json:"product_name"`
	Image      string          `json:"product_image,omitempty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type cartResp struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id,omitempty"`
	SessionID  string          `json:"session_id,omitempty"`
	Items      []cartLineResp  `json:"items"`
	TotalItems int             `json:"total_items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func toCartResp(c *cart.Cart) cartResp {
	out := cartResp{
		ID:        c.ID,
		UserID:    c.UserID,
		SessionID: c.SessionID,
		Items:     make([]cartLineResp, 0, len(c.Lines)),
		Subtotal:  c.Subtotal(),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	for _, l := range c.Lines {
		out.Items = append(out.Items, cartLineResp{
			ID:         l.ID,
			ProductID:  l.ProductID,
			ProductSKU: l.SKU,
			Name:       l.Name,
			Image:      l.Image,
			UnitPrice:  l.UnitPrice,
			Quantity:   l.Quantity,
			TotalPrice: l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))),
			CreatedAt:  l.CreatedAt,
			UpdatedAt:  l.UpdatedAt,
		})
		out.TotalItems += l.Quantity
	}
	return out
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.Get(r.Context(), owner(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResp(c))
}

type addItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	c, err := h.Carts.AddItem(r.Context(), owner(r), req.ProductID, req.Quantity)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResp(c))
}

type updateItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *CartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	c, err := h.Carts.UpdateItem(r.Context(), owner(r), req.ProductID, req.Quantity)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResp(c))
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.RemoveItem(r.Context(), owner(r), chi.URLParam(r, "productID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResp(c))
}

func (h *CartHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.Clear(r.Context(), owner(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResp(c))
}
