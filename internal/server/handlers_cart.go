package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"campusmart/internal/app"
	"campusmart/pkg/domain"
)

// productRef accepts either a bare product id or a product object with _id.
type productRef string

func (p *productRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*p = ""
		return nil
	}
	if b[0] == '"' {
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*p = productRef(id)
		return nil
	}
	var obj struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*p = productRef(obj.ID)
	return nil
}

type cartAddRequest struct {
	ProductData productRef `json:"productdata"`
	ProductID   string     `json:"productId"`
	Quantity    *int       `json:"quantity"`
}

type cartUpdateRequest struct {
	Product   productRef `json:"product"`
	ProductID string     `json:"productId"`
	Quantity  *int       `json:"quantity"`
}

type cartRemoveRequest struct {
	ProductID string `json:"productId"`
}

type cartResponse struct {
	Message string            `json:"message"`
	Cart    []domain.CartLine `json:"cart"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (s *Server) handleCartAdd(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req cartAddRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	delta := 1
	if req.Quantity != nil {
		delta = *req.Quantity
	}
	cart, err := s.app.AddToCart(user, firstNonEmpty(string(req.ProductData), req.ProductID), delta)
	if err != nil {
		writeAppError(w, r, "cart_add", err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Message: "Product added to cart successfully", Cart: cart})
}

func (s *Server) handleCartUpdate(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req cartUpdateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Quantity == nil {
		writeError(w, http.StatusBadRequest, app.ErrInvalidQuantity.Error())
		return
	}
	cart, err := s.app.SetCartQuantity(user, firstNonEmpty(string(req.Product), req.ProductID), *req.Quantity)
	if err != nil {
		writeAppError(w, r, "cart_update", err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Message: "Cart updated successfully", Cart: cart})
}

func (s *Server) handleCartRemove(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req cartRemoveRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	cart, err := s.app.RemoveFromCart(user, req.ProductID)
	if err != nil {
		writeAppError(w, r, "cart_remove", err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Message: "Product removed from cart", Cart: cart})
}

func (s *Server) handleCartClear(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.app.ClearCart(user); err != nil {
		writeAppError(w, r, "cart_clear", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared successfully"})
}

func (s *Server) handleCartList(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	cart, err := s.app.Cart(user)
	if err != nil {
		writeAppError(w, r, "cart_list", err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}
