package app

import (
	"strings"

	"campusmart/pkg/domain"
)

// AddToCart applies delta to the caller's line for productID. A line that
// reaches zero is removed; a new line needs a positive delta.
func (a *App) AddToCart(user domain.User, productID string, delta int) ([]domain.CartLine, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, ErrProductIDRequired
	}
	if delta == 0 {
		return nil, ErrInvalidQuantity
	}
	if _, ok, err := a.store.GetProduct(productID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrProductNotFound
	}
	_, ok, err := a.store.AddCartQuantity(user.ID, productID, delta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNewCartItemQuantity
	}
	return a.Cart(user)
}

// SetCartQuantity overwrites a line's quantity; zero or less removes it.
// Products not in the cart are left alone.
func (a *App) SetCartQuantity(user domain.User, productID string, quantity int) ([]domain.CartLine, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, ErrProductIDRequired
	}
	if err := a.store.SetCartQuantity(user.ID, productID, quantity); err != nil {
		return nil, err
	}
	return a.Cart(user)
}

// RemoveFromCart drops the line for productID. Missing lines are not an error.
func (a *App) RemoveFromCart(user domain.User, productID string) ([]domain.CartLine, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, ErrProductIDRequired
	}
	if err := a.store.RemoveCartItem(user.ID, productID); err != nil {
		return nil, err
	}
	return a.Cart(user)
}

func (a *App) ClearCart(user domain.User) error {
	return a.store.ClearCart(user.ID)
}

// Cart returns the caller's cart with products resolved. Lines whose product
// has since been deleted carry a nil Product.
func (a *App) Cart(user domain.User) ([]domain.CartLine, error) {
	items, err := a.store.ListCart(user.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := a.store.GetProductsByIDs(ids)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.CartLine, 0, len(items))
	for _, it := range items {
		line := domain.CartLine{ProductID: it.ProductID, Quantity: it.Quantity}
		if p, ok := products[it.ProductID]; ok {
			line.Product = &p
		}
		lines = append(lines, line)
	}
	return lines, nil
}
