package app

import (
	"errors"
	"strings"

	"campusmart/internal/util"
	"campusmart/pkg/domain"
	"campusmart/pkg/otp"
	"campusmart/pkg/store"
)

// CreateOrders checks out a cart snapshot. A nil snapshot means the buyer's
// stored cart; an empty non-nil one checks out nothing. One Pending order is
// created per distinct seller, each with its own OTP; the orders and the clear
// of the stored cart commit together. Lines whose product no longer exists are
// skipped, and a checkout where every product is gone still clears the cart.
func (a *App) CreateOrders(buyer domain.User, snapshot []domain.LineItem) ([]domain.IssuedOTP, error) {
	if snapshot == nil {
		items, err := a.store.ListCart(buyer.ID)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			snapshot = append(snapshot, domain.LineItem{ProductID: it.ProductID, Quantity: it.Quantity})
		}
	}
	lines, err := mergeLines(snapshot)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return []domain.IssuedOTP{}, nil
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := a.store.GetProductsByIDs(ids)
	if err != nil {
		return nil, err
	}

	var sellers []string
	bySeller := make(map[string][]domain.LineItem)
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			continue
		}
		if p.SellerEmail == buyer.Email {
			return nil, ErrOwnListing
		}
		if _, seen := bySeller[p.SellerEmail]; !seen {
			sellers = append(sellers, p.SellerEmail)
		}
		bySeller[p.SellerEmail] = append(bySeller[p.SellerEmail], l)
	}
	if len(sellers) == 0 {
		if err := a.store.CreateOrders(nil, buyer.ID); err != nil {
			return nil, err
		}
		return []domain.IssuedOTP{}, nil
	}

	now := a.now()
	orders := make([]domain.Order, 0, len(sellers))
	issued := make([]domain.IssuedOTP, 0, len(sellers))
	for _, seller := range sellers {
		code, hash, err := otp.Generate()
		if err != nil {
			return nil, err
		}
		o := domain.Order{
			ID:          util.NewID(),
			BuyerEmail:  buyer.Email,
			SellerEmail: seller,
			Items:       bySeller[seller],
			Status:      domain.OrderPending,
			OTPHash:     hash,
			CreatedAt:   now,
		}
		orders = append(orders, o)
		issued = append(issued, domain.IssuedOTP{OrderID: o.ID, SellerEmail: seller, OTP: code})
	}
	if err := a.store.CreateOrders(orders, buyer.ID); err != nil {
		return nil, err
	}
	return issued, nil
}

// mergeLines sums quantities per product, keeping first-seen order.
func mergeLines(in []domain.LineItem) ([]domain.LineItem, error) {
	out := make([]domain.LineItem, 0, len(in))
	index := make(map[string]int, len(in))
	for _, l := range in {
		l.ProductID = strings.TrimSpace(l.ProductID)
		if l.ProductID == "" {
			return nil, ErrProductIDRequired
		}
		if l.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out, nil
}

// RegenerateOTP issues a fresh code for a Pending order, invalidating the
// previous one. Only the buyer may ask.
func (a *App) RegenerateOTP(buyer domain.User, orderID string) (domain.IssuedOTP, error) {
	order, err := a.pendingOrder(orderID)
	if err != nil {
		return domain.IssuedOTP{}, err
	}
	if order.BuyerEmail != buyer.Email {
		return domain.IssuedOTP{}, ErrNotOrderBuyer
	}
	code, hash, err := otp.Generate()
	if err != nil {
		return domain.IssuedOTP{}, err
	}
	updated, err := a.store.SetPendingOrderOTP(order.ID, hash)
	if err != nil {
		return domain.IssuedOTP{}, err
	}
	if !updated {
		return domain.IssuedOTP{}, ErrOrderNotPending
	}
	return domain.IssuedOTP{OrderID: order.ID, SellerEmail: order.SellerEmail, OTP: code}, nil
}

// VerifyOTP completes a Pending order when the seller presents the code the
// buyer handed over. Wrong codes leave the order Pending and may be retried.
func (a *App) VerifyOTP(seller domain.User, orderID, code string) (domain.Order, error) {
	code = strings.TrimSpace(code)
	if !otp.ValidFormat(code) {
		return domain.Order{}, ErrInvalidOTPFormat
	}
	order, err := a.pendingOrder(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.SellerEmail != seller.Email {
		return domain.Order{}, ErrNotOrderSeller
	}
	if err := otp.Compare(order.OTPHash, code); err != nil {
		if errors.Is(err, otp.ErrMismatch) {
			return domain.Order{}, ErrInvalidOTP
		}
		return domain.Order{}, err
	}
	at := a.now()
	updated, err := a.store.CompleteOrder(order.ID, order.OTPHash, at)
	if err != nil {
		return domain.Order{}, err
	}
	if !updated {
		// Lost a race: either someone completed it or the buyer reissued the
		// code after we compared.
		if _, err := a.pendingOrder(order.ID); err != nil {
			return domain.Order{}, err
		}
		return domain.Order{}, ErrInvalidOTP
	}
	order.Status = domain.OrderCompleted
	order.CompletedAt = &at
	order.OTPHash = ""
	return order, nil
}

func (a *App) pendingOrder(orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, ErrOrderIDRequired
	}
	order, ok, err := a.store.GetOrder(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !ok {
		return domain.Order{}, ErrOrderNotFound
	}
	if order.Status != domain.OrderPending {
		return domain.Order{}, ErrOrderNotPending
	}
	return order, nil
}

// SellerOrders lists orders where user is the seller, filtered by status.
func (a *App) SellerOrders(seller domain.User, status domain.OrderStatus) ([]domain.OrderView, error) {
	return a.listOrders(store.OrderFilter{SellerEmail: seller.Email, Status: status})
}

// Purchases lists orders where user is the buyer. An empty status lists all.
func (a *App) Purchases(buyer domain.User, status domain.OrderStatus) ([]domain.OrderView, error) {
	return a.listOrders(store.OrderFilter{BuyerEmail: buyer.Email, Status: status})
}

// AllPendingOrders is the unscoped listing reserved for admins.
func (a *App) AllPendingOrders(actor domain.User) ([]domain.OrderView, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	return a.listOrders(store.OrderFilter{Status: domain.OrderPending})
}

func (a *App) listOrders(filter store.OrderFilter) ([]domain.OrderView, error) {
	orders, err := a.store.ListOrders(filter)
	if err != nil {
		return nil, err
	}
	return a.resolveOrders(orders)
}

func (a *App) resolveOrders(orders []domain.Order) ([]domain.OrderView, error) {
	var ids []string
	seen := make(map[string]struct{})
	for _, o := range orders {
		for _, it := range o.Items {
			if _, ok := seen[it.ProductID]; !ok {
				seen[it.ProductID] = struct{}{}
				ids = append(ids, it.ProductID)
			}
		}
	}
	products, err := a.store.GetProductsByIDs(ids)
	if err != nil {
		return nil, err
	}
	views := make([]domain.OrderView, 0, len(orders))
	for _, o := range orders {
		v := domain.OrderView{
			ID:          o.ID,
			BuyerEmail:  o.BuyerEmail,
			SellerEmail: o.SellerEmail,
			Status:      o.Status,
			CreatedAt:   o.CreatedAt,
			CompletedAt: o.CompletedAt,
			Items:       make([]domain.ResolvedLineItem, 0, len(o.Items)),
		}
		for _, it := range o.Items {
			line := domain.ResolvedLineItem{ProductID: it.ProductID, Quantity: it.Quantity}
			if p, ok := products[it.ProductID]; ok {
				line.Product = &p
			}
			v.Items = append(v.Items, line)
		}
		views = append(views, v)
	}
	return views, nil
}

// ParseOrderStatus accepts "pending" or "completed" in any case; empty means any.
func ParseOrderStatus(s string) (domain.OrderStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "pending":
		return domain.OrderPending, nil
	case "completed":
		return domain.OrderCompleted, nil
	}
	return "", ErrInvalidOrderStatus
}
