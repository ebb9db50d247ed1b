package store

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"campusmart/pkg/domain"
)

// MemoryStore keeps everything in-process. It backs tests and single-node
// demos; each method holds the lock for its whole read-modify-write.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User // key: user ID
	email    map[string]string      // email -> user ID
	products map[string]domain.Product
	titles   map[string]string // title -> product ID
	carts    map[string][]domain.CartItem
	orders   map[string]domain.Order
	messages []domain.Message
	tickets  map[string]domain.SupportTicket
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		email:    make(map[string]string),
		products: make(map[string]domain.Product),
		titles:   make(map[string]string),
		carts:    make(map[string][]domain.CartItem),
		orders:   make(map[string]domain.Order),
		tickets:  make(map[string]domain.SupportTicket),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[u.ID]; ok {
		u.Email = existing.Email
		u.CreatedAt = existing.CreatedAt
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) CreateProduct(p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.titles[p.Title]; taken {
		return ErrDuplicateTitle
	}
	m.products[p.ID] = p
	m.titles[p.Title] = p.ID
	return nil
}

func (m *MemoryStore) GetProduct(id string) (domain.Product, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	return p, ok, nil
}

func (m *MemoryStore) GetProductByTitle(title string) (domain.Product, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.titles[title]
	if !ok {
		return domain.Product{}, false, nil
	}
	p, ok := m.products[id]
	return p, ok, nil
}

func (m *MemoryStore) GetProductsByIDs(ids []string) (map[string]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *MemoryStore) ListProducts(filter ProductFilter) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.SubCategory != "" && p.SubCategory != filter.SubCategory {
			continue
		}
		if filter.SellerEmail != "" && p.SellerEmail != filter.SellerEmail {
			continue
		}
		res = append(res, p)
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

func (m *MemoryStore) DeleteProduct(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return false, nil
	}
	delete(m.products, id)
	delete(m.titles, p.Title)
	return true, nil
}

func (m *MemoryStore) AddCartQuantity(userID, productID string, delta int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.carts[userID]
	idx := slices.IndexFunc(items, func(it domain.CartItem) bool { return it.ProductID == productID })
	if idx < 0 {
		if delta <= 0 {
			return 0, false, nil
		}
		m.carts[userID] = append(items, domain.CartItem{
			UserID:    userID,
			ProductID: productID,
			Quantity:  delta,
			AddedAt:   time.Now().UTC(),
		})
		return delta, true, nil
	}
	q := items[idx].Quantity + delta
	if q <= 0 {
		m.carts[userID] = slices.Delete(items, idx, idx+1)
		return 0, true, nil
	}
	items[idx].Quantity = q
	return q, true, nil
}

func (m *MemoryStore) SetCartQuantity(userID, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.carts[userID]
	idx := slices.IndexFunc(items, func(it domain.CartItem) bool { return it.ProductID == productID })
	if idx < 0 {
		return nil
	}
	if quantity <= 0 {
		m.carts[userID] = slices.Delete(items, idx, idx+1)
		return nil
	}
	items[idx].Quantity = quantity
	return nil
}

func (m *MemoryStore) RemoveCartItem(userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[userID] = slices.DeleteFunc(m.carts[userID], func(it domain.CartItem) bool {
		return it.ProductID == productID
	})
	return nil
}

func (m *MemoryStore) ListCart(userID string) ([]domain.CartItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.carts[userID]), nil
}

func (m *MemoryStore) ClearCart(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

func (m *MemoryStore) CreateOrders(orders []domain.Order, clearCartUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range orders {
		o.Items = slices.Clone(o.Items)
		m.orders[o.ID] = o
	}
	if clearCartUserID != "" {
		delete(m.carts, clearCartUserID)
	}
	return nil
}

func (m *MemoryStore) GetOrder(id string) (domain.Order, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if ok {
		o.Items = slices.Clone(o.Items)
	}
	return o, ok, nil
}

func (m *MemoryStore) SetPendingOrderOTP(id, otpHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != domain.OrderPending {
		return false, nil
	}
	o.OTPHash = otpHash
	m.orders[id] = o
	return true, nil
}

func (m *MemoryStore) CompleteOrder(id, otpHash string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != domain.OrderPending || o.OTPHash != otpHash {
		return false, nil
	}
	done := at.UTC()
	o.Status = domain.OrderCompleted
	o.CompletedAt = &done
	m.orders[id] = o
	return true, nil
}

func (m *MemoryStore) ListOrders(filter OrderFilter) ([]domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Order, 0)
	for _, o := range m.orders {
		if filter.SellerEmail != "" && o.SellerEmail != filter.SellerEmail {
			continue
		}
		if filter.BuyerEmail != "" && o.BuyerEmail != filter.BuyerEmail {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		o.Items = slices.Clone(o.Items)
		res = append(res, o)
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (m *MemoryStore) AppendMessage(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *MemoryStore) ListConversation(userA, userB string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Message, 0)
	for _, msg := range m.messages {
		if (msg.Sender == userA && msg.Receiver == userB) || (msg.Sender == userB && msg.Receiver == userA) {
			res = append(res, msg)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.Before(res[j].Timestamp) })
	return res, nil
}

func (m *MemoryStore) ListChatPartners(email string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, msg := range m.messages {
		switch email {
		case msg.Sender:
			seen[msg.Receiver] = struct{}{}
		case msg.Receiver:
			seen[msg.Sender] = struct{}{}
		}
	}
	delete(seen, email)
	out := make([]string, 0, len(seen))
	for partner := range seen {
		if strings.TrimSpace(partner) != "" {
			out = append(out, partner)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) SaveSupportTicket(t domain.SupportTicket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[t.ID] = t
	return nil
}

func (m *MemoryStore) GetSupportTicket(id string) (domain.SupportTicket, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tickets[id]
	return t, ok, nil
}
