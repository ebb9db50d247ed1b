package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"campusmart/pkg/domain"
)

func TestMemoryStoreCartIncrementMergesLine(t *testing.T) {
	m := NewMemoryStore()
	for i := 0; i < 2; i++ {
		if _, ok, err := m.AddCartQuantity("u1", "p1", 1); err != nil || !ok {
			t.Fatalf("add %d: ok=%v err=%v", i, ok, err)
		}
	}
	items, _ := m.ListCart("u1")
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("expected single line with quantity 2, got %+v", items)
	}
}

func TestMemoryStoreCartDecrementRemovesAtZero(t *testing.T) {
	m := NewMemoryStore()
	_, _, _ = m.AddCartQuantity("u1", "p1", 1)
	q, ok, err := m.AddCartQuantity("u1", "p1", -1)
	if err != nil || !ok || q != 0 {
		t.Fatalf("decrement: q=%d ok=%v err=%v", q, ok, err)
	}
	items, _ := m.ListCart("u1")
	if len(items) != 0 {
		t.Fatalf("expected empty cart, got %+v", items)
	}
	if _, ok, _ := m.AddCartQuantity("u1", "p1", -1); ok {
		t.Fatalf("negative delta on missing line must report ok=false")
	}
}

func TestMemoryStoreCartConcurrentAddsDoNotLoseUpdates(t *testing.T) {
	m := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = m.AddCartQuantity("u1", "p1", 1)
		}()
	}
	wg.Wait()
	items, _ := m.ListCart("u1")
	if len(items) != 1 || items[0].Quantity != 50 {
		t.Fatalf("expected quantity 50, got %+v", items)
	}
}

func TestMemoryStoreDuplicateTitle(t *testing.T) {
	m := NewMemoryStore()
	if err := m.CreateProduct(domain.Product{ID: "p1", Title: "X"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.CreateProduct(domain.Product{ID: "p2", Title: "X"}); !errors.Is(err, ErrDuplicateTitle) {
		t.Fatalf("expected ErrDuplicateTitle, got %v", err)
	}
	if _, err := m.DeleteProduct("p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.CreateProduct(domain.Product{ID: "p3", Title: "X"}); err != nil {
		t.Fatalf("title should be free after delete: %v", err)
	}
}

func TestMemoryStoreCompleteOrderOnlyOnce(t *testing.T) {
	m := NewMemoryStore()
	order := domain.Order{ID: "o1", Status: domain.OrderPending, OTPHash: "h1", CreatedAt: time.Now()}
	if err := m.CreateOrders([]domain.Order{order}, ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ok, _ := m.CompleteOrder("o1", "stale", time.Now()); ok {
		t.Fatalf("completion with a replaced hash must not succeed")
	}
	if ok, _ := m.CompleteOrder("o1", "h1", time.Now()); !ok {
		t.Fatalf("first completion should succeed")
	}
	if ok, _ := m.CompleteOrder("o1", "h1", time.Now()); ok {
		t.Fatalf("second completion must not succeed")
	}
	if ok, _ := m.SetPendingOrderOTP("o1", "hash"); ok {
		t.Fatalf("otp must not be replaced on completed order")
	}
	got, _, _ := m.GetOrder("o1")
	if got.Status != domain.OrderCompleted || got.CompletedAt == nil {
		t.Fatalf("unexpected order state: %+v", got)
	}
}

func TestMemoryStoreChatPartners(t *testing.T) {
	m := NewMemoryStore()
	now := time.Now()
	_ = m.AppendMessage(domain.Message{ID: "1", Sender: "a", Receiver: "b", Timestamp: now})
	_ = m.AppendMessage(domain.Message{ID: "2", Sender: "c", Receiver: "a", Timestamp: now.Add(time.Second)})
	_ = m.AppendMessage(domain.Message{ID: "3", Sender: "b", Receiver: "a", Timestamp: now.Add(2 * time.Second)})
	_ = m.AppendMessage(domain.Message{ID: "4", Sender: "b", Receiver: "c", Timestamp: now.Add(3 * time.Second)})

	partners, _ := m.ListChatPartners("a")
	if len(partners) != 2 || partners[0] != "b" || partners[1] != "c" {
		t.Fatalf("unexpected partners: %v", partners)
	}
	conv, _ := m.ListConversation("a", "b")
	if len(conv) != 2 || conv[0].ID != "1" || conv[1].ID != "3" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}
}
