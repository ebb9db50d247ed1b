package security

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestAlerter(t *testing.T) (*AuditAlerter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewAuditAlerter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:alerts"), mr
}

func TestAuditAlerterTriggersOnOTPGuessing(t *testing.T) {
	alerter, _ := newTestAlerter(t)
	var last AlertResult
	for i := 0; i < 10; i++ {
		result, err := alerter.Observe(context.Background(), "order.otp.verify", "fail", "10.0.0.1")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if i < 9 && result.Triggered {
			t.Fatalf("triggered early at %d", i+1)
		}
		last = result
	}
	if !last.Triggered || last.Count != 10 {
		t.Fatalf("expected trigger at 10, got %+v", last)
	}
	other, _ := alerter.Observe(context.Background(), "order.otp.verify", "fail", "10.0.0.2")
	if other.Count != 1 {
		t.Fatalf("counts must be per ip, got %+v", other)
	}
}

func TestAuditAlerterIgnoresSuccessAndUnknownEvents(t *testing.T) {
	alerter, mr := newTestAlerter(t)
	for _, ev := range [][2]string{{"order.otp.verify", "success"}, {"product.add", "fail"}} {
		result, err := alerter.Observe(context.Background(), ev[0], ev[1], "10.0.0.1")
		if err != nil || result.Triggered || result.Count != 0 {
			t.Fatalf("%v: unexpected %+v err=%v", ev, result, err)
		}
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected no counters, got %v", keys)
	}
}

func TestAuditAlerterWindowResets(t *testing.T) {
	alerter, _ := newTestAlerter(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	alerter.now = func() time.Time { return now }
	for i := 0; i < 3; i++ {
		_, _ = alerter.Observe(context.Background(), "user.cas_validate", "fail", "ip")
	}
	now = now.Add(6 * time.Minute)
	result, err := alerter.Observe(context.Background(), "user.cas_validate", "fail", "ip")
	if err != nil || result.Count != 1 {
		t.Fatalf("expected fresh window, got %+v err=%v", result, err)
	}
}

func TestNilAlerterIsNoop(t *testing.T) {
	var alerter *AuditAlerter
	if _, err := alerter.Observe(context.Background(), "authorize", "fail", "ip"); err != nil {
		t.Fatalf("nil alerter should not error: %v", err)
	}
	if NewAuditAlerter(nil, "") != nil {
		t.Fatalf("expected nil alerter without client")
	}
}
