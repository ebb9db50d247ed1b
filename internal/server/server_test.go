package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"campusmart/internal/app"
	"campusmart/internal/assistant"
	"campusmart/internal/cas"
	"campusmart/internal/payment"
	"campusmart/pkg/domain"
	"campusmart/pkg/store"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

type fakeImages struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func (f *fakeImages) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objs == nil {
		f.objs = map[string][]byte{}
	}
	f.objs[key] = data
	return nil
}

func (f *fakeImages) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objs, key)
	return nil
}

func (f *fakeImages) URL(key string) string { return "http://cdn.test/bucket/" + key }

type fakePayments struct{}

func (fakePayments) CreateOrder(_ context.Context, amount decimal.Decimal) (payment.Order, error) {
	paise, err := payment.ToPaise(amount)
	if err != nil {
		return payment.Order{}, err
	}
	return payment.Order{ID: "order_test", Entity: "order", Amount: paise, Currency: "INR", Status: "created"}, nil
}

type testServer struct {
	url   string
	hub   *Hub
	redis *miniredis.Miniredis
	store *store.MemoryStore
}

type serverOption func(*Config)

// newTestServer wires the real CAS client against a fake CAS endpoint that
// accepts tickets of the form ST-<username>.
func newTestServer(t *testing.T, opts ...serverOption) testServer {
	t.Helper()
	casSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ticket := r.URL.Query().Get("ticket")
		if r.URL.Path != "/validate" || !strings.HasPrefix(ticket, "ST-") {
			_, _ = io.WriteString(w, "no\n\n")
			return
		}
		_, _ = fmt.Fprintf(w, "yes\n%s\n", strings.TrimPrefix(ticket, "ST-"))
	}))
	t.Cleanup(casSrv.Close)
	casClient, err := cas.NewClient(cas.Config{BaseURL: casSrv.URL})
	if err != nil {
		t.Fatalf("cas client: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	mem := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionStore(testJWTSecret, store.NewRedisTokenRevoker(rdb, ""), store.JWTOptions{})
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	hub := NewHub()
	a, err := app.New(app.Config{
		Store:              mem,
		Sessions:           sessions,
		CAS:                casClient,
		Publisher:          hub,
		AdminEmails:        []string{"admin@iiit.ac.in"},
		DefaultEmailDomain: "iiit.ac.in",
	})
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	cfg := Config{
		App:       a,
		Assistant: assistant.New(a, nil),
		Payments:  fakePayments{},
		Images:    &fakeImages{},
		Hub:       hub,
		Redis:     rdb,
	}
	for _, o := range opts {
		o(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	hs := httptest.NewServer(srv.Router())
	t.Cleanup(hs.Close)
	return testServer{url: hs.URL, hub: hub, redis: mr, store: mem}
}

func (ts testServer) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.url+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

// signUp logs username in through CAS and completes the profile, returning a
// session token.
func (ts testServer) signUp(t *testing.T, username string) string {
	t.Helper()
	status, raw := ts.do(t, http.MethodPost, "/api/user/cas-validate", "", map[string]string{
		"ticket": "ST-" + username, "service": "http://app.test/cb",
	})
	if status != http.StatusOK {
		t.Fatalf("cas-validate: %d %s", status, raw)
	}
	login := decode[casValidateResponse](t, raw)
	if login.TokenKind == string(store.KindSession) {
		return login.Token
	}
	status, raw = ts.do(t, http.MethodPost, "/api/user/register-details", login.Token, map[string]string{
		"firstname": "First", "lastname": "Last", "contactnumber": "+919876543210",
	})
	if status != http.StatusOK {
		t.Fatalf("register-details: %d %s", status, raw)
	}
	return decode[struct {
		Token string `json:"token"`
	}](t, raw).Token
}

func (ts testServer) listProduct(t *testing.T, token, title string) domain.Product {
	t.Helper()
	status, raw := ts.do(t, http.MethodPost, "/api/product/add", token, map[string]any{
		"title":       title,
		"description": "barely used",
		"price":       200,
		"imageUrl":    "http://cdn.test/x.png",
		"category":    "Books",
		"subCategory": "Textbooks",
	})
	if status != http.StatusCreated {
		t.Fatalf("product add: %d %s", status, raw)
	}
	return decode[domain.Product](t, raw)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	status, raw := ts.do(t, http.MethodGet, "/healthz", "", nil)
	if status != http.StatusOK || !strings.Contains(string(raw), `"ok"`) {
		t.Fatalf("unexpected health response: %d %s", status, raw)
	}
}

func TestRegistrationTokenOnlyOpensRegisterDetails(t *testing.T) {
	ts := newTestServer(t)
	status, raw := ts.do(t, http.MethodPost, "/api/user/cas-validate", "", map[string]string{
		"ticket": "ST-newbie", "service": "http://app.test/cb",
	})
	if status != http.StatusOK {
		t.Fatalf("cas-validate: %d %s", status, raw)
	}
	login := decode[casValidateResponse](t, raw)
	if !login.IsNewUser || login.TokenKind != string(store.KindRegistration) {
		t.Fatalf("expected new user with registration token, got %+v", login)
	}
	if login.User.Email != "newbie@iiit.ac.in" {
		t.Fatalf("unexpected email %q", login.User.Email)
	}
	if status, _ := ts.do(t, http.MethodGet, "/api/user/profile", login.Token, nil); status != http.StatusUnauthorized {
		t.Fatalf("registration token must not open profile, got %d", status)
	}
	status, raw = ts.do(t, http.MethodPost, "/api/user/register-details", login.Token, map[string]string{
		"firstname": "N", "lastname": "B", "contactnumber": "12345",
	})
	if status != http.StatusBadRequest || !strings.Contains(string(raw), app.ErrInvalidContactNumber.Error()) {
		t.Fatalf("expected contact validation error, got %d %s", status, raw)
	}
}

func TestCASRejectedTicket(t *testing.T) {
	ts := newTestServer(t)
	status, _ := ts.do(t, http.MethodPost, "/api/user/cas-validate", "", map[string]string{
		"ticket": "bogus", "service": "http://app.test/cb",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	status, _ = ts.do(t, http.MethodPost, "/api/user/cas-validate", "", map[string]string{"ticket": "ST-a"})
	if status != http.StatusBadRequest {
		t.Fatalf("missing service should be 400, got %d", status)
	}
}

func TestCASRateLimit(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.CASRateLimitPerMinute = 1 })
	body := map[string]string{"ticket": "ST-a", "service": "http://app.test/cb"}
	if status, raw := ts.do(t, http.MethodPost, "/api/user/cas-validate", "", body); status != http.StatusOK {
		t.Fatalf("first request expected 200, got %d %s", status, raw)
	}
	status, _ := ts.do(t, http.MethodPost, "/api/user/cas-validate", "", body)
	if status != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", status)
	}
}

func TestCheckoutAndOTPFlow(t *testing.T) {
	ts := newTestServer(t)
	seller := ts.signUp(t, "a")
	buyer := ts.signUp(t, "b")
	product := ts.listProduct(t, seller, "Calculus Textbook")

	status, raw := ts.do(t, http.MethodPost, "/api/cart/add", buyer, map[string]any{
		"productdata": map[string]string{"_id": product.ID},
		"quantity":    1,
	})
	if status != http.StatusOK {
		t.Fatalf("cart add: %d %s", status, raw)
	}
	cart := decode[cartResponse](t, raw)
	if len(cart.Cart) != 1 || cart.Cart[0].Quantity != 1 {
		t.Fatalf("unexpected cart: %+v", cart.Cart)
	}

	// empty body checks out the stored cart
	status, raw = ts.do(t, http.MethodPost, "/api/order/add", buyer, nil)
	if status != http.StatusOK {
		t.Fatalf("order add: %d %s", status, raw)
	}
	created := decode[struct {
		Orders []domain.IssuedOTP `json:"orders"`
	}](t, raw)
	if len(created.Orders) != 1 || len(created.Orders[0].OTP) != 6 {
		t.Fatalf("expected one order with a 6-digit otp, got %+v", created.Orders)
	}
	issued := created.Orders[0]

	_, raw = ts.do(t, http.MethodGet, "/api/cart/list", buyer, nil)
	if lines := decode[[]domain.CartLine](t, raw); len(lines) != 0 {
		t.Fatalf("cart should be cleared after checkout, got %+v", lines)
	}

	// the buyer cannot complete their own pickup
	status, _ = ts.do(t, http.MethodPost, "/api/order/verify", buyer, map[string]string{"orderId": issued.OrderID, "otp": issued.OTP})
	if status != http.StatusForbidden {
		t.Fatalf("buyer verify expected 403, got %d", status)
	}
	wrong := "000000"
	if issued.OTP == wrong {
		wrong = "111111"
	}
	status, _ = ts.do(t, http.MethodPost, "/api/order/verify", seller, map[string]string{"orderId": issued.OrderID, "otp": wrong})
	if status != http.StatusBadRequest {
		t.Fatalf("wrong otp expected 400, got %d", status)
	}

	_, raw = ts.do(t, http.MethodGet, "/api/order/pending", seller, nil)
	if pending := decode[[]domain.OrderView](t, raw); len(pending) != 1 || pending[0].Items[0].Product == nil {
		t.Fatalf("expected one resolved pending order, got %s", raw)
	}

	status, raw = ts.do(t, http.MethodPost, "/api/order/verify", seller, map[string]string{"orderId": issued.OrderID, "otp": issued.OTP})
	if status != http.StatusOK {
		t.Fatalf("verify: %d %s", status, raw)
	}
	status, _ = ts.do(t, http.MethodPost, "/api/order/verify", seller, map[string]string{"orderId": issued.OrderID, "otp": issued.OTP})
	if status != http.StatusNotFound {
		t.Fatalf("second verify expected 404, got %d", status)
	}

	_, raw = ts.do(t, http.MethodGet, "/api/order/pending", seller, nil)
	if pending := decode[[]domain.OrderView](t, raw); len(pending) != 0 {
		t.Fatalf("pending should be empty, got %+v", pending)
	}
	_, raw = ts.do(t, http.MethodGet, "/api/order/completed", seller, nil)
	completed := decode[[]domain.OrderView](t, raw)
	if len(completed) != 1 || completed[0].Status != domain.OrderCompleted {
		t.Fatalf("expected one completed order, got %+v", completed)
	}
	_, raw = ts.do(t, http.MethodGet, "/api/order/purchases?status=completed", buyer, nil)
	if purchases := decode[[]domain.OrderView](t, raw); len(purchases) != 1 {
		t.Fatalf("expected one completed purchase, got %+v", purchases)
	}
}

func TestCheckoutExplicitEmptyCartKeepsStoredCart(t *testing.T) {
	ts := newTestServer(t)
	seller := ts.signUp(t, "a")
	buyer := ts.signUp(t, "b")
	product := ts.listProduct(t, seller, "Lab Coat")
	status, raw := ts.do(t, http.MethodPost, "/api/cart/add", buyer, map[string]any{"productId": product.ID})
	if status != http.StatusOK {
		t.Fatalf("cart add: %d %s", status, raw)
	}

	status, raw = ts.do(t, http.MethodPost, "/api/order/add", buyer, map[string]any{"cart": []any{}})
	if status != http.StatusOK {
		t.Fatalf("order add: %d %s", status, raw)
	}
	created := decode[struct {
		Orders []domain.IssuedOTP `json:"orders"`
	}](t, raw)
	if len(created.Orders) != 0 {
		t.Fatalf("explicit empty cart should create no orders, got %+v", created.Orders)
	}
	_, raw = ts.do(t, http.MethodGet, "/api/cart/list", buyer, nil)
	if lines := decode[[]domain.CartLine](t, raw); len(lines) != 1 {
		t.Fatalf("stored cart should be untouched, got %+v", lines)
	}
}

func TestRegenerateOTPInvalidatesPrevious(t *testing.T) {
	ts := newTestServer(t)
	seller := ts.signUp(t, "a")
	buyer := ts.signUp(t, "b")
	product := ts.listProduct(t, seller, "Drafter")

	_, raw := ts.do(t, http.MethodPost, "/api/order/add", buyer, map[string]any{
		"cart": []map[string]any{{"product": map[string]string{"_id": product.ID}, "quantity": 1}},
	})
	first := decode[struct {
		Orders []domain.IssuedOTP `json:"orders"`
	}](t, raw).Orders[0]

	status, _ := ts.do(t, http.MethodPost, "/api/order/generate-otp/"+first.OrderID, seller, nil)
	if status != http.StatusForbidden {
		t.Fatalf("seller regenerate expected 403, got %d", status)
	}
	status, raw = ts.do(t, http.MethodPost, "/api/order/generate-otp/"+first.OrderID, buyer, nil)
	if status != http.StatusOK {
		t.Fatalf("regenerate: %d %s", status, raw)
	}
	second := decode[domain.IssuedOTP](t, raw)
	if second.OTP != first.OTP {
		status, _ = ts.do(t, http.MethodPost, "/api/order/verify", seller, map[string]string{"orderId": first.OrderID, "otp": first.OTP})
		if status != http.StatusBadRequest {
			t.Fatalf("stale otp expected 400, got %d", status)
		}
	}
	status, _ = ts.do(t, http.MethodPost, "/api/order/verify", seller, map[string]string{"orderId": first.OrderID, "otp": second.OTP})
	if status != http.StatusOK {
		t.Fatalf("fresh otp expected 200, got %d", status)
	}
}

func TestDuplicateTitleReturnsExistingProduct(t *testing.T) {
	ts := newTestServer(t)
	seller := ts.signUp(t, "a")
	first := ts.listProduct(t, seller, "X")
	status, raw := ts.do(t, http.MethodPost, "/api/product/add", seller, map[string]any{
		"title": "X", "description": "again", "price": "10.50", "imageUrl": "http://cdn.test/y.png",
		"category": "Books", "subCategory": "Novels",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	body := decode[map[string]string](t, raw)
	if body["existingProductId"] != first.ID {
		t.Fatalf("expected existing id %s, got %s", first.ID, raw)
	}
}

func TestProductTaxonomyAndRemoval(t *testing.T) {
	ts := newTestServer(t)
	seller := ts.signUp(t, "a")
	other := ts.signUp(t, "b")
	status, _ := ts.do(t, http.MethodPost, "/api/product/add", seller, map[string]any{
		"title": "Lamp", "description": "d", "price": 100, "imageUrl": "http://i",
		"category": "Books", "subCategory": "Laptops",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("mismatched subcategory expected 400, got %d", status)
	}
	product := ts.listProduct(t, seller, "Algorithms")

	if status, _ := ts.do(t, http.MethodDelete, "/api/product/remove/"+product.ID, other, nil); status != http.StatusForbidden {
		t.Fatalf("non-seller remove expected 403, got %d", status)
	}
	if status, _ := ts.do(t, http.MethodDelete, "/api/product/remove/"+product.ID, seller, nil); status != http.StatusOK {
		t.Fatalf("seller remove expected 200, got %d", status)
	}
	if status, _ := ts.do(t, http.MethodGet, "/api/product/"+product.ID, "", nil); status != http.StatusNotFound {
		t.Fatalf("removed product expected 404, got %d", status)
	}
	_, raw := ts.do(t, http.MethodGet, "/api/product/list?category=Books", "", nil)
	if products := decode[[]domain.Product](t, raw); len(products) != 0 {
		t.Fatalf("expected empty catalog, got %+v", products)
	}
	_, raw = ts.do(t, http.MethodGet, "/api/product/categories", "", nil)
	if cats := decode[[]domain.Category](t, raw); len(cats) != 8 {
		t.Fatalf("expected 8 categories, got %d", len(cats))
	}
}

func TestAdminPendingOrdersRequiresAdmin(t *testing.T) {
	ts := newTestServer(t)
	user := ts.signUp(t, "a")
	admin := ts.signUp(t, "admin")
	if status, _ := ts.do(t, http.MethodGet, "/api/admin/orders/pending", user, nil); status != http.StatusForbidden {
		t.Fatalf("non-admin expected 403, got %d", status)
	}
	if status, _ := ts.do(t, http.MethodGet, "/api/admin/orders/pending", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("anonymous expected 401, got %d", status)
	}
	if status, raw := ts.do(t, http.MethodGet, "/api/admin/orders/pending", admin, nil); status != http.StatusOK {
		t.Fatalf("admin expected 200, got %d %s", status, raw)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signUp(t, "a")
	if status, _ := ts.do(t, http.MethodGet, "/api/user/profile", token, nil); status != http.StatusOK {
		t.Fatalf("profile expected 200, got %d", status)
	}
	if status, _ := ts.do(t, http.MethodPost, "/api/user/logout", token, nil); status != http.StatusNoContent {
		t.Fatalf("logout expected 204, got %d", status)
	}
	if status, _ := ts.do(t, http.MethodGet, "/api/user/profile", token, nil); status != http.StatusUnauthorized {
		t.Fatalf("revoked token expected 401, got %d", status)
	}
}

func TestPublicProfileHidesContactNumber(t *testing.T) {
	ts := newTestServer(t)
	ts.signUp(t, "a")
	status, raw := ts.do(t, http.MethodGet, "/api/user/email/a@iiit.ac.in", "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", status, raw)
	}
	if strings.Contains(string(raw), "contactnumber") {
		t.Fatalf("public profile leaked contact number: %s", raw)
	}
	if status, _ := ts.do(t, http.MethodGet, "/api/user/email/ghost@iiit.ac.in", "", nil); status != http.StatusNotFound {
		t.Fatalf("unknown user expected 404, got %d", status)
	}
}

func TestMessagesPushedOverWebsocket(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp(t, "a")
	bob := ts.signUp(t, "b")

	wsURL := "ws" + strings.TrimPrefix(ts.url, "http") + "/api/messages/ws?token=" + bob
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	resp.Body.Close()
	defer conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for ts.hub.Connected("b@iiit.ac.in") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("websocket client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	status, raw := ts.do(t, http.MethodPost, "/api/messages/send", alice, map[string]string{
		"receiver": "b@iiit.ac.in", "content": "is the book still available?",
	})
	if status != http.StatusCreated {
		t.Fatalf("send: %d %s", status, raw)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ws: %v", err)
	}
	event := decode[wsEvent](t, payload)
	if event.Type != "message" || event.Message.Sender != "a@iiit.ac.in" {
		t.Fatalf("unexpected event: %s", payload)
	}

	_, raw = ts.do(t, http.MethodGet, "/api/messages/history?with=a@iiit.ac.in", bob, nil)
	if history := decode[[]domain.Message](t, raw); len(history) != 1 {
		t.Fatalf("expected one message in history, got %+v", history)
	}
	_, raw = ts.do(t, http.MethodGet, "/api/messages/chat-users/b@iiit.ac.in", bob, nil)
	if partners := decode[[]string](t, raw); len(partners) != 1 || partners[0] != "a@iiit.ac.in" {
		t.Fatalf("unexpected partners: %s", raw)
	}
	if status, _ := ts.do(t, http.MethodGet, "/api/messages/chat-users/b@iiit.ac.in", alice, nil); status != http.StatusForbidden {
		t.Fatalf("foreign chat-users expected 403, got %d", status)
	}
	if status, _ := ts.do(t, http.MethodGet, "/api/messages/history?user1=b@iiit.ac.in&user2=c@iiit.ac.in", alice, nil); status != http.StatusForbidden {
		t.Fatalf("foreign history expected 403, got %d", status)
	}
}

func TestWebsocketRequiresSessionToken(t *testing.T) {
	ts := newTestServer(t)
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.url, "http")+"/api/messages/ws?token=junk", nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", resp)
	}
}

func TestGenerateTextCannedAndSearch(t *testing.T) {
	ts := newTestServer(t)
	seller := ts.signUp(t, "a")
	ts.listProduct(t, seller, "Calculus Textbook")

	status, raw := ts.do(t, http.MethodPost, "/generate-text", "", map[string]string{"prompt": "Hello!"})
	if status != http.StatusOK {
		t.Fatalf("generate-text: %d %s", status, raw)
	}
	if reply := decode[assistant.Reply](t, raw); reply.Source != assistant.SourceCanned {
		t.Fatalf("expected canned reply, got %+v", reply)
	}
	_, raw = ts.do(t, http.MethodPost, "/api/generate-text", "", map[string]string{"prompt": "calculus"})
	reply := decode[assistant.Reply](t, raw)
	if reply.Source != assistant.SourceSearch || !strings.Contains(reply.Text, "Calculus Textbook") {
		t.Fatalf("expected search hit, got %+v", reply)
	}
	if status, _ := ts.do(t, http.MethodPost, "/api/generate-text", "", map[string]string{"prompt": " "}); status != http.StatusBadRequest {
		t.Fatalf("blank prompt expected 400, got %d", status)
	}
}

func TestUploadImage(t *testing.T) {
	images := &fakeImages{}
	ts := newTestServer(t, func(c *Config) { c.Images = images })
	token := ts.signUp(t, "a")

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	upload := func(name string, data []byte) (int, []byte) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("image", name)
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		_, _ = fw.Write(data)
		_ = mw.Close()
		req, _ := http.NewRequest(http.MethodPost, ts.url+"/api/upload/image", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
		defer resp.Body.Close()
		out, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, out
	}

	status, raw := upload("desk photo.png", png)
	if status != http.StatusOK {
		t.Fatalf("upload: %d %s", status, raw)
	}
	url := decode[map[string]string](t, raw)["url"]
	if !strings.HasPrefix(url, "http://cdn.test/bucket/products/") || !strings.HasSuffix(url, "desk_photo.png") {
		t.Fatalf("unexpected url %q", url)
	}
	if len(images.objs) != 1 {
		t.Fatalf("expected one stored object, got %d", len(images.objs))
	}
	if status, _ := upload("notes.pdf", png); status != http.StatusBadRequest {
		t.Fatalf("pdf expected 400, got %d", status)
	}
	if status, _ := upload("fake.png", []byte("just some text, not an image")); status != http.StatusBadRequest {
		t.Fatalf("non-image content expected 400, got %d", status)
	}
}

func TestCreatePayment(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signUp(t, "a")
	status, raw := ts.do(t, http.MethodPost, "/api/payment/create-order", token, map[string]any{"amount": 249.5})
	if status != http.StatusOK {
		t.Fatalf("create-order: %d %s", status, raw)
	}
	if order := decode[payment.Order](t, raw); order.Amount != 24950 || order.Currency != "INR" {
		t.Fatalf("unexpected order %+v", order)
	}
	if status, _ := ts.do(t, http.MethodPost, "/api/payment/create-order", token, map[string]any{"amount": -1}); status != http.StatusBadRequest {
		t.Fatalf("negative amount expected 400, got %d", status)
	}
}

func TestSupportTicket(t *testing.T) {
	ts := newTestServer(t)
	status, raw := ts.do(t, http.MethodPost, "/api/support", "", map[string]string{"email": "a@iiit.ac.in", "message": "cart is stuck"})
	if status != http.StatusCreated {
		t.Fatalf("support: %d %s", status, raw)
	}
	id := decode[map[string]any](t, raw)["ticketId"].(string)
	if _, ok, _ := ts.store.GetSupportTicket(id); !ok {
		t.Fatalf("ticket %s not stored", id)
	}
	if status, _ := ts.do(t, http.MethodPost, "/api/support", "", map[string]string{"email": "a@iiit.ac.in"}); status != http.StatusBadRequest {
		t.Fatalf("missing message expected 400, got %d", status)
	}
}

func TestRepeatedOTPFailuresRaiseAlertCounter(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.OTPVerifyRateLimitPerMinute = 100 })
	seller := ts.signUp(t, "a")
	for i := 0; i < 3; i++ {
		ts.do(t, http.MethodPost, "/api/order/verify", seller, map[string]string{"orderId": "missing", "otp": "123456"})
	}
	found := false
	for _, k := range ts.redis.Keys() {
		if strings.HasPrefix(k, "campusmart:alerts:") && strings.Contains(k, "order.otp.verify") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected alert counter key, have %v", ts.redis.Keys())
	}
}

func TestServerRequiresRedis(t *testing.T) {
	sessions, _ := store.NewJWTSessionStore(testJWTSecret, nil, store.JWTOptions{})
	a, err := app.New(app.Config{Store: store.NewMemoryStore(), Sessions: sessions})
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	if _, err := New(Config{App: a}); err == nil {
		t.Fatalf("expected error without redis client")
	}
}
