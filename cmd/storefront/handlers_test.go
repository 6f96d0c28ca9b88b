package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/MikeMC777/storefront/internal/apperr"
	"github.com/MikeMC777/storefront/internal/httpx"
	"github.com/MikeMC777/storefront/internal/order"
	"github.com/MikeMC777/storefront/internal/product"
	"github.com/MikeMC777/storefront/internal/session"
	"github.com/MikeMC777/storefront/internal/user"
)

//
// ===== IN-MEMORY STUBS =====
//

type stubProducts struct {
	mu        sync.Mutex
	items     map[string]*product.Product
	inUse     map[string]bool
	lastQuery product.Query
	writeErr  error // fails Create and Update before anything is stored
}

func newStubProducts() *stubProducts {
	return &stubProducts{items: map[string]*product.Product{}, inUse: map[string]bool{}}
}

func (s *stubProducts) add(id, name, price string, stock int) {
	s.items[id] = &product.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: stock}
}

func (s *stubProducts) Create(_ context.Context, p *product.Product, images []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Images = nil
	for _, f := range images {
		p.Images = append(p.Images, product.Image{ID: uuid.NewString(), Filename: f})
	}
	cp := *p
	s.items[p.ID] = &cp
	return nil
}

func (s *stubProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	cp.Images = append([]product.Image(nil), p.Images...)
	return &cp, nil
}

func (s *stubProducts) List(_ context.Context, q product.Query) ([]product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuery = q
	out := make([]product.Product, 0, len(s.items))
	for _, p := range s.items {
		if q.Q != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Q)) {
			continue
		}
		out = append(out, *p)
	}
	if q.Offset >= len(out) {
		return nil, nil
	}
	out = out[q.Offset:]
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *stubProducts) Update(_ context.Context, p *product.Product, newImages []string) ([]product.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	cur, ok := s.items[p.ID]
	if !ok {
		return nil, product.ErrNotFound
	}
	cur.Name, cur.Description, cur.Brand = p.Name, p.Description, p.Brand
	cur.Price, cur.Stock = p.Price, p.Stock
	var added []product.Image
	for _, f := range newImages {
		img := product.Image{ID: uuid.NewString(), Filename: f}
		cur.Images = append(cur.Images, img)
		added = append(added, img)
	}
	return added, nil
}

func (s *stubProducts) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	if s.inUse[id] {
		return false, product.ErrInUse
	}
	delete(s.items, id)
	return true, nil
}

type stubUsers struct {
	mu   sync.Mutex
	byID map[string]*user.User
}

func (m *stubUsers) Create(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.Username == u.Username || o.Email == u.Email {
			return user.ErrAlreadyExist
		}
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *stubUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *stubUsers) GetByLogin(_ context.Context, login string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == login || u.Username == login {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *stubUsers) ExistsOther(_ context.Context, id, username, email string) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ut, et bool
	for _, u := range m.byID {
		if u.ID != id {
			ut = ut || u.Username == username
			et = et || u.Email == email
		}
	}
	return ut, et, nil
}

func (m *stubUsers) Update(_ context.Context, u *user.User, updatePassword bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[u.ID]
	if !ok {
		return user.ErrNotFound
	}
	if updatePassword {
		cur.PasswordHash = u.PasswordHash
		return nil
	}
	cur.Username, cur.Email, cur.PhoneNumber = u.Username, u.Email, u.PhoneNumber
	return nil
}

type memSessions struct {
	mu  sync.Mutex
	ids map[string]string
}

func (s *memSessions) Save(_ context.Context, sessionID, userID string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[sessionID] = userID
	return nil
}

func (s *memSessions) Exists(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[sessionID]
	return ok, nil
}

func (s *memSessions) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, sessionID)
	return nil
}

type stubCheckout struct {
	cart   []order.CartItem
	caller string
	err    error
}

func (s *stubCheckout) CreateCheckoutSession(_ context.Context, cart []order.CartItem, callerUserID string) (*order.CheckoutResponse, error) {
	s.cart, s.caller = cart, callerUserID
	if s.err != nil {
		return nil, s.err
	}
	return &order.CheckoutResponse{URL: "https://pay.example/cs_1", SessionID: "cs_1"}, nil
}

type stubVerifier struct {
	res  *order.Result
	err  error
	addr *order.ShippingAddress
}

func (s *stubVerifier) VerifyAndMaterialize(_ context.Context, _, _ string, addr *order.ShippingAddress) (*order.Result, error) {
	s.addr = addr
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

type stubOrders struct {
	orders []order.Order
}

func (s *stubOrders) FindBySessionRef(context.Context, string) (*order.Order, error) {
	return nil, order.ErrNotFound
}

func (s *stubOrders) Materialize(context.Context, order.Materialization) (*order.Order, error) {
	return nil, apperr.Persistence(context.Canceled, "not used")
}

func (s *stubOrders) ListByUser(_ context.Context, userID string, limit, offset int) ([]order.Order, error) {
	var out []order.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *stubOrders) ListAll(_ context.Context, limit, offset int) ([]order.Order, error) {
	return s.orders, nil
}

//
// ===== TEST ROUTER =====
//

type testEnv struct {
	r        *gin.Engine
	products *stubProducts
	userRepo *stubUsers
	users    *user.Service
	checkout *stubCheckout
	verifier *stubVerifier
	orders   *stubOrders
	images   *product.ImageStore
}

func newTestEnv(t *testing.T, limit httpx.RateLimiterConfig) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	images, err := product.NewImageStore(t.TempDir())
	if err != nil {
		t.Fatalf("image store: %v", err)
	}
	userRepo := &stubUsers{byID: map[string]*user.User{}}
	env := &testEnv{
		products: newStubProducts(),
		userRepo: userRepo,
		users:    user.NewService(userRepo, zerolog.Nop()),
		checkout: &stubCheckout{},
		verifier: &stubVerifier{},
		orders:   &stubOrders{},
		images:   images,
	}
	env.r = newRouter(routerDeps{
		Products:     env.products,
		FreshProduct: env.products,
		Images:       images,
		Users:        env.users,
		Sessions:     session.NewManager("test-secret", time.Hour, &memSessions{ids: map[string]string{}}),
		Checkout:     env.checkout,
		Verifier:     env.verifier,
		Orders:       env.orders,
		Limiter:      httpx.NewRateLimiter(limit),
		MaxUpload:    1 << 20,
		Log:          zerolog.Nop(),
	})
	return env
}

var relaxedLimit = httpx.RateLimiterConfig{Rate: rate.Limit(100), Burst: 100, ExpiresIn: time.Minute}

func (e *testEnv) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func jsonReq(method, path string, body any) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// login registers (or promotes) an account and returns its session cookie.
func (e *testEnv) login(t *testing.T, name string, admin bool) (*http.Cookie, *user.User) {
	t.Helper()
	in := user.RegisterRequest{Username: name, Email: name + "@example.com", Password: "pw-123456"}
	var u *user.User
	var err error
	if admin {
		u, err = e.users.CreateAdmin(context.Background(), in)
	} else {
		u, err = e.users.Register(context.Background(), in)
	}
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	w := e.do(jsonReq(http.MethodPost, "/api/login", user.LoginRequest{Email: in.Email, Password: in.Password}), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", w.Code, w.Body.String())
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == httpx.SessionCookie && c.Value != "" {
			return c, u
		}
	}
	t.Fatalf("login did not set %s", httpx.SessionCookie)
	return nil, nil
}

func multipartReq(t *testing.T, method, path string, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile("images", name)
		if err != nil {
			t.Fatalf("create file: %v", err)
		}
		fw.Write(data)
	}
	mw.Close()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) httpx.ErrorBody {
	t.Helper()
	var body httpx.ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error json: %v (%s)", err, w.Body.String())
	}
	return body
}

//
// ===== CATALOG =====
//

func TestListProducts_PaginatesAndFilters(t *testing.T) {
	env := newTestEnv(t, relaxedLimit)
	env.products.add("a", "Mouse Pro", "99.90", 5)
	env.products.add("b", "Keyboard", "149.90", 3)
	env.products.add("c", "Mouse Pad", "9.90", 10)

	{
		w := env.do(httptest.NewRequest(http.MethodGet, "/api/products?limit=2&offset=0", nil), nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
		}
		var got product.ListResponse
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if len(got.Items) != 2 || got.Limit != 2 {
			t.Fatalf("items=%d limit=%d, want 2/2", len(got.Items), got.Limit)
		}
	}

	{
		w := env.do(httptest.NewRequest(http.MethodGet, "/api/products?q=mouse&limit=500", nil), nil)
		var got product.ListResponse
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if len(got.Items) != 2 {
			t.Fatalf("search returned %d items, want 2", len(got.Items))
		}
		if env.products.lastQuery.Limit != 20 {
			t.Fatalf("limit not clamped: %d", env.products.lastQuery.Limit)
		}
	}

	{
		w := env.do(httptest.NewRequest(http.MethodGet, "/api/products?offset=50", nil), nil)
		if !strings.Contains(w.Body.String(), `"items":[]`) {
			t.Fatalf("empty page must serialize items as [], got %s", w.Body.String())
		}
	}
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t, relaxedLimit)
	env.products.add("a", "Mouse Pro", "99.90", 5)
	env.products.items["a"].Images = []product.Image{{ID: "i1", Filename: "one.png"}}

	{
		w := env.do(httptest.NewRequest(http.MethodGet, "/api/products/a", nil), nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d", w.Code)
		}
		var v product.View
		if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if v.ThumbnailURL == nil || *v.ThumbnailURL != imageBase+"/one.png" {
			t.Fatalf("thumbnail=%v", v.ThumbnailURL)
		}
		if v.Price.StringFixed(2) != "99.90" {
			t.Fatalf("price=%s", v.Price)
		}
	}

	{
		w := env.do(httptest.NewRequest(http.MethodGet, "/api/products/missing", nil), nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", w.Code)
		}
		if body := decodeError(t, w); body.Error != string(apperr.KindNotFound) {
			t.Fatalf("error=%q", body.Error)
		}
	}
}

//
// ===== ACCOUNTS =====
//

func TestRegisterLoginLogout(t *testing.T) {
	env := newTestEnv(t, relaxedLimit)

	{
		w := env.do(jsonReq(http.MethodPost, "/api/register", user.RegisterRequest{Username: "ana", Email: "ana@example.com", Password: "pw-123456"}), nil)
		if w.Code != http.StatusCreated {
			t.Fatalf("register status=%d body=%s", w.Code, w.Body.String())
		}
		if strings.Contains(w.Body.String(), "pw-123456") || strings.Contains(w.Body.String(), "password") {
			t.Fatalf("register response leaks the password: %s", w.Body.String())
		}
	}

	{
		w := env.do(jsonReq(http.MethodPost, "/api/register", user.RegisterRequest{Username: "ana", Email: "other@example.com", Password: "x"}), nil)
		if w.Code != http.StatusConflict {
			t.Fatalf("duplicate username: want 409, got %d", w.Code)
		}
	}

	{
		w := env.do(jsonReq(http.MethodPost, "/api/login", user.LoginRequest{Email: "ana", Password: "wrong"}), nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("wrong password: want 401, got %d", w.Code)
		}
	}

	w := env.do(jsonReq(http.MethodPost, "/api/login", user.LoginRequest{Email: "ana", Password: "pw-123456"}), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", w.Code, w.Body.String())
	}
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == httpx.SessionCookie {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly || cookie.MaxAge != int(time.Hour.Seconds()) {
		t.Fatalf("unexpected session cookie: %+v", cookie)
	}

	if w := env.do(httptest.NewRequest(http.MethodGet, "/api/user/profile", nil), cookie); w.Code != http.StatusOK {
		t.Fatalf("profile status=%d", w.Code)
	}

	if w := env.do(httptest.NewRequest(http.MethodPost, "/api/logout", nil), cookie); w.Code != http.StatusNoContent {
		t.Fatalf("logout status=%d", w.Code)
	}

	if w := env.do(httptest.NewRequest(http.MethodGet, "/api/user/profile", nil), cookie); w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked session must be rejected, got %d", w.Code)
	}
}

func TestProfileRequiresSession(t *testing.T) {
	env := newTestEnv(t, relaxedLimit)

	for _, path := range []string{"/api/user/profile", "/api/my-orders"} {
		w := env.do(httptest.NewRequest(http.MethodGet, path, nil), nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: want 401, got %d", path, w.Code)
		}
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/user/profile", nil), &http.Cookie{Name: httpx.SessionCookie, Value: "garbage"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("forged token: want 401, got %d", w.Code)
	}
}

func TestUpdateProfileAndChangePassword(t *testing.T) {
	env := newTestEnv(t, relaxedLimit)
	cookie, _ := env.login(t, "ana", false)
	env.login(t, "bob", false)

	{
		phone := "+1 555 0100"
		w := env.do(jsonReq(http.MethodPut, "/api/user/profile", user.UpdateProfileRequest{PhoneNumber: &phone}), cookie)
		if w.Code != http.StatusOK {
			t.Fatalf("update status=%d body=%s", w.Code, w.Body.String())
		}
		var u user.User
		json.Unmarshal(w.Body.Bytes(), &u)
		if u.PhoneNumber != phone || u.Username != "ana" {
			t.Fatalf("unexpected profile: %+v", u)
		}
	}

	{
		w := env.do(jsonReq(http.MethodPut, "/api/user/profile", user.UpdateProfileRequest{Username: "bob"}), cookie)
		if w.Code != http.StatusConflict {
			t.Fatalf("taken username: want 409, got %d", w.Code)
		}
	}

	{
		w := env.do(jsonReq(http.MethodPost, "/api/user/change-password", user.ChangePasswordRequest{
			CurrentPassword: "nope", NewPassword: "n3w-pass", ConfirmPassword: "n3w-pass",
		}), cookie)
		if w.Code != http.StatusForbidden {
			t.Fatalf("wrong current password: want 403, got %d", w.Code)
		}
	}

	{
		w := env.do(jsonReq(http.MethodPost, "/api/user/change-password", user.ChangePasswordRequest{
			CurrentPassword: "pw-123456", NewPassword: "n3w-pass", ConfirmPassword: "n3w-pass",
		}), cookie)
		if w.Code != http.StatusNoContent {
			t.Fatalf("change password status=%d body=%s", w.Code, w.Body.String())
		}
		w = env.do(jsonReq(http.MethodPost, "/api/login", user.LoginRequest{Email: "ana", Password: "n3w-pass"}), nil)
		if w.Code != http.StatusOK {
			t.Fatalf("login with new password status=%d", w.Code)
		}
	}
}

func TestLoginIsRateLimited(t *testing.T) {
	env := newTestEnv(t, httpx.RateLimiterConfig{Rate: rate.Limit(0.001), Burst: 3, ExpiresIn: time.Minute})

	var last int
	for i := 0; i < 4; i++ {
		w := env.do(jsonReq(http.MethodPost, "/api/login", user.LoginRequest{Email: "ana", Password: "x"}), nil)
		last = w.Code
		if i < 3 && w.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d limited too early", i+1)
		}
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("4th request: want 429, got %d", last)
	}

	if w := env.do(httptest.NewRequest(http.MethodGet, "/api/products", nil), nil); w.Code != http.StatusOK {
		t.Fatalf("catalog must not be limited, got %d", w.Code)
	}
}

//
// ===== CHECKOUT AND ORDERS =====
//

func TestCreateCheckoutSession(t *testing.T) {
	env := newTestEnv(t, relaxedLimit)
	cookie, u := env.login(t, "ana", false)
	body := order.CreateCheckoutRequest{CartItems: []order.CartItem{{ProductID: "a", Quantity: 2}}}

	{
		w := env.do(jsonReq(http.MethodPost, "/api/create-checkout-session", body), nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("anonymous checkout: want 401, got %d", w.Code)
		}
	}

	{
		w := env.do(jsonReq(http.MethodPost, "/api/create-checkout-session", body), cookie)
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
		}
		var got order.CheckoutResponse
		json.Unmarshal(w.Body.Bytes(), &got)
		if got.URL != "https://pay.example/cs_1" || got.SessionID != "cs_1" {
			t.Fatalf("unexpected response %+v", got)
		}
		if env.checkout.caller != u.ID || len(env.checkout.cart) != 1 || env.checkout.cart[0].Quantity != 2 {
			t.Fatalf("service got caller=%q cart=%+v", env.checkout.caller, env.checkout.cart)
		}
	}

	{
		env.checkout.err = apperr.New(apperr.KindInsufficientStock, "insufficient stock for Mouse")
		w := env.do(jsonReq(http.MethodPost, "/api/create-checkout-session", body), cookie)
		if w.Code != http.StatusConflict {
			t.Fatalf("want 409, got %d", w.Code)
		}
		if got := decodeError(t, w); got.Error != string(apperr.KindInsufficientStock) {
			t.Fatalf("error=%q", got.Error)
		}
	}

	{
		req := httptest.NewRequest(http.MethodPost, "/api/create-checkout-session", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		if w := env.do(req, cookie); w.Code != http.StatusBadRequest {
			t.Fatalf("bad json: want 400, got %d", w.Code)
		}
	}
}

func TestVerifyOrder_StatusCodes(t *testing.T) {
	env := newTestEnv(t, relaxedLimit)
	cookie, _ := env.login(t, "ana", false)
	body := order.VerifyRequest{SessionID: "cs_1", ShippingAddress: &order.ShippingAddress{FullName: "Ana"}}

	cases := []struct {
		name string
		res  *order.Result
		err  error
		want int
	}{
		{"created", &order.Result{OrderID: "o1", Total: decimal.RequireFromString("20.00")}, nil, http.StatusCreated},
		{"duplicate", &order.Result{OrderID: "o1", Duplicate: true}, nil, http.StatusOK},
		{"not paid", nil, apperr.New(apperr.KindPaymentNotConfirmed, "payment not completed"), http.StatusPaymentRequired},
		{"out of stock", nil, apperr.New(apperr.KindInsufficientStock, "insufficient stock"), http.StatusConflict},
		{"unknown product", nil, apperr.New(apperr.KindProductNotFound, "product gone"), http.StatusNotFound},
		{"gateway down", nil, apperr.Gateway(context.DeadlineExceeded, "payment provider unavailable"), http.StatusServiceUnavailable},
		{"storage", nil, apperr.Persistence(context.DeadlineExceeded, "insert order"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		env.verifier.res, env.verifier.err = tc.res, tc.err
		w := env.do(jsonReq(http.MethodPost, "/api/order/verify", body), cookie)
		if w.Code != tc.want {
			t.Fatalf("%s: want %d, got %d body=%s", tc.name, tc.want, w.Code, w.Body.String())
		}
		if tc.err != nil && strings.Contains(w.Body.String(), "deadline") {
			t.Fatalf("%s: internal detail leaked: %s", tc.name, w.Body.String())
		}
	}
	if env.verifier.addr == nil || env.verifier.addr.FullName != "Ana" {
		t.Fatalf("address not passed through: %+v", env.verifier.addr)
	}
}

func TestOrderLists(t *testing.T) {
	env := newTestEnv(t, relaxedLimit)
	cookie, u := env.login(t, "ana", false)
	adminCookie, _ := env.login(t, "root", true)
	env.orders.orders = []order.Order{
		{ID: "o1", UserID: u.ID, Total: decimal.RequireFromString("20.00")},
		{ID: "o2", UserID: "someone-else", Total: decimal.RequireFromString("5.00")},
	}

	{
		w := env.do(httptest.NewRequest(http.MethodGet, "/api/my-orders", nil), cookie)
		var got order.ListResponse
		json.Unmarshal(w.Body.Bytes(), &got)
		if w.Code != http.StatusOK || len(got.Items) != 1 || got.Items[0].ID != "o1" {
			t.Fatalf("my-orders status=%d items=%+v", w.Code, got.Items)
		}
	}

	{
		w := env.do(httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil), cookie)
		if w.Code != http.StatusForbidden {
			t.Fatalf("customer on admin orders: want 403, got %d", w.Code)
		}
	}

	{
		w := env.do(httptest.NewRequest(http.MethodGet, "/api/admin/orders?limit=0", nil), adminCookie)
		var got order.ListResponse
		json.Unmarshal(w.Body.Bytes(), &got)
		if w.Code != http.StatusOK || len(got.Items) != 2 || got.Limit != 20 {
			t.Fatalf("admin orders status=%d limit=%d items=%d", w.Code, got.Limit, len(got.Items))
		}
	}
}

//
// ===== ADMIN PRODUCTS =====
//

func TestAdminProductLifecycle(t *testing.T) {
	env := newTestEnv(t, relaxedLimit)
	customer, _ := env.login(t, "ana", false)
	admin, _ := env.login(t, "root", true)

	fields := map[string]string{"name": "Mouse", "price": "19.90", "stock": "4", "brand": "Acme"}

	{
		w := env.do(multipartReq(t, http.MethodPost, "/api/admin/product/new", fields, nil), customer)
		if w.Code != http.StatusForbidden {
			t.Fatalf("customer create: want 403, got %d", w.Code)
		}
	}

	{
		bad := map[string]string{"name": "Mouse", "price": "19.999", "stock": "4"}
		w := env.do(multipartReq(t, http.MethodPost, "/api/admin/product/new", bad, nil), admin)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("three decimals: want 400, got %d", w.Code)
		}
	}

	var id string
	{
		files := map[string][]byte{"front.PNG": []byte("png"), "notes.txt": []byte("skip")}
		w := env.do(multipartReq(t, http.MethodPost, "/api/admin/product/new", fields, files), admin)
		if w.Code != http.StatusCreated {
			t.Fatalf("create status=%d body=%s", w.Code, w.Body.String())
		}
		var got map[string]string
		json.Unmarshal(w.Body.Bytes(), &got)
		id = got["productId"]
		p, err := env.products.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("product not stored: %v", err)
		}
		if len(p.Images) != 1 || !strings.HasSuffix(p.Images[0].Filename, ".png") {
			t.Fatalf("images=%+v, want one .png", p.Images)
		}
		if _, err := os.Stat(filepath.Join(env.images.Dir(), p.Images[0].Filename)); err != nil {
			t.Fatalf("image file missing: %v", err)
		}
	}

	{
		w := env.do(multipartReq(t, http.MethodPost, "/api/admin/products/"+id, map[string]string{"stock": "9"}, nil), admin)
		if w.Code != http.StatusOK {
			t.Fatalf("update status=%d body=%s", w.Code, w.Body.String())
		}
		var v product.View
		json.Unmarshal(w.Body.Bytes(), &v)
		if v.Stock != 9 || v.Name != "Mouse" || v.Brand != "Acme" || v.Price.StringFixed(2) != "19.90" {
			t.Fatalf("partial update changed other fields: %+v", v)
		}
	}

	{
		w := env.do(multipartReq(t, http.MethodPost, "/api/admin/products/missing", map[string]string{"stock": "1"}, nil), admin)
		if w.Code != http.StatusNotFound {
			t.Fatalf("update missing: want 404, got %d", w.Code)
		}
	}

	{
		env.products.inUse[id] = true
		w := env.do(httptest.NewRequest(http.MethodDelete, "/api/admin/products/"+id, nil), admin)
		if w.Code != http.StatusConflict {
			t.Fatalf("delete ordered product: want 409, got %d", w.Code)
		}
		env.products.inUse[id] = false
	}

	{
		p, _ := env.products.GetByID(context.Background(), id)
		w := env.do(httptest.NewRequest(http.MethodDelete, "/api/admin/products/"+id, nil), admin)
		if w.Code != http.StatusNoContent {
			t.Fatalf("delete status=%d body=%s", w.Code, w.Body.String())
		}
		if _, err := os.Stat(filepath.Join(env.images.Dir(), p.Images[0].Filename)); !os.IsNotExist(err) {
			t.Fatalf("image file not removed: %v", err)
		}
		if w := env.do(httptest.NewRequest(http.MethodGet, "/api/products/"+id, nil), nil); w.Code != http.StatusNotFound {
			t.Fatalf("deleted product still served: %d", w.Code)
		}
	}
}

func uploadedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestAdminProductWriteFailureLeavesNothingBehind(t *testing.T) {
	env := newTestEnv(t, relaxedLimit)
	admin, _ := env.login(t, "root", true)
	files := map[string][]byte{"front.png": []byte("png")}

	env.products.writeErr = apperr.Persistence(context.DeadlineExceeded, "insert image")
	{
		fields := map[string]string{"name": "Mouse", "price": "19.90", "stock": "4"}
		w := env.do(multipartReq(t, http.MethodPost, "/api/admin/product/new", fields, files), admin)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("create: want 500, got %d", w.Code)
		}
		if n := len(env.products.items); n != 0 {
			t.Fatalf("failed create left %d products", n)
		}
		if left := uploadedFiles(t, env.images.Dir()); len(left) != 0 {
			t.Fatalf("failed create left files %v", left)
		}
	}

	env.products.add("p1", "Mouse", "19.90", 4)
	{
		w := env.do(multipartReq(t, http.MethodPost, "/api/admin/products/p1", map[string]string{"stock": "9"}, files), admin)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("update: want 500, got %d", w.Code)
		}
		p, _ := env.products.GetByID(context.Background(), "p1")
		if p.Stock != 4 || len(p.Images) != 0 {
			t.Fatalf("failed update changed the product: stock=%d images=%d", p.Stock, len(p.Images))
		}
		if left := uploadedFiles(t, env.images.Dir()); len(left) != 0 {
			t.Fatalf("failed update left files %v", left)
		}
	}

	env.products.writeErr = nil
	{
		fields := map[string]string{"name": "Mouse", "price": "19.90", "stock": "4"}
		w := env.do(multipartReq(t, http.MethodPost, "/api/admin/product/new", fields, files), admin)
		if w.Code != http.StatusCreated {
			t.Fatalf("retry create: want 201, got %d", w.Code)
		}
		if n := len(env.products.items); n != 2 {
			t.Fatalf("retry must add exactly one product, have %d", n)
		}
	}
}

func TestAdminDemotionTakesEffectImmediately(t *testing.T) {
	env := newTestEnv(t, relaxedLimit)
	admin, u := env.login(t, "root", true)

	if w := env.do(httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil), admin); w.Code != http.StatusOK {
		t.Fatalf("admin before demotion: want 200, got %d", w.Code)
	}

	env.userRepo.mu.Lock()
	env.userRepo.byID[u.ID].IsAdmin = false
	env.userRepo.mu.Unlock()

	if w := env.do(httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil), admin); w.Code != http.StatusForbidden {
		t.Fatalf("same session after demotion: want 403, got %d", w.Code)
	}
}
