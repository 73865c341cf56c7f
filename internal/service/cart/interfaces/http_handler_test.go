package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"shopcart/internal/service/cart/application"
	"shopcart/internal/service/cart/domain"
	"shopcart/internal/service/cart/infrastructure/adapter"
)

// stubInventory: 商品 1..3 有库存 2，商品 99 查询失败
type stubInventory struct{}

func (stubInventory) GetStock(_ context.Context, id int64) (domain.Stock, error) {
	if id == 99 {
		return domain.Stock{}, errors.New("inventory down")
	}
	return domain.Stock{ProductID: id, Amount: 2}, nil
}

func (stubInventory) GetProduct(_ context.Context, id int64) (domain.Product, error) {
	if id == 99 {
		return domain.Product{}, errors.New("inventory down")
	}
	return domain.Product{ID: id, Attributes: map[string]json.RawMessage{"title": json.RawMessage(`"Tênis"`)}}, nil
}

func newTestMux(t *testing.T, hub *Hub, notifier *recordingNotifier) (*http.ServeMux, *application.Manager) {
	t.Helper()
	m, err := application.NewManager(context.Background(), stubInventory{}, adapter.NewSnapshotMemoryAdapter(),
		notifier, adapter.NewLocalLocker(), application.Options{})
	if err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	NewCartHandler(m, hub).RegisterRoutes(mux)
	return mux, m
}

type recordingNotifier struct{ notices []domain.Notice }

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notice) { r.notices = append(r.notices, n) }

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestCartRoutes(t *testing.T) {
	notifier := &recordingNotifier{}
	mux, _ := newTestMux(t, nil, notifier)

	steps := []struct {
		method, path, body string
		wantStatus         int
		wantKind           string
		wantItems          []int // 每行的数量
	}{
		{method: "GET", path: "/cart", wantStatus: 200, wantItems: []int{}},
		{method: "POST", path: "/cart/products/1", wantStatus: 200, wantItems: []int{1}},
		{method: "POST", path: "/cart/products/1", wantStatus: 200, wantItems: []int{2}},
		{method: "POST", path: "/cart/products/1", wantStatus: 409, wantKind: "out_of_stock"},
		{method: "POST", path: "/cart/products/99", wantStatus: 502, wantKind: "lookup_failure"},
		{method: "POST", path: "/cart/products/3", wantStatus: 200, wantItems: []int{2, 1}},
		{method: "PUT", path: "/cart/products/3", body: `{"amount":2}`, wantStatus: 200, wantItems: []int{2, 2}},
		{method: "PUT", path: "/cart/products/3", body: `{"amount":0}`, wantStatus: 200, wantItems: []int{2, 2}},
		{method: "PUT", path: "/cart/products/7", body: `{"amount":1}`, wantStatus: 404, wantKind: "not_found"},
		{method: "DELETE", path: "/cart/products/7", wantStatus: 404, wantKind: "not_found"},
		{method: "DELETE", path: "/cart/products/1", wantStatus: 200, wantItems: []int{2}},
		{method: "POST", path: "/cart/products/abc", wantStatus: 400},
		{method: "PUT", path: "/cart/products/3", body: `{}`, wantStatus: 400},
		{method: "PUT", path: "/cart/products/3", body: `nope`, wantStatus: 400},
	}

	for i, s := range steps {
		rec := do(mux, s.method, s.path, s.body)
		if rec.Code != s.wantStatus {
			t.Fatalf("step %d %s %s: status %d, want %d (%s)", i, s.method, s.path, rec.Code, s.wantStatus, rec.Body)
		}
		switch {
		case s.wantKind != "":
			var resp failureResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
			if resp.Kind != s.wantKind || resp.Message == "" || resp.NoticeID == "" {
				t.Fatalf("step %d: failure body %+v", i, resp)
			}
		case s.wantItems != nil:
			var cart domain.Cart
			if err := json.Unmarshal(rec.Body.Bytes(), &cart); err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
			amounts := []int{}
			for _, item := range cart {
				amounts = append(amounts, item.Amount)
			}
			if diff := cmp.Diff(s.wantItems, amounts); diff != "" {
				t.Fatalf("step %d amounts (-want +got):\n%s", i, diff)
			}
		}
	}

	if len(notifier.notices) != 4 {
		t.Fatalf("%d notices, want 4", len(notifier.notices))
	}
}

func TestFailureMessages(t *testing.T) {
	mux, _ := newTestMux(t, nil, &recordingNotifier{})

	rec := do(mux, "DELETE", "/cart/products/5", "")
	var resp failureResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Message != "Failed to remove product" {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestNoticeText(t *testing.T) {
	tests := []struct {
		op   domain.Op
		kind domain.Kind
		want string
	}{
		{domain.OpAdd, domain.KindOutOfStock, "Requested quantity is out of stock"},
		{domain.OpUpdate, domain.KindOutOfStock, "Requested quantity is out of stock"},
		{domain.OpAdd, domain.KindLookupFailure, "Failed to add product"},
		{domain.OpAdd, domain.KindStorageFailure, "Failed to add product"},
		{domain.OpRemove, domain.KindNotFound, "Failed to remove product"},
		{domain.OpUpdate, domain.KindNotFound, "Failed to update product amount"},
	}
	for _, tt := range tests {
		if got := NoticeText(tt.op, tt.kind); got != tt.want {
			t.Errorf("NoticeText(%s, %s) = %q, want %q", tt.op, tt.kind, got, tt.want)
		}
	}
}

func TestStatusOf(t *testing.T) {
	tests := map[domain.Kind]int{
		domain.KindOutOfStock:     http.StatusConflict,
		domain.KindNotFound:       http.StatusNotFound,
		domain.KindLookupFailure:  http.StatusBadGateway,
		domain.KindStorageFailure: http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := statusOf(domain.NewCartError(domain.OpAdd, kind, 1, nil)); got != want {
			t.Errorf("statusOf(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestGetCartSeesOtherReplica(t *testing.T) {
	store := adapter.NewSnapshotMemoryAdapter()
	locker := adapter.NewLocalLocker()
	opts := application.Options{SharedStore: true}
	a, err := application.NewManager(context.Background(), stubInventory{}, store, &recordingNotifier{}, locker, opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := application.NewManager(context.Background(), stubInventory{}, store, &recordingNotifier{}, locker, opts)
	if err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	NewCartHandler(b, nil).RegisterRoutes(mux)

	if err := a.Add(context.Background(), 2); err != nil {
		t.Fatal(err)
	}

	rec := do(mux, "GET", "/cart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var cart domain.Cart
	if err := json.Unmarshal(rec.Body.Bytes(), &cart); err != nil {
		t.Fatal(err)
	}
	if len(cart) != 1 || cart[0].ID != 2 {
		t.Fatalf("GET /cart on replica b = %+v, want product 2 added on a", cart)
	}
}
