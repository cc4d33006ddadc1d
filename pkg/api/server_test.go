package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/dropset-labs/dropset/pkg/engine"
	"github.com/dropset-labs/dropset/pkg/market"
	"github.com/dropset-labs/dropset/pkg/mempool"
)

func newTestMarket(t *testing.T, reg *market.Registry) *market.Entry {
	t.Helper()
	p := market.Params{
		BaseMint:   [32]byte{1},
		QuoteMint:  [32]byte{2},
		Bump:       7,
		NumSectors: 4,
	}
	data := make([]byte, market.AccountSize(p.NumSectors, engine.HeaderSize, engine.SectorSize))
	entry, err := reg.Register(data, p)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return entry
}

func newTestServer(t *testing.T) (*Server, *market.Registry) {
	t.Helper()
	reg := market.NewRegistry()
	mp := mempool.NewMempool()
	s := &Server{markets: reg, mempool: mp, hub: NewHub(), router: mux.NewRouter()}
	s.setupRoutes()
	return s, reg
}

func TestHandleGetMarkets(t *testing.T) {
	s, reg := newTestServer(t)
	entry := newTestMarket(t, reg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/markets", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}

	var got []MarketInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].Address != hex.EncodeToString(entry.Address[:]) {
		t.Fatalf("unexpected markets list: %+v", got)
	}
}

func TestHandleGetOrderbookEmpty(t *testing.T) {
	s, reg := newTestServer(t)
	entry := newTestMarket(t, reg)

	path := "/api/v1/markets/" + hex.EncodeToString(entry.Address[:]) + "/orderbook"
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
	var snap OrderbookSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(snap.Bids) != 0 || len(snap.Asks) != 0 {
		t.Fatalf("expected empty book, got %+v", snap)
	}
}

func TestHandleGetMarketNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/markets/"+hex.EncodeToString(make([]byte, 32)), nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleGetSeatAfterDeposit(t *testing.T) {
	s, reg := newTestServer(t)
	entry := newTestMarket(t, reg)

	user := engine.UserID{9}
	if _, err := engine.Deposit(entry.Region, user, engine.NIL, true, 500); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	path := "/api/v1/markets/" + hex.EncodeToString(entry.Address[:]) + "/seats/" + hex.EncodeToString(user[:])
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
	var seat SeatInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &seat); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if seat.BaseDeposited != 500 || seat.BaseAvailable != 500 {
		t.Fatalf("unexpected seat: %+v", seat)
	}
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
