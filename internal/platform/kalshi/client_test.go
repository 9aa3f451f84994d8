package kalshi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hedgescan/hedgescan/internal/domain"
)

func TestGetMarket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/PRES-24-DJT" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "market": {
    "ticker": "PRES-24-DJT",
    "title": "Will the incumbent win?",
    "status": "active",
    "yes_bid": 44,
    "yes_ask": 46,
    "no_bid": 54,
    "no_ask": 56,
    "last_price": 45,
    "volume": 120000
  }
}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	m, err := c.GetMarket(ctx, "PRES-24-DJT")
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	if m.Ticker != "PRES-24-DJT" || m.YesBid != 44 || m.LastPrice != 45 {
		t.Fatalf("unexpected market: %+v", m)
	}
	if !almostEqual(Prob(m.LastPrice), 0.45) {
		t.Fatalf("Prob(last) = %v", Prob(m.LastPrice))
	}
}

func TestGetOrderbook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/PRES-24-DJT/orderbook" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"orderbook": {"yes": [[44, 50], [45, 100]], "no": [[54, 80]]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ob, err := c.GetOrderbook(ctx, "PRES-24-DJT")
	if err != nil {
		t.Fatalf("GetOrderbook: %v", err)
	}
	if ob.Ticker != "PRES-24-DJT" {
		t.Fatalf("ticker = %q", ob.Ticker)
	}
	if len(ob.Yes) != 2 || len(ob.No) != 1 {
		t.Fatalf("got %d yes / %d no levels", len(ob.Yes), len(ob.No))
	}
	if ob.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, domain.ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, domain.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, domain.ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, domain.ErrRateLimited},
		{"bad gateway", http.StatusBadGateway, domain.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"code": "some_code", "message": "nope"}`))
			}))
			defer srv.Close()

			c := NewClient(srv.URL)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			_, err := c.GetOrderbook(ctx, "X")
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
