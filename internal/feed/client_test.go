package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dealgrab/dealgrab-sync/internal/config"
	"github.com/dealgrab/dealgrab-sync/internal/models"
)

func testConfig(baseURL string, pageSize int) config.FeedConfig {
	return config.FeedConfig{
		BaseURL:           baseURL,
		AccessToken:       "test-token",
		PublisherID:       "1822416",
		PageSize:          pageSize,
		RequestsPerSecond: 1000, // no pacing in tests
		Timeout:           5 * time.Second,
	}
}

func TestFetchProgrammes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/publishers/1822416/programmes" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want Bearer test-token", got)
		}
		fmt.Fprint(w, `[
			{"id": 101, "name": "Acme", "description": "widgets", "logoUrl": "https://cdn/acme.png", "status": "active", "primarySector": "Fashion"},
			{"id": 102, "name": "Globex", "status": "suspended"}
		]`)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL, 200))
	programmes, err := c.FetchProgrammes(context.Background())
	if err != nil {
		t.Fatalf("FetchProgrammes: %v", err)
	}

	if len(programmes) != 2 {
		t.Fatalf("got %d programmes, want 2", len(programmes))
	}
	if programmes[0].ID != "101" {
		t.Errorf("ID = %q, want 101 (numeric ids must be stringified)", programmes[0].ID)
	}
	if programmes[0].Name != "Acme" || programmes[0].LogoURL != "https://cdn/acme.png" {
		t.Errorf("unexpected programme fields: %+v", programmes[0])
	}
	if programmes[0].Raw["primarySector"] != "Fashion" {
		t.Errorf("raw payload not retained: %v", programmes[0].Raw)
	}
}

func TestFetchProgrammes_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": "not an array"}`)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL, 200))
	_, err := c.FetchProgrammes(context.Background())
	if !errors.Is(err, models.ErrMalformedFeed) {
		t.Fatalf("err = %v, want ErrMalformedFeed", err)
	}
}

func TestFetchPromotions_Pagination(t *testing.T) {
	const pageSize = 2
	var pagesServed []int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var req struct {
			Filters struct {
				Membership string `json:"membership"`
			} `json:"filters"`
			Pagination struct {
				Page     int `json:"page"`
				PageSize int `json:"pageSize"`
			} `json:"pagination"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Filters.Membership != "joined" {
			t.Errorf("membership = %q, want joined", req.Filters.Membership)
		}
		pagesServed = append(pagesServed, req.Pagination.Page)

		switch req.Pagination.Page {
		case 1:
			fmt.Fprint(w, `{"data": [
				{"promotionId": 1, "title": "50% off", "advertiser": {"id": 101, "name": "Acme", "joined": true}},
				{"promotionId": 2, "title": "Sale", "advertiser": {"id": 101, "name": "Acme"}}
			]}`)
		case 2:
			// short page terminates the loop
			fmt.Fprint(w, `{"data": [
				{"promotionId": 3, "title": "Voucher", "voucher": {"code": "SAVE10"}, "type": "voucher", "advertiser": {"id": 102, "name": "Globex"}}
			]}`)
		default:
			t.Errorf("unexpected page %d requested", req.Pagination.Page)
		}
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL, pageSize))
	promotions, err := c.FetchPromotions(context.Background())
	if err != nil {
		t.Fatalf("FetchPromotions: %v", err)
	}

	if len(promotions) != 3 {
		t.Fatalf("got %d promotions, want 3", len(promotions))
	}
	if len(pagesServed) != 2 || pagesServed[0] != 1 || pagesServed[1] != 2 {
		t.Errorf("pages served = %v, want [1 2]", pagesServed)
	}
	if promotions[0].PromotionID != "1" || promotions[0].Advertiser.Name != "Acme" {
		t.Errorf("unexpected first promotion: %+v", promotions[0])
	}
	if !promotions[0].Advertiser.Joined {
		t.Error("advertiser.joined not parsed")
	}
	if promotions[2].Voucher.Code != "SAVE10" {
		t.Errorf("voucher code = %q, want SAVE10", promotions[2].Voucher.Code)
	}
}

func TestFetchPromotions_MalformedPageAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": "oops"}`)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL, 200))
	promotions, err := c.FetchPromotions(context.Background())
	if !errors.Is(err, models.ErrMalformedFeed) {
		t.Fatalf("err = %v, want ErrMalformedFeed", err)
	}
	if promotions != nil {
		t.Error("expected no partial promotion set on malformed page")
	}
}

func TestFetchPromotions_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL, 200))
	if _, err := c.FetchPromotions(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestParseFeedTime(t *testing.T) {
	tests := []struct {
		in   string
		zero bool
	}{
		{"2026-03-01T00:00:00Z", false},
		{"2026-03-01 23:59:59", false},
		{"2026-03-01", false},
		{"", true},
		{"not a date", true},
	}
	for _, tt := range tests {
		got := parseFeedTime(tt.in)
		if got.IsZero() != tt.zero {
			t.Errorf("parseFeedTime(%q).IsZero() = %v, want %v", tt.in, got.IsZero(), tt.zero)
		}
	}
}
