package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"coachsync/pkg/docstore"
	"coachsync/pkg/models"
)

func TestHTTPVerifierRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		var req struct {
			UserID  string         `json:"userId"`
			Receipt models.Receipt `json:"receipt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Receipt.ProductID != "premium_monthly" {
			t.Errorf("product = %q", req.Receipt.ProductID)
		}
		json.NewEncoder(w).Encode(models.Entitlement{
			Active: true, ProductID: req.Receipt.ProductID, ExpiresAt: "2026-12-31T00:00:00.000000000Z",
		})
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, "tok")
	ent, err := v.Verify(context.Background(), "u1", models.Receipt{
		Platform: "ios", ProductID: "premium_monthly", Token: "receipt-data",
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ent.Active || ent.ProductID != "premium_monthly" {
		t.Fatalf("entitlement wrong: %+v", ent)
	}
}

func TestHTTPVerifierRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad receipt", http.StatusBadRequest)
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, "")
	_, err := v.Verify(context.Background(), "u1", models.Receipt{Platform: "android"})
	if !errors.Is(err, ErrInvalidReceipt) {
		t.Fatalf("err = %v, want ErrInvalidReceipt", err)
	}
}

type staticVerifier struct{ ent models.Entitlement }

func (s staticVerifier) Verify(ctx context.Context, userID string, r models.Receipt) (models.Entitlement, error) {
	return s.ent, nil
}

func TestServiceAppliesEntitlementToProfile(t *testing.T) {
	store, err := docstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	svc := NewService(staticVerifier{ent: models.Entitlement{
		Active: true, ProductID: "premium_yearly", ExpiresAt: "2027-01-01T00:00:00.000000000Z",
	}}, store)

	if _, err := svc.Apply(context.Background(), "u1", models.Receipt{Platform: "ios"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	p, err := store.GetUserProfile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetUserProfile: %v", err)
	}
	if !p.Premium || p.PremiumProductID != "premium_yearly" {
		t.Fatalf("profile entitlement wrong: %+v", p)
	}
}
