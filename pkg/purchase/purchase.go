// Package purchase validates store receipts against the backend and
// applies the resulting entitlement to the user profile.
package purchase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"coachsync/pkg/docstore"
	"coachsync/pkg/logger"
	"coachsync/pkg/models"
)

// ErrInvalidReceipt is returned when the backend rejects the receipt.
var ErrInvalidReceipt = errors.New("purchase: invalid receipt")

// Verifier checks a receipt and returns the entitlement it grants.
type Verifier interface {
	Verify(ctx context.Context, userID string, r models.Receipt) (models.Entitlement, error)
}

// HTTPVerifier calls the deployed verification function.
type HTTPVerifier struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewHTTPVerifier(endpoint, token string) *HTTPVerifier {
	return &HTTPVerifier{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

var _ Verifier = (*HTTPVerifier)(nil)

func (v *HTTPVerifier) Verify(ctx context.Context, userID string, r models.Receipt) (models.Entitlement, error) {
	body, err := json.Marshal(struct {
		UserID  string         `json:"userId"`
		Receipt models.Receipt `json:"receipt"`
	}{UserID: userID, Receipt: r})
	if err != nil {
		return models.Entitlement{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.Entitlement{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if v.token != "" {
		req.Header.Set("Authorization", "Bearer "+v.token)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return models.Entitlement{}, fmt.Errorf("verify receipt: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return models.Entitlement{}, ErrInvalidReceipt
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Entitlement{}, fmt.Errorf("verify receipt: status %d", resp.StatusCode)
	}
	var ent models.Entitlement
	if err := json.NewDecoder(resp.Body).Decode(&ent); err != nil {
		return models.Entitlement{}, fmt.Errorf("decode entitlement: %w", err)
	}
	return ent, nil
}

// Service verifies receipts and writes the entitlement onto the profile.
type Service struct {
	verifier Verifier
	profiles docstore.ProfileStore
}

func NewService(verifier Verifier, profiles docstore.ProfileStore) *Service {
	return &Service{verifier: verifier, profiles: profiles}
}

// Apply verifies r and updates the user's premium fields. The profile is
// created if missing so a purchase can land before onboarding completes.
func (s *Service) Apply(ctx context.Context, userID string, r models.Receipt) (models.Entitlement, error) {
	ent, err := s.verifier.Verify(ctx, userID, r)
	if err != nil {
		return models.Entitlement{}, err
	}
	p, err := s.profiles.GetUserProfile(ctx, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		p = models.UserProfile{ID: userID}
	} else if err != nil {
		return models.Entitlement{}, err
	}
	p.Premium = ent.Active
	p.PremiumProductID = ent.ProductID
	p.PremiumExpiresAt = ent.ExpiresAt
	p.UpdatedAt = models.FormatTimestamp(time.Now())
	if err := s.profiles.PutUserProfile(ctx, p); err != nil {
		return models.Entitlement{}, fmt.Errorf("store entitlement: %w", err)
	}
	logger.Info("entitlement_applied", "user", userID, "product", ent.ProductID, "active", ent.Active)
	return ent, nil
}
