package models

// Receipt is an in-app purchase receipt as handed over by the store layer
// of the app. Token carries the platform-specific opaque proof.
type Receipt struct {
	Platform  string `json:"platform"` // "ios" | "android"
	ProductID string `json:"productId"`
	Token     string `json:"token"`
}

// Entitlement is the verified outcome for a receipt.
type Entitlement struct {
	Active    bool   `json:"active"`
	ProductID string `json:"productId,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}
