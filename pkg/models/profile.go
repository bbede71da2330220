package models

// UserProfile is the signed-in user's document.
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
	// Premium entitlement state, written after purchase verification.
	Premium          bool   `json:"premium,omitempty"`
	PremiumProductID string `json:"premiumProductId,omitempty"`
	PremiumExpiresAt string `json:"premiumExpiresAt,omitempty"`
	// Onboarding flags.
	OnboardingDone bool `json:"onboardingDone,omitempty"`
}

// BossProfile describes the manager the user is being coached about.
type BossProfile struct {
	ID            string   `json:"id"`
	Name          string   `json:"name,omitempty"`
	RoleTitle     string   `json:"roleTitle,omitempty"`
	Style         string   `json:"style,omitempty"`
	Challenges    []string `json:"challenges,omitempty"`
	RelationNotes string   `json:"relationNotes,omitempty"`
	UpdatedAt     string   `json:"updatedAt,omitempty"`
}
