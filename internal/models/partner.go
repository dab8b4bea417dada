package models

import "time"

// Partner is one member of a couple.
type Partner struct {
	ID           string    `json:"partnerId"`
	CoupleToken  string    `json:"coupleToken"`
	Email        string    `json:"email"`
	DisplayName  *string   `json:"displayName,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PartnerPublic is Partner without sensitive fields for API responses.
type PartnerPublic struct {
	ID          string    `json:"partnerId"`
	CoupleToken string    `json:"coupleToken"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"displayName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ToPublic converts Partner to PartnerPublic.
func (p *Partner) ToPublic() PartnerPublic {
	return PartnerPublic{
		ID:          p.ID,
		CoupleToken: p.CoupleToken,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		CreatedAt:   p.CreatedAt,
	}
}
