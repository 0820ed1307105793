// Package model defines shared data structures persisted by the service.
package model

import (
	"encoding/json"
	"time"
)

// Order is a purchase intent and its lifecycle record. Rows are never
// deleted; the status column is the audit trail of what happened to the
// money. TotalAmount is in Telegram Stars, fixed at creation.
type Order struct {
	ID               string          `json:"id"`
	BuyerID          string          `json:"buyerId"`
	BuyerHandle      *string         `json:"buyerHandle,omitempty"`
	Kind             string          `json:"kind"`
	Payload          json.RawMessage `json:"payload"`
	TotalAmount      int             `json:"totalAmount"`
	Status           string          `json:"status"`
	ProviderChargeID *string         `json:"providerChargeId,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// Channel is one catalog entry a vacancy/resume post can be published to.
type Channel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Username   string `json:"username"`
	Category   string `json:"category"`
	PriceStars int    `json:"priceStars"`
	IsActive   bool   `json:"isActive"`
}

// Settings is the singleton pricing configuration row (id = 1).
type Settings struct {
	VacancyBasePriceStars  int `json:"vacancyBasePriceStars"`
	ResumeBasePriceStars   int `json:"resumeBasePriceStars"`
	ChannelDiscountPercent int `json:"channelDiscountPercent"`
}

// Profile is the long-lived Random Coffee identity, keyed by Telegram user
// id. It survives across weeks and is refreshed on every paid sign-up.
type Profile struct {
	ID             string    `json:"id"`
	TelegramUserID string    `json:"telegramUserId"`
	Name           string    `json:"name"`
	Specialty      string    `json:"specialty"`
	Interests      string    `json:"interests"`
	LinkedIn       *string   `json:"linkedin,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Participation is one profile's sign-up for one match week.
type Participation struct {
	ID               string    `json:"id"`
	ProfileID        string    `json:"profileId"`
	MatchDate        time.Time `json:"matchDate"`
	Status           string    `json:"status"`
	ProviderChargeID *string   `json:"providerChargeId,omitempty"`
	MatchedWith      *string   `json:"matchedWith,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// HistoryPair records that two profiles were paired once. Rows are
// append-only and forbid the same pair from ever matching again.
type HistoryPair struct {
	ID       string    `json:"id"`
	MetOn    time.Time `json:"metOn"`
	ProfileA string    `json:"profileA"`
	ProfileB string    `json:"profileB"`
}
