// Package org defines tenant organizations and their subscription state.
package org

import "time"

// Tier is a subscription plan level.
type Tier string

const (
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierStarter, TierProfessional, TierEnterprise:
		return true
	}
	return false
}

// Organization represents one tenant. RequireGovernance is the org-wide policy
// flag mandating governance metadata on every ingested record.
type Organization struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Tier              Tier      `json:"tier"`
	RequireGovernance bool      `json:"requireGovernance"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
