package entities

import (
	"github.com/volatiletech/null/v8"
)

// PortalConfig is the gating configuration of one community.
// CommunityID is the chat where /setup was run; BoundChatID is the
// destination chat members are admitted into.
type PortalConfig struct {
	CommunityID   int64       `json:"communityId"`
	Nonce         string      `json:"nonce"`
	RequiredAsset null.String `json:"requiredAsset"`
	// MinimumAmount is expressed in human units. Unset means any positive amount.
	MinimumAmount null.Int64 `json:"minimumAmount"`
	BoundChatID   null.Int64 `json:"boundChatId"`
}

// IsGated reports whether the portal imposes a holding requirement.
func (p *PortalConfig) IsGated() bool {
	return p.RequiredAsset.Valid && p.RequiredAsset.String != ""
}

// IsBound reports whether the portal has been linked to its destination chat.
func (p *PortalConfig) IsBound() bool {
	return p.BoundChatID.Valid
}

// Requirement returns the asset requirement used by balance checks.
func (p *PortalConfig) Requirement() AssetRequirement {
	return AssetRequirement{
		Asset:         p.RequiredAsset,
		MinimumAmount: p.MinimumAmount,
	}
}

// AssetRequirement pairs an asset with the minimum human-unit amount to hold.
type AssetRequirement struct {
	Asset         null.String
	MinimumAmount null.Int64
}

// ConfigField names a portal field editable through the setup flow.
type ConfigField string

const (
	ConfigFieldAsset  ConfigField = "mint"
	ConfigFieldAmount ConfigField = "amount"
)

// Valid reports whether f is an editable field.
func (f ConfigField) Valid() bool {
	return f == ConfigFieldAsset || f == ConfigFieldAmount
}
