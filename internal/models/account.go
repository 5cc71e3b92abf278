package models

import (
	hProtocol "github.com/stellar/go/protocols/horizon"
)

// AccountView is a point-in-time snapshot of an account. The source of
// truth is Horizon; nothing here is ever written back.
type AccountView struct {
	AccountID          string `json:"account_id"`
	Sequence           int64  `json:"sequence"`
	SubentryCount      int32  `json:"subentry_count"`
	HomeDomain         string `json:"home_domain,omitempty"`
	LastModifiedLedger uint32 `json:"last_modified_ledger"`

	Thresholds ThresholdsView `json:"thresholds"`
	Flags      FlagsView      `json:"flags"`

	Balances []BalanceView `json:"balances"`
	Signers  []SignerView  `json:"signers"`
}

// ThresholdsView mirrors an account's operation thresholds
type ThresholdsView struct {
	Low    byte `json:"low"`
	Medium byte `json:"medium"`
	High   byte `json:"high"`
}

// FlagsView mirrors issuer/account authorization flags
type FlagsView struct {
	AuthRequired        bool `json:"auth_required"`
	AuthRevocable       bool `json:"auth_revocable"`
	AuthImmutable       bool `json:"auth_immutable"`
	AuthClawbackEnabled bool `json:"auth_clawback_enabled"`
}

// BalanceView is one asset-amount pair held by an account
type BalanceView struct {
	AssetType   string `json:"asset_type"`
	AssetCode   string `json:"asset_code,omitempty"`
	AssetIssuer string `json:"asset_issuer,omitempty"`
	Balance     string `json:"balance"`
	Limit       string `json:"limit,omitempty"`
}

// SignerView is one signer on an account
type SignerView struct {
	Key    string `json:"key"`
	Weight int32  `json:"weight"`
	Type   string `json:"type"`
}

// AccountViewFromHorizon converts a Horizon account record into a view
func AccountViewFromHorizon(a hProtocol.Account) AccountView {
	balances := make([]BalanceView, len(a.Balances))
	for i, b := range a.Balances {
		balances[i] = BalanceView{
			AssetType:   b.Asset.Type,
			AssetCode:   b.Asset.Code,
			AssetIssuer: b.Asset.Issuer,
			Balance:     b.Balance,
			Limit:       b.Limit,
		}
	}

	signers := make([]SignerView, len(a.Signers))
	for i, s := range a.Signers {
		signers[i] = SignerView{
			Key:    s.Key,
			Weight: s.Weight,
			Type:   s.Type,
		}
	}

	return AccountView{
		AccountID:          a.AccountID,
		Sequence:           a.Sequence,
		SubentryCount:      a.SubentryCount,
		HomeDomain:         a.HomeDomain,
		LastModifiedLedger: a.LastModifiedLedger,
		Thresholds: ThresholdsView{
			Low:    a.Thresholds.LowThreshold,
			Medium: a.Thresholds.MedThreshold,
			High:   a.Thresholds.HighThreshold,
		},
		Flags: FlagsView{
			AuthRequired:        a.Flags.AuthRequired,
			AuthRevocable:       a.Flags.AuthRevocable,
			AuthImmutable:       a.Flags.AuthImmutable,
			AuthClawbackEnabled: a.Flags.AuthClawbackEnabled,
		},
		Balances: balances,
		Signers:  signers,
	}
}
