package models

import (
	hProtocol "github.com/stellar/go/protocols/horizon"
)

// NativeAssetCode is the distinguished native asset
const NativeAssetCode = "XLM"

// AssetView is the explorer's read view of an issued asset
type AssetView struct {
	Code        string    `json:"code"`
	Issuer      string    `json:"issuer,omitempty"`
	Type        string    `json:"type"`
	Amount      string    `json:"amount"`
	NumAccounts int32     `json:"num_accounts"`
	ContractID  string    `json:"contract_id,omitempty"`
	Flags       FlagsView `json:"flags"`
	PagingToken string    `json:"paging_token,omitempty"`
}

// AssetViewFromHorizon converts a Horizon asset-stat record into a view.
// Supply and holder count reflect authorized trustlines only.
func AssetViewFromHorizon(a hProtocol.AssetStat) AssetView {
	return AssetView{
		Code:        a.Asset.Code,
		Issuer:      a.Asset.Issuer,
		Type:        a.Asset.Type,
		Amount:      a.Balances.Authorized,
		NumAccounts: a.Accounts.Authorized,
		ContractID:  a.ContractID,
		Flags: FlagsView{
			AuthRequired:        a.Flags.AuthRequired,
			AuthRevocable:       a.Flags.AuthRevocable,
			AuthImmutable:       a.Flags.AuthImmutable,
			AuthClawbackEnabled: a.Flags.AuthClawbackEnabled,
		},
		PagingToken: a.PT,
	}
}
