package models

import (
	"github.com/stellar/go/protocols/horizon/effects"
)

// EffectView is the explorer's read view of one effect. Effects have many
// type-specific shapes, so everything beyond the discriminant is carried
// as raw fields for dynamic rendering.
type EffectView struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Details     map[string]any `json:"details,omitempty"`
	PagingToken string         `json:"paging_token,omitempty"`
}

// EffectViewFromHorizon converts an effect record into a view
func EffectViewFromHorizon(e effects.Effect) EffectView {
	return EffectView{
		ID:          e.GetID(),
		Type:        e.GetType(),
		Details:     rawFields(e),
		PagingToken: e.PagingToken(),
	}
}
