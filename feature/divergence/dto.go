package divergence

import (
	"github.com/shopspring/decimal"
)

// ResolveRequest is the body of POST /divergences/:id/resolve. Required fields
// are checked by the resolution itself, after the status check.
type ResolveRequest struct {
	Kind            string           `json:"kind" validate:"max=32"`
	Motive          string           `json:"motive" validate:"max=1024"`
	AdjustmentValue *decimal.Decimal `json:"adjustment_value"`
}

// SupersedeRequest is the body of POST /divergences/:id/supersede. An empty
// description copies the superseded one.
type SupersedeRequest struct {
	Description string `json:"description" validate:"max=1024"`
}

// ListQuery holds the query parameters of GET /divergences.
type ListQuery struct {
	Status   string `query:"status" json:"status" validate:"omitempty,oneof=pending resolved justified"`
	Kind     string `query:"kind" json:"kind" validate:"omitempty,oneof=saleWithoutSettlement settlementWithoutSale valueMismatch dateMismatch"`
	Terminal string `query:"terminal" json:"terminal" validate:"max=64"`
	Period   string `query:"period" json:"period" validate:"max=32"`
	Q        string `query:"q" json:"q" validate:"max=256"`
	Limit    int    `query:"limit" json:"limit" validate:"min=0,max=500"`
	Offset   int    `query:"offset" json:"offset" validate:"min=0"`
}

// AdjustmentResponse is the body of GET /divergences/adjustments.
type AdjustmentResponse struct {
	TerminalID string          `json:"terminal_id"`
	Period     string          `json:"period"`
	Total      decimal.Decimal `json:"total"`
}
