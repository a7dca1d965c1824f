package records

import (
	"github.com/shopspring/decimal"
)

// SaleDTO is one sale in an ingestion request. Amounts accept JSON numbers or strings.
type SaleDTO struct {
	ID                string          `json:"id" validate:"required,max=64"`
	TerminalID        string          `json:"terminal_id" validate:"required,max=64"`
	Period            string          `json:"period" validate:"required,max=32"`
	Date              string          `json:"date" validate:"required,datetime=2006-01-02"`
	GrossAmount       decimal.Decimal `json:"gross_amount"`
	NetAmount         decimal.Decimal `json:"net_amount"`
	PaymentMethod     string          `json:"payment_method" validate:"max=32"`
	ExternalReference string          `json:"external_reference" validate:"max=128"`
	Description       string          `json:"description" validate:"max=512"`
}

// SettlementDTO is one settlement in an ingestion request.
type SettlementDTO struct {
	ID                string          `json:"id" validate:"required,max=64"`
	TerminalID        string          `json:"terminal_id" validate:"required,max=64"`
	Period            string          `json:"period" validate:"required,max=32"`
	Date              string          `json:"date" validate:"required,datetime=2006-01-02"`
	Amount            decimal.Decimal `json:"amount"`
	ExternalReference string          `json:"external_reference" validate:"max=128"`
	Description       string          `json:"description" validate:"max=512"`
}

// SalesRequest is the body of POST /records/sales.
type SalesRequest struct {
	Sales []SaleDTO `json:"sales" validate:"required,min=1,dive"`
}

// SettlementsRequest is the body of POST /records/settlements.
type SettlementsRequest struct {
	Settlements []SettlementDTO `json:"settlements" validate:"required,min=1,dive"`
}

// TerminalRequest is the body of PUT /records/terminals/:id.
type TerminalRequest struct {
	Processor string `json:"processor" validate:"required,max=64"`
}

// IngestResponse reports how many records were written.
type IngestResponse struct {
	Ingested int `json:"ingested"`
}
